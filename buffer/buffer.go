// Package buffer mirrors a Neovim buffer into a document.Buffer so the
// engine can edit it through the Document interface. Mutations are
// applied to the mirror first and the changed line span is flushed back
// to Neovim in one batch call.
package buffer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/neovim/go-client/nvim"

	"codegen/document"
	"codegen/logger"
)

type Mirror struct {
	mu      sync.Mutex
	nv      *nvim.Nvim
	buf     nvim.Buffer
	doc     *document.Buffer
	flushed []string
}

// Attach snapshots the current Neovim buffer into a Mirror.
func Attach(nv *nvim.Nvim) (*Mirror, error) {
	buf, err := nv.CurrentBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to get current buffer: %w", err)
	}
	raw, err := nv.BufferLines(buf, 0, -1, false)
	if err != nil {
		return nil, fmt.Errorf("failed to read buffer lines: %w", err)
	}
	lines := make([]string, len(raw))
	for i, l := range raw {
		lines[i] = string(l)
	}
	return &Mirror{
		nv:      nv,
		buf:     buf,
		doc:     document.NewBuffer(strings.Join(lines, "\n")),
		flushed: lines,
	}, nil
}

// Doc exposes the underlying in-memory document.
func (m *Mirror) Doc() *document.Buffer { return m.doc }

func (m *Mirror) Snapshot() *document.Snapshot { return m.doc.Snapshot() }

func (m *Mirror) Edit(edits []document.Edit) (bool, error) {
	changed, err := m.doc.Edit(edits)
	if err != nil {
		return changed, err
	}
	if changed {
		m.flush()
	}
	return changed, nil
}

func (m *Mirror) StartTransaction() { m.doc.StartTransaction() }

func (m *Mirror) EndTransaction() (document.TransactionID, bool) {
	return m.doc.EndTransaction()
}

func (m *Mirror) MergeTransactions(src, dst document.TransactionID) {
	m.doc.MergeTransactions(src, dst)
}

func (m *Mirror) FinalizeLastTransaction() { m.doc.FinalizeLastTransaction() }

func (m *Mirror) UndoTransaction(id document.TransactionID) bool {
	ok := m.doc.UndoTransaction(id)
	if ok {
		m.flush()
	}
	return ok
}

func (m *Mirror) ForgetTransaction(id document.TransactionID) {
	m.doc.ForgetTransaction(id)
}

func (m *Mirror) Subscribe() <-chan document.Event { return m.doc.Subscribe() }

// flush writes the span of lines that differ from the last flush back to
// Neovim.
func (m *Mirror) flush() {
	m.mu.Lock()
	defer m.mu.Unlock()

	lines := strings.Split(m.doc.Text(), "\n")
	first, lastOld, lastNew := changedSpan(m.flushed, lines)
	if first == lastOld && first == lastNew {
		return
	}

	replacement := make([][]byte, lastNew-first)
	for i, l := range lines[first:lastNew] {
		replacement[i] = []byte(l)
	}
	batch := m.nv.NewBatch()
	batch.SetBufferLines(m.buf, first, lastOld, false, replacement)
	if err := batch.Execute(); err != nil {
		logger.Error("failed to flush buffer lines [%d,%d): %v", first, lastOld, err)
		return
	}
	m.flushed = lines
}

// changedSpan locates the line span that differs between two flushes:
// old lines [first,lastOld) are replaced by new lines [first,lastNew).
// Matching lines are trimmed from both ends.
func changedSpan(old, new []string) (first, lastOld, lastNew int) {
	first = 0
	for first < len(new) && first < len(old) && new[first] == old[first] {
		first++
	}
	lastNew, lastOld = len(new), len(old)
	for lastNew > first && lastOld > first && new[lastNew-1] == old[lastOld-1] {
		lastNew--
		lastOld--
	}
	return first, lastOld, lastNew
}
