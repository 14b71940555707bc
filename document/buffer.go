package document

import (
	"slices"
	"sync"
)

// editRecord is one primitive text replacement in the buffer's history.
// Anchors are resolved by replaying these records forward from the
// version they were created at.
type editRecord struct {
	start  int
	oldLen int
	newLen int
}

// appliedEdit is the undo state for one edit inside a transaction: the
// anchored range of the inserted text and the text it replaced.
type appliedEdit struct {
	start Anchor
	end   Anchor
	old   string
}

type transaction struct {
	edits []appliedEdit
}

// Buffer is an in-memory Document. The version number equals the length
// of the edit history; snapshots and anchors reference versions and are
// mapped forward through later records when resolved.
type Buffer struct {
	mu           sync.Mutex
	text         string
	history      []editRecord
	currentTx    *transaction
	transactions map[TransactionID]*transaction
	nextTxID     TransactionID
	subs         []chan Event
	closed       bool
}

func NewBuffer(text string) *Buffer {
	return &Buffer{
		text:         text,
		nextTxID:     1,
		transactions: make(map[TransactionID]*transaction),
	}
}

func (b *Buffer) Snapshot() *Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return newSnapshot(b, b.text, len(b.history))
}

// Text returns the current contents.
func (b *Buffer) Text() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.text
}

func (b *Buffer) Edit(edits []Edit) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	changed := false
	for _, e := range edits {
		if e.Start.version > len(b.history) || e.End.version > len(b.history) {
			return changed, ErrInvalidAnchor
		}
		start := b.resolveLocked(e.Start, len(b.history))
		end := b.resolveLocked(e.End, len(b.history))
		if end < start {
			start, end = end, start
		}
		if b.text[start:end] == e.Text {
			continue
		}
		b.applyLocked(start, end, e.Text)
		changed = true
	}
	return changed, nil
}

// applyLocked performs one replacement, appends its history record, and
// captures undo state when a transaction is open.
func (b *Buffer) applyLocked(start, end int, text string) {
	old := b.text[start:end]
	b.text = b.text[:start] + text + b.text[end:]
	b.history = append(b.history, editRecord{start: start, oldLen: end - start, newLen: len(text)})

	if b.currentTx != nil {
		v := len(b.history)
		b.currentTx.edits = append(b.currentTx.edits, appliedEdit{
			start: Anchor{version: v, offset: start, bias: BiasLeft},
			end:   Anchor{version: v, offset: start + len(text), bias: BiasLeft},
			old:   old,
		})
	}
}

// resolveLocked maps an anchor's offset forward through every record
// recorded after the anchor's version, up to the given version.
func (b *Buffer) resolveLocked(a Anchor, version int) int {
	off := a.offset
	for _, r := range b.history[a.version:version] {
		switch {
		case off < r.start:
			// before the edit, unaffected
		case off == r.start:
			if a.bias == BiasRight && r.oldLen == 0 {
				off += r.newLen
			}
		case off >= r.start+r.oldLen:
			off += r.newLen - r.oldLen
		default:
			// inside the replaced region
			if a.bias == BiasRight {
				off = r.start + r.newLen
			} else {
				off = r.start
			}
		}
	}
	return off
}

func (b *Buffer) StartTransaction() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.currentTx == nil {
		b.currentTx = &transaction{}
	}
}

func (b *Buffer) EndTransaction() (TransactionID, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	tx := b.currentTx
	b.currentTx = nil
	if tx == nil || len(tx.edits) == 0 {
		return 0, false
	}
	id := b.nextTxID
	b.nextTxID++
	b.transactions[id] = tx
	return id, true
}

func (b *Buffer) MergeTransactions(src, dst TransactionID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	srcTx, ok := b.transactions[src]
	if !ok {
		return
	}
	dstTx, ok := b.transactions[dst]
	if !ok {
		return
	}
	// src was recorded after dst; appending keeps chronological order so
	// undo can walk the combined list in reverse.
	dstTx.edits = append(dstTx.edits, srcTx.edits...)
	delete(b.transactions, src)
}

// FinalizeLastTransaction is a no-op for Buffer, which never groups
// adjacent transactions. It exists for documents that do.
func (b *Buffer) FinalizeLastTransaction() {}

func (b *Buffer) UndoTransaction(id TransactionID) bool {
	b.mu.Lock()
	tx, ok := b.transactions[id]
	if !ok {
		b.mu.Unlock()
		return false
	}
	delete(b.transactions, id)
	for i := len(tx.edits) - 1; i >= 0; i-- {
		e := tx.edits[i]
		start := b.resolveLocked(e.start, len(b.history))
		end := b.resolveLocked(e.end, len(b.history))
		if end < start {
			start, end = end, start
		}
		b.applyLocked(start, end, e.old)
	}
	subs := slices.Clone(b.subs)
	b.mu.Unlock()

	ev := Event{Kind: EventTransactionUndone, Transaction: id}
	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
		}
	}
	return true
}

// Undo reverts the most recent undoable transaction, as a user-initiated
// undo would.
func (b *Buffer) Undo() bool {
	b.mu.Lock()
	var latest TransactionID
	for id := range b.transactions {
		if id > latest {
			latest = id
		}
	}
	b.mu.Unlock()
	if latest == 0 {
		return false
	}
	return b.UndoTransaction(latest)
}

func (b *Buffer) ForgetTransaction(id TransactionID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.transactions, id)
}

func (b *Buffer) Subscribe() <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Event, 16)
	if b.closed {
		close(ch)
		return ch
	}
	b.subs = append(b.subs, ch)
	return ch
}

// Close closes all subscription channels.
func (b *Buffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}
