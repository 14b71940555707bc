package engine

import (
	"context"
	"errors"
	"io"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode"

	"codegen/document"
	"codegen/logger"
	"codegen/provider"
	"codegen/text"
	"codegen/types"
)

// Alternative drives one generation against one model: it streams the
// model's output through the incremental differ, applies the resulting
// edits to the document inside a single mergeable transaction, and keeps
// a renderable diff against the baseline selection. Several alternatives
// can share a document; only the active one mutates it, the others record
// their edits for replay on activation.
type Alternative struct {
	mu  sync.Mutex
	doc document.Document

	snapshot   *document.Snapshot
	rangeStart document.Anchor
	rangeEnd   document.Anchor
	active     bool
	config     types.GenerationConfig

	status         Status
	diff           Diff
	selectedText   string
	completion     string
	auxiliary      string
	failureMessage string
	messageID      string
	usage          types.TokenUsage
	elapsed        time.Duration

	// Accumulated state of the current generation. Edits are kept as char
	// operations rather than anchored edits so activation can re-anchor
	// them against a fresh snapshot.
	ops             []text.CharOperation
	lineOps         []text.LineOperation
	lastEqualRanges []AnchorRange

	txID  document.TransactionID
	hasTx bool

	// generationID fences stale pipelines: every start, stop, external
	// undo, and close bumps it, and late writers compare before touching
	// controller state.
	generationID int
	cancel       context.CancelFunc

	events      chan Event
	closed      bool
	isInsertion bool
}

// genParams is the per-generation input captured when the pipeline
// starts.
type genParams struct {
	suggested document.Indent
	selStart  document.Point
	editStart int
	selected  string
}

func NewAlternative(doc document.Document, rng AnchorRange, active bool, config types.GenerationConfig) *Alternative {
	snap := doc.Snapshot()
	start := snap.Resolve(rng.Start)
	end := snap.Resolve(rng.End)
	if end < start {
		start, end = end, start
	}
	a := &Alternative{
		doc:          doc,
		snapshot:     snap,
		rangeStart:   rng.Start,
		rangeEnd:     rng.End,
		active:       active,
		config:       config,
		selectedText: snap.TextForRange(start, end),
		isInsertion:  start == end,
		events:       make(chan Event, 16),
	}
	go a.watch(doc.Subscribe())
	return a
}

// Events returns the controller's event channel. It is closed by Close.
func (a *Alternative) Events() <-chan Event { return a.events }

func (a *Alternative) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

func (a *Alternative) Diff() Diff {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Diff{
		DeletedRowRanges:  slices.Clone(a.diff.DeletedRowRanges),
		InsertedRowRanges: slices.Clone(a.diff.InsertedRowRanges),
	}
}

func (a *Alternative) SelectedText() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.selectedText
}

// CurrentCompletion returns the sanitized text the model produced.
func (a *Alternative) CurrentCompletion() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.completion
}

// AuxiliaryText returns plain text the model emitted outside the rewrite
// tool, such as commentary around a structured generation.
func (a *Alternative) AuxiliaryText() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.auxiliary
}

// FailureMessage returns the model's explanation when it declined to
// rewrite the selection.
func (a *Alternative) FailureMessage() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.failureMessage
}

func (a *Alternative) MessageID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.messageID
}

func (a *Alternative) Usage() types.TokenUsage {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.usage
}

func (a *Alternative) Elapsed() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.elapsed
}

// LastEqualRanges returns the baseline spans the differ matched in the
// most recent batch, anchored so they track the live document.
func (a *Alternative) LastEqualRanges() []AnchorRange {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.lastEqualRanges)
}

// IsInsertion reports whether the controller was created on an empty
// range.
func (a *Alternative) IsInsertion() bool { return a.isInsertion }

func (a *Alternative) Active() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active
}

// Start begins a new generation, discarding the edits of any previous
// one. The range anchors are re-resolved against the current document so
// edits the user made since the controller was created are respected.
func (a *Alternative) Start(model provider.Model, prompt string) error {
	if model == nil {
		return errors.New("engine: model is required")
	}
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return errors.New("engine: controller is closed")
	}
	if a.hasTx {
		tx := a.txID
		a.hasTx = false
		a.doc.UndoTransaction(tx)
	}
	a.generationID++
	gen := a.generationID
	if a.cancel != nil {
		a.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	snap := a.doc.Snapshot()
	start := snap.Resolve(a.rangeStart)
	end := snap.Resolve(a.rangeEnd)
	if end < start {
		start, end = end, start
	}
	a.rangeStart = snap.AnchorBefore(start)
	a.rangeEnd = snap.AnchorAfter(end)
	a.snapshot = snap
	a.selectedText = snap.TextForRange(start, end)
	a.ops = nil
	a.lineOps = nil
	a.lastEqualRanges = nil
	a.diff = Diff{}
	a.completion = ""
	a.auxiliary = ""
	a.failureMessage = ""
	a.messageID = ""
	a.status = Status{Kind: StatusPending}

	p := genParams{
		suggested: suggestedIndent(snap, start, end),
		selStart:  snap.PointForOffset(start),
		editStart: start,
		selected:  a.selectedText,
	}
	caps := model.Capabilities()
	useTools := a.config.UseStreamingTools && caps.StreamingTools && caps.ToolChoice
	a.mu.Unlock()

	logger.Debug("generation started: model=%s tools=%v range=[%d,%d)", model.Name(), useTools, start, end)
	if useTools {
		go a.runTools(ctx, gen, model, prompt, p)
	} else {
		go a.runText(ctx, gen, model, prompt, p)
	}
	return nil
}

// Stop cancels the running generation. The status becomes Done when any
// diff was produced and Idle otherwise.
func (a *Alternative) Stop() {
	a.mu.Lock()
	a.lastEqualRanges = nil
	if a.diff.Empty() {
		a.status = Status{Kind: StatusIdle}
	} else {
		a.status = Status{Kind: StatusDone}
	}
	a.generationID++
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.mu.Unlock()
	a.emit(Event{Kind: EventFinished})
}

// Undo reverts the generation's transaction and stops tracking it.
func (a *Alternative) Undo() {
	a.mu.Lock()
	if a.hasTx {
		tx := a.txID
		a.hasTx = false
		a.doc.UndoTransaction(tx)
	}
	a.mu.Unlock()
}

// SetActive applies or withdraws the controller's edits. Activating
// re-anchors the recorded operations against the current document and
// replays them, restoring the diff; deactivating undoes the transaction
// and drops its undo state so the user's history stays clean.
func (a *Alternative) SetActive(active bool) error {
	a.mu.Lock()
	if active == a.active {
		a.mu.Unlock()
		return nil
	}
	a.active = active
	if !active {
		if a.hasTx {
			tx := a.txID
			a.hasTx = false
			a.doc.UndoTransaction(tx)
			a.doc.ForgetTransaction(tx)
		}
		a.mu.Unlock()
		return nil
	}

	if len(a.ops) > 0 {
		snap := a.doc.Snapshot()
		edits, _, _ := anchorOps(snap, snap.Resolve(a.rangeStart), a.ops)
		if err := a.applyEditsLocked(edits); err != nil {
			a.mu.Unlock()
			return err
		}
	}
	if a.status.Kind == StatusPending {
		// Generation still running; the incremental projection resumes
		// from the recorded line operations.
		a.reapplyLineDiffLocked(a.lineOps)
		a.mu.Unlock()
		return nil
	}
	gen := a.generationID
	a.mu.Unlock()
	go a.reapplyBatchDiff(context.Background(), gen)
	return nil
}

// Close cancels any running generation and closes the event channel.
func (a *Alternative) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	a.generationID++
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	close(a.events)
	a.mu.Unlock()
}

func (a *Alternative) emit(ev Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	select {
	case a.events <- ev:
	default:
		logger.Warn("dropping engine event %v", ev.Kind)
	}
}

// watch abandons the generation when its transaction is undone from
// outside, for example by the user pressing undo.
func (a *Alternative) watch(events <-chan document.Event) {
	for ev := range events {
		if ev.Kind != document.EventTransactionUndone {
			continue
		}
		a.mu.Lock()
		if !a.hasTx || a.txID != ev.Transaction {
			a.mu.Unlock()
			continue
		}
		a.hasTx = false
		a.generationID++
		if a.cancel != nil {
			a.cancel()
			a.cancel = nil
		}
		a.mu.Unlock()
		logger.Debug("generation transaction undone externally")
		a.emit(Event{Kind: EventUndone})
	}
}

func (a *Alternative) runText(ctx context.Context, gen int, model provider.Model, prompt string, p genParams) {
	started := time.Now()
	var stream provider.TextStream
	var err error
	if strings.EqualFold(strings.TrimSpace(prompt), "delete") {
		// Deleting needs no model round trip: an empty completion diffs
		// to a deletion of the whole selection.
		stream = emptyTextStream()
	} else {
		stream, err = model.StreamText(ctx, &provider.Request{Prompt: prompt})
	}
	if err != nil {
		a.finish(gen, model, err, "", time.Since(started))
		return
	}
	completion, err := a.consume(ctx, gen, newSanitizedStream(stream), p)
	a.finish(gen, model, err, completion, time.Since(started))
}

func (a *Alternative) runTools(ctx context.Context, gen int, model provider.Model, prompt string, p genParams) {
	started := time.Now()
	events, err := model.StreamEvents(ctx, &provider.Request{Prompt: prompt})
	if err != nil {
		a.finish(gen, model, err, "", time.Since(started))
		return
	}

	ts := &toolTextStream{events: events}
	first, err := ts.scanToRewrite(ctx)
	if err == io.EOF {
		// The model never called the rewrite tool. That includes the
		// failure path, which ends Done with zero edits.
		a.applyToolState(gen, ts)
		a.finish(gen, model, nil, "", time.Since(started))
		return
	}
	if err != nil {
		a.applyToolState(gen, ts)
		a.finish(gen, model, err, "", time.Since(started))
		return
	}

	ts.first = &first
	completion, err := a.consume(ctx, gen, ts, p)
	a.applyToolState(gen, ts)
	a.finish(gen, model, err, completion, time.Since(started))
}

// applyToolState copies what the structured stream learned into the
// controller. Only called after the stream's goroutines have finished.
func (a *Alternative) applyToolState(gen int, ts *toolTextStream) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.generationID != gen || a.closed {
		return
	}
	a.messageID = ts.messageID
	a.failureMessage = ts.failure
	a.auxiliary = ts.aux.String()
	a.usage = ts.usage
}

// consume runs the full pipeline for one generation: a producer goroutine
// corrects indentation and feeds the streaming differ, and the calling
// goroutine applies each batch of operations to the document in order.
// The channel between them holds one batch, so diffing never runs far
// ahead of edit application.
func (a *Alternative) consume(ctx context.Context, gen int, chunks provider.TextStream, p genParams) (string, error) {
	type delta struct {
		charOps []text.CharOperation
		lineOps []text.LineOperation
	}
	deltas := make(chan delta, 1)
	var completion strings.Builder
	var streamErr error

	go func() {
		defer close(deltas)
		differ := text.NewStreamingDiff(p.selected)
		lineDiff := text.NewLineDiff()

		send := func(ops []text.CharOperation, final bool) bool {
			lineDiff.PushCharOperations(ops, p.selected)
			if final {
				lineDiff.Finish()
			} else if len(ops) == 0 {
				return true
			}
			select {
			case deltas <- delta{charOps: ops, lineOps: lineDiff.LineOperations()}:
				return true
			case <-ctx.Done():
				return false
			}
		}

		pending := ""
		baseIndent := -1
		lineIndent := -1
		firstLine := true

		for {
			chunk, err := chunks.Next(ctx)
			if err != nil {
				if err != io.EOF {
					streamErr = err
				}
				break
			}
			if chunk == "" {
				continue
			}
			completion.WriteString(chunk)
			lines := strings.Split(chunk, "\n")
			for i, line := range lines {
				pending += line
				if lineIndent < 0 {
					if ix := firstNonWhitespace(pending); ix >= 0 {
						lineIndent = ix
						if baseIndent < 0 {
							baseIndent = lineIndent
						}
						outdent := 0
						if firstLine {
							outdent = p.selStart.Column
						}
						corrected := max(0, p.suggested.Len+(lineIndent-baseIndent)-outdent)
						pending = strings.Repeat(string(p.suggested.Char()), corrected) + pending[lineIndent:]
					}
				}
				if lineIndent >= 0 {
					if !send(differ.PushNew(pending), false) {
						return
					}
					pending = ""
				}
				if i < len(lines)-1 {
					if !send(differ.PushNew("\n"), false) {
						return
					}
					// Whitespace-only lines lose their indentation.
					pending = ""
					lineIndent = -1
					firstLine = false
				}
			}
		}

		ops := differ.PushNew(pending)
		ops = append(ops, differ.Finish()...)
		send(ops, true)
	}()

	editOffset := p.editStart
	var applyErr error
	for d := range deltas {
		a.mu.Lock()
		if a.generationID != gen || a.closed {
			a.mu.Unlock()
			for range deltas {
			}
			return "", context.Canceled
		}

		edits, equals, next := anchorOps(a.snapshot, editOffset, d.charOps)
		editOffset = next
		a.lastEqualRanges = equals

		if a.active {
			if len(edits) > 0 {
				if err := a.applyEditsLocked(edits); err != nil {
					applyErr = err
					a.mu.Unlock()
					break
				}
			}
			a.reapplyLineDiffLocked(d.lineOps)
		}
		a.ops = append(a.ops, d.charOps...)
		a.lineOps = d.lineOps
		a.mu.Unlock()
	}

	// Let the producer finish before reading what it wrote.
	for range deltas {
	}

	if applyErr == nil && ctx.Err() == nil {
		a.reapplyBatchDiff(ctx, gen)
	}
	if applyErr != nil {
		return completion.String(), applyErr
	}
	return completion.String(), streamErr
}

// anchorOps converts char operations into anchored edits against snap,
// starting at editOffset. Keeps become anchored ranges for highlight
// rendering; the returned offset is where the next batch picks up.
func anchorOps(snap *document.Snapshot, editOffset int, ops []text.CharOperation) (edits []document.Edit, equals []AnchorRange, end int) {
	for _, op := range ops {
		switch op.Kind {
		case text.CharInsert:
			at := snap.AnchorAfter(editOffset)
			edits = append(edits, document.Edit{Start: at, End: at, Text: op.Text})
		case text.CharDelete:
			next := editOffset + op.Bytes
			edits = append(edits, document.Edit{
				Start: snap.AnchorAfter(editOffset),
				End:   snap.AnchorBefore(next),
			})
			editOffset = next
		case text.CharKeep:
			next := editOffset + op.Bytes
			equals = append(equals, AnchorRange{
				Start: snap.AnchorAfter(editOffset),
				End:   snap.AnchorBefore(next),
			})
			editOffset = next
		}
	}
	return edits, equals, editOffset
}

// applyEditsLocked applies one batch of edits inside a transaction and
// merges it into the generation's first transaction, so the whole
// generation undoes as a single step. The first transaction id is
// recorded before anything else can observe it.
func (a *Alternative) applyEditsLocked(edits []document.Edit) error {
	// Keep generated edits out of any transaction the user has open.
	a.doc.FinalizeLastTransaction()
	a.doc.StartTransaction()
	changed, err := a.doc.Edit(edits)
	tx, ok := a.doc.EndTransaction()
	if err != nil {
		return err
	}
	if !ok || !changed {
		return nil
	}
	if a.hasTx {
		a.doc.MergeTransactions(tx, a.txID)
	} else {
		a.txID = tx
		a.hasTx = true
		a.doc.FinalizeLastTransaction()
	}
	return nil
}

// reapplyLineDiffLocked projects the accumulated line operations onto the
// current document, walking baseline rows and document rows in parallel.
func (a *Alternative) reapplyLineDiffLocked(lineOps []text.LineOperation) {
	oldSnap := a.snapshot
	newSnap := a.doc.Snapshot()
	oldRow := oldSnap.PointForOffset(oldSnap.Resolve(a.rangeStart)).Row
	newRow := newSnap.PointForOffset(newSnap.Resolve(a.rangeStart)).Row

	var deleted []DeletedRows
	var inserted []AnchorRange
	for _, op := range lineOps {
		switch op.Kind {
		case text.LineKeep:
			oldRow += op.Lines
			newRow += op.Lines
		case text.LineDelete:
			end := oldRow + op.Lines
			if n := len(deleted); n > 0 && deleted[n-1].Rows.End == oldRow {
				deleted[n-1].Rows.End = end
			} else {
				deleted = append(deleted, DeletedRows{
					Position: newSnap.AnchorBefore(newSnap.LineStartOffset(newRow)),
					Rows:     RowRange{Start: oldRow, End: end},
				})
			}
			oldRow = end
		case text.LineInsert:
			endRow := newRow + op.Lines - 1
			inserted = append(inserted, AnchorRange{
				Start: newSnap.AnchorBefore(newSnap.LineStartOffset(newRow)),
				End:   newSnap.AnchorBefore(newSnap.LineStartOffset(endRow) + newSnap.LineLen(endRow)),
			})
			newRow += op.Lines
		}
	}
	a.diff.DeletedRowRanges = deleted
	a.diff.InsertedRowRanges = inserted
}

// reapplyBatchDiff recomputes the diff from a full line-level comparison
// of the baseline selection against the current document and swaps it in
// atomically. It runs off the controller lock; a stale generation id
// means the result is discarded.
func (a *Alternative) reapplyBatchDiff(ctx context.Context, gen int) {
	a.mu.Lock()
	if a.generationID != gen || a.closed {
		a.mu.Unlock()
		return
	}
	oldSnap := a.snapshot
	rangeStart := a.rangeStart
	rangeEnd := a.rangeEnd
	a.mu.Unlock()

	newSnap := a.doc.Snapshot()
	oldStart := oldSnap.PointForOffset(oldSnap.Resolve(rangeStart))
	oldEnd := oldSnap.PointForOffset(oldSnap.Resolve(rangeEnd))
	newStart := newSnap.PointForOffset(newSnap.Resolve(rangeStart))
	newEnd := newSnap.PointForOffset(newSnap.Resolve(rangeEnd))

	oldText := fullLines(oldSnap, oldStart.Row, oldEnd.Row)
	newText := fullLines(newSnap, newStart.Row, newEnd.Row)
	hunks := text.LineRangeDiff(oldText, newText)
	if ctx.Err() != nil {
		return
	}

	var deleted []DeletedRows
	var inserted []AnchorRange
	for _, h := range hunks {
		if !h.OldRows.Empty() {
			deleted = append(deleted, DeletedRows{
				Position: newSnap.AnchorBefore(newSnap.LineStartOffset(newStart.Row + h.NewRows.Start)),
				Rows: RowRange{
					Start: oldStart.Row + h.OldRows.Start,
					End:   oldStart.Row + h.OldRows.End,
				},
			})
		}
		if !h.NewRows.Empty() {
			startRow := newStart.Row + h.NewRows.Start
			endRow := newStart.Row + h.NewRows.End - 1
			inserted = append(inserted, AnchorRange{
				Start: newSnap.AnchorBefore(newSnap.LineStartOffset(startRow)),
				End:   newSnap.AnchorBefore(newSnap.LineStartOffset(endRow) + newSnap.LineLen(endRow)),
			})
		}
	}

	a.mu.Lock()
	if a.generationID == gen && !a.closed {
		a.diff = Diff{DeletedRowRanges: deleted, InsertedRowRanges: inserted}
	}
	a.mu.Unlock()
}

// finish records the generation's outcome and emits Finished. A stream
// that closed without completing is attributed to the model process's
// exit error when one is available.
func (a *Alternative) finish(gen int, model provider.Model, err error, completion string, elapsed time.Duration) {
	a.mu.Lock()
	if a.generationID != gen || a.closed {
		a.mu.Unlock()
		return
	}
	a.lastEqualRanges = nil
	a.completion = completion
	a.elapsed = elapsed
	if err != nil {
		if errors.Is(err, provider.ErrStreamClosed) {
			if reporter, ok := model.(provider.ProcessReporter); ok {
				if exitErr := reporter.ExitError(); exitErr != nil {
					err = exitErr
				}
			}
		}
		a.status = Status{Kind: StatusError, Message: err.Error()}
		logger.Error("generation failed: %v", err)
	} else {
		a.status = Status{Kind: StatusDone}
		logger.Debug("generation finished in %v", elapsed)
	}
	a.mu.Unlock()
	a.emit(Event{Kind: EventFinished})
}

// suggestedIndent picks the indentation new lines are normalized to: the
// first selected line's indent, preferring tabs when that indent is empty
// and any selected line is tab indented.
func suggestedIndent(snap *document.Snapshot, start, end int) document.Indent {
	startPoint := snap.PointForOffset(start)
	endPoint := snap.PointForOffset(end)
	indent := snap.IndentForRow(startPoint.Row)
	if indent.Len == 0 && indent.Kind == document.IndentSpace {
		for row := startPoint.Row; row <= endPoint.Row && row < snap.LineCount(); row++ {
			if snap.IndentForRow(row).Kind == document.IndentTab {
				indent.Kind = document.IndentTab
				break
			}
		}
	}
	return indent
}

func fullLines(snap *document.Snapshot, startRow, endRow int) string {
	return snap.TextForRange(
		snap.LineStartOffset(startRow),
		snap.LineStartOffset(endRow)+snap.LineLen(endRow),
	)
}

func firstNonWhitespace(s string) int {
	for i, r := range s {
		if !unicode.IsSpace(r) {
			return i
		}
	}
	return -1
}
