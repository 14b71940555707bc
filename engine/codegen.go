package engine

import (
	"fmt"
	"sync"
	"time"

	"codegen/document"
	"codegen/logger"
	"codegen/provider"
	"codegen/types"
)

// Codegen fans one generation request out to a primary model plus the
// registry's alternative models, each with its own controller, and lets
// the user cycle through the competing results. Exactly one controller is
// active at a time; cycling undoes the outgoing controller's edits and
// replays the incoming one's.
type Codegen struct {
	mu       sync.Mutex
	doc      document.Document
	rng      AnchorRange
	registry provider.ModelRegistry
	config   types.GenerationConfig

	alternatives []*Alternative
	active       int
	seen         map[int]bool

	// initialTx is the transaction that created the generation range,
	// for example the newline inserted to open an empty block. Undo
	// reverts it together with the generation.
	initialTx    document.TransactionID
	hasInitialTx bool

	events chan Event
	closed bool
}

// NewCodegen creates a set with a single inactive-free primary
// controller. initialTx, when non-nil, is undone together with the
// generation.
func NewCodegen(doc document.Document, rng AnchorRange, initialTx *document.TransactionID, registry provider.ModelRegistry, config types.GenerationConfig) *Codegen {
	cg := &Codegen{
		doc:      doc,
		rng:      rng,
		registry: registry,
		config:   config,
		seen:     make(map[int]bool),
		events:   make(chan Event, 16),
	}
	if initialTx != nil {
		cg.initialTx = *initialTx
		cg.hasInitialTx = true
	}
	primary := NewAlternative(doc, rng, false, config)
	cg.alternatives = []*Alternative{primary}
	cg.forward(primary)
	cg.mu.Lock()
	cg.activateLocked(0)
	cg.mu.Unlock()
	return cg
}

// Events returns the set's event channel: the active controller's
// Finished and Undone events.
func (cg *Codegen) Events() <-chan Event { return cg.events }

// Alternatives returns the current controllers, primary first.
func (cg *Codegen) Alternatives() []*Alternative {
	cg.mu.Lock()
	defer cg.mu.Unlock()
	return append([]*Alternative(nil), cg.alternatives...)
}

// ActiveAlternative returns the currently active controller.
func (cg *Codegen) ActiveAlternative() *Alternative {
	cg.mu.Lock()
	defer cg.mu.Unlock()
	return cg.alternatives[cg.active]
}

func (cg *Codegen) Status() Status {
	return cg.ActiveAlternative().Status()
}

func (cg *Codegen) Diff() Diff {
	return cg.ActiveAlternative().Diff()
}

func (cg *Codegen) CurrentCompletion() string {
	return cg.ActiveAlternative().CurrentCompletion()
}

func (cg *Codegen) LastEqualRanges() []AnchorRange {
	return cg.ActiveAlternative().LastEqualRanges()
}

func (cg *Codegen) Elapsed() time.Duration {
	return cg.ActiveAlternative().Elapsed()
}

// AlternativeCount is always one more than the registry's current
// alternative list; the registry is consulted live so configuration
// changes show up immediately.
func (cg *Codegen) AlternativeCount() int {
	return 1 + len(cg.registry.AlternativeModels())
}

// ActiveIndex returns the active controller's position, 0 being the
// primary.
func (cg *Codegen) ActiveIndex() int {
	cg.mu.Lock()
	defer cg.mu.Unlock()
	return cg.active
}

// SeenAlternatives reports how many controllers the user has looked at.
func (cg *Codegen) SeenAlternatives() int {
	cg.mu.Lock()
	defer cg.mu.Unlock()
	return len(cg.seen)
}

// Start begins a fresh generation on every model: the primary given here
// plus one controller per registry alternative. Any previous generation's
// edits are undone first. Starting is all or nothing: if any controller
// fails to start, the ones already started are stopped and the error is
// returned.
func (cg *Codegen) Start(primary provider.Model, prompt string) error {
	cg.mu.Lock()
	if cg.closed {
		cg.mu.Unlock()
		return fmt.Errorf("engine: codegen is closed")
	}

	alternativeModels := cg.registry.AlternativeModels()

	cg.alternatives[cg.active].Undo()
	cg.activateLocked(0)
	for _, alt := range cg.alternatives[1:] {
		alt.Close()
	}
	cg.alternatives = cg.alternatives[:1]
	for range alternativeModels {
		alt := NewAlternative(cg.doc, cg.rng, false, cg.config)
		cg.forward(alt)
		cg.alternatives = append(cg.alternatives, alt)
	}
	controllers := cg.alternatives
	cg.mu.Unlock()

	models := append([]provider.Model{primary}, alternativeModels...)
	for i, model := range models {
		if err := controllers[i].Start(model, prompt); err != nil {
			for j := 0; j < i; j++ {
				controllers[j].Stop()
			}
			return fmt.Errorf("engine: starting alternative %d: %w", i, err)
		}
	}
	logger.Debug("started %d generation(s)", len(models))
	return nil
}

// CycleNext activates the next alternative, wrapping around.
func (cg *Codegen) CycleNext() {
	cg.mu.Lock()
	defer cg.mu.Unlock()
	cg.activateLocked((cg.active + 1) % len(cg.alternatives))
}

// CyclePrev activates the previous alternative, wrapping around.
func (cg *Codegen) CyclePrev() {
	cg.mu.Lock()
	defer cg.mu.Unlock()
	cg.activateLocked((cg.active - 1 + len(cg.alternatives)) % len(cg.alternatives))
}

func (cg *Codegen) activateLocked(index int) {
	if cg.seen == nil {
		cg.seen = make(map[int]bool)
	}
	cg.seen[index] = true
	if index != cg.active {
		cg.alternatives[cg.active].SetActive(false)
	}
	cg.active = index
	cg.alternatives[index].SetActive(true)
}

// Stop cancels every controller's generation.
func (cg *Codegen) Stop() {
	cg.mu.Lock()
	controllers := append([]*Alternative(nil), cg.alternatives...)
	cg.mu.Unlock()
	for _, alt := range controllers {
		alt.Stop()
	}
}

// Undo reverts the active controller's edits plus the transaction that
// created the range, if any.
func (cg *Codegen) Undo() {
	cg.mu.Lock()
	active := cg.alternatives[cg.active]
	hasInitial := cg.hasInitialTx
	initial := cg.initialTx
	cg.hasInitialTx = false
	cg.mu.Unlock()

	active.Undo()
	if hasInitial {
		cg.doc.UndoTransaction(initial)
	}
}

// Close shuts down every controller and closes the event channel.
func (cg *Codegen) Close() {
	cg.mu.Lock()
	if cg.closed {
		cg.mu.Unlock()
		return
	}
	cg.closed = true
	controllers := append([]*Alternative(nil), cg.alternatives...)
	cg.mu.Unlock()

	for _, alt := range controllers {
		alt.Close()
	}

	cg.mu.Lock()
	close(cg.events)
	cg.mu.Unlock()
}

// forward relays a controller's events while it is the active one.
func (cg *Codegen) forward(alt *Alternative) {
	go func() {
		for ev := range alt.Events() {
			cg.mu.Lock()
			isActive := !cg.closed && cg.alternatives[cg.active] == alt
			if isActive {
				select {
				case cg.events <- ev:
				default:
					logger.Warn("dropping codegen event %v", ev.Kind)
				}
			}
			cg.mu.Unlock()
		}
	}()
}
