package main

import (
	"fmt"
	"os"
	"sync"

	"github.com/neovim/go-client/nvim"

	"codegen/buffer"
	"codegen/client/llm"
	"codegen/config"
	"codegen/engine"
	"codegen/logger"
	"codegen/provider"
)

// Daemon owns the Neovim connection and the per-request generation sets.
// Neovim drives it through RPC requests; generation lifecycle events come
// back as User autocommands.
type Daemon struct {
	mu  sync.Mutex
	nv  *nvim.Nvim
	cfg config.Config

	primary  provider.Model
	registry provider.ModelRegistry

	codegen *engine.Codegen
}

func NewDaemon(cfg config.Config) (*Daemon, error) {
	addr := os.Getenv("NVIM")
	if addr == "" {
		addr = os.Getenv("NVIM_LISTEN_ADDRESS")
	}
	if addr == "" {
		return nil, fmt.Errorf("no nvim address in environment")
	}
	nv, err := nvim.Dial(addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial nvim at %s: %w", addr, err)
	}

	alternatives := make([]provider.Model, 0, len(cfg.Alternatives))
	for _, mc := range cfg.Alternatives {
		alternatives = append(alternatives, llm.NewClient(mc))
	}
	d := &Daemon{
		nv:       nv,
		cfg:      cfg,
		primary:  llm.NewClient(cfg.Primary),
		registry: &provider.StaticRegistry{Models: alternatives},
	}

	if err := d.registerHandlers(); err != nil {
		nv.Close()
		return nil, err
	}
	return d, nil
}

func (d *Daemon) registerHandlers() error {
	handlers := map[string]any{
		"CodegenStart": d.handleStart,
		"CodegenStop":  d.handleStop,
		"CodegenCycle": d.handleCycle,
		"CodegenUndo":  d.handleUndo,
	}
	for name, fn := range handlers {
		if err := d.nv.RegisterHandler(name, fn); err != nil {
			return fmt.Errorf("failed to register %s: %w", name, err)
		}
	}
	return nil
}

// Run blocks until the Neovim connection closes.
func (d *Daemon) Run() error {
	logger.Info("daemon connected")
	return d.nv.Serve()
}

// handleStart begins a generation over the given zero-based line range of
// the current buffer.
func (d *Daemon) handleStart(startRow, endRow int, prompt string) error {
	defer logger.Trace("CodegenStart")()

	mirror, err := buffer.Attach(d.nv)
	if err != nil {
		return err
	}
	snap := mirror.Snapshot()
	if endRow < startRow {
		startRow, endRow = endRow, startRow
	}
	rng := engine.AnchorRange{
		Start: snap.AnchorBefore(snap.LineStartOffset(startRow)),
		End:   snap.AnchorAfter(snap.LineStartOffset(endRow) + snap.LineLen(endRow)),
	}

	d.mu.Lock()
	if d.codegen != nil {
		d.codegen.Close()
	}
	cg := engine.NewCodegen(mirror, rng, nil, d.registry, d.cfg.GenerationConfig())
	d.codegen = cg
	d.mu.Unlock()

	go d.watch(cg)
	return cg.Start(d.primary, prompt)
}

func (d *Daemon) handleStop() error {
	d.mu.Lock()
	cg := d.codegen
	d.mu.Unlock()
	if cg != nil {
		cg.Stop()
	}
	return nil
}

func (d *Daemon) handleCycle(direction int) error {
	d.mu.Lock()
	cg := d.codegen
	d.mu.Unlock()
	if cg == nil {
		return nil
	}
	if direction < 0 {
		cg.CyclePrev()
	} else {
		cg.CycleNext()
	}
	return nil
}

func (d *Daemon) handleUndo() error {
	d.mu.Lock()
	cg := d.codegen
	d.mu.Unlock()
	if cg != nil {
		cg.Undo()
	}
	return nil
}

// watch relays generation lifecycle events to Neovim as User
// autocommands.
func (d *Daemon) watch(cg *engine.Codegen) {
	for ev := range cg.Events() {
		pattern := "CodegenFinished"
		if ev.Kind == engine.EventUndone {
			pattern = "CodegenUndone"
		}
		if err := d.nv.Command("doautocmd User " + pattern); err != nil {
			logger.Warn("failed to notify nvim: %v", err)
		}
	}
}
