// Package factory owns the process-wide model snapshot: the loaded model
// document compiled into a simulation system plus its graph projection.
// Readers grab an immutable snapshot and never see a half-reloaded state.
package factory

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/driftlab/stockflow/internal/config"
	"github.com/driftlab/stockflow/internal/graph"
	"github.com/driftlab/stockflow/internal/model"
	"github.com/driftlab/stockflow/internal/sim"
)

// Snapshot is one consistent view of the model. All fields are read-only
// after construction.
type Snapshot struct {
	Model    *model.Model
	System   *sim.System
	Graph    *graph.Graph
	LoadedAt time.Time
}

// Factory loads the model document and swaps snapshots atomically.
type Factory struct {
	path    string
	logger  *slog.Logger
	current atomic.Pointer[Snapshot]
}

// New creates a factory for the model document at path. Call Init before the
// first Current.
func New(path string, logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Factory{path: path, logger: logger}
}

// Path returns the model document path.
func (f *Factory) Path() string { return f.path }

// Init loads and compiles the model document and installs the first snapshot.
func (f *Factory) Init() error {
	return f.Reload()
}

// Reload reloads the document from disk and swaps in a fresh snapshot. On
// failure the previous snapshot stays in place.
func (f *Factory) Reload() error {
	m, err := config.LoadModel(f.path)
	if err != nil {
		return err
	}

	snap, err := f.build(m)
	if err != nil {
		return err
	}

	f.current.Store(snap)
	f.logger.Info("model snapshot installed",
		slog.String("path", f.path),
		slog.Int("states", len(m.States)),
		slog.Int("scenarios", len(m.Scenarios)))
	return nil
}

// Commit compiles the given model, writes it back to the document, and swaps
// it in as the current snapshot. An uncompilable model is rejected before
// anything touches disk.
func (f *Factory) Commit(m *model.Model) error {
	snap, err := f.build(m)
	if err != nil {
		return err
	}
	if err := config.SaveModel(f.path, m); err != nil {
		return err
	}

	f.current.Store(snap)
	f.logger.Info("model committed", slog.String("path", f.path))
	return nil
}

// Current returns the active snapshot. It panics if Init has never succeeded;
// callers go through Init during startup.
func (f *Factory) Current() *Snapshot {
	snap := f.current.Load()
	if snap == nil {
		panic("factory: Current called before Init")
	}
	return snap
}

func (f *Factory) build(m *model.Model) (*Snapshot, error) {
	if errs := m.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("model is structurally invalid: %v", errs)
	}
	system, err := sim.CompileModel(m, f.logger)
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		Model:    m,
		System:   system,
		Graph:    graph.Project(m),
		LoadedAt: time.Now().UTC(),
	}, nil
}
