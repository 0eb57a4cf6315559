// ABOUTME: Named source registry over the orchestrator for the HTTP, MCP, and CLI surfaces
// ABOUTME: Sources are built on demand so missing credentials only fail the run that needs them
package sync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	gosync "sync"

	"github.com/harperreed/outreach/models"
)

// ErrUnknownSource is returned for a source name nobody registered.
var ErrUnknownSource = errors.New("unknown sync source")

// SourceFactory builds a source when a run starts.
type SourceFactory func(ctx context.Context) (Source, error)

type Runner struct {
	*Orchestrator

	mu        gosync.Mutex
	factories map[string]SourceFactory
	running   map[string]bool
}

// NewRunner wraps orch with an empty registry.
func NewRunner(orch *Orchestrator) *Runner {
	return &Runner{
		Orchestrator: orch,
		factories:    make(map[string]SourceFactory),
		running:      make(map[string]bool),
	}
}

// Register adds or replaces the factory for name.
func (r *Runner) Register(name string, factory SourceFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Sources lists registered source names in order.
func (r *Runner) Sources() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ErrRunInProgress is returned when the same source is already syncing in
// this process.
var ErrRunInProgress = errors.New("sync already running for source")

// RunSource builds the named source and runs it.
func (r *Runner) RunSource(ctx context.Context, name string, opts RunOptions) (*models.SyncRun, error) {
	r.mu.Lock()
	factory, ok := r.factories[name]
	if ok && r.running[name] {
		r.mu.Unlock()
		return nil, fmt.Errorf("%s: %w", name, ErrRunInProgress)
	}
	if ok {
		r.running[name] = true
	}
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownSource)
	}
	defer func() {
		r.mu.Lock()
		delete(r.running, name)
		r.mu.Unlock()
	}()

	src, err := factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to set up %s source: %w", name, err)
	}
	return r.Run(ctx, src, opts)
}
