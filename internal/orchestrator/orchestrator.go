// Package orchestrator owns the fleet of worker loops: it starts N workers
// against the shared repository, each in its own worktree, and stops them
// together on shutdown.
package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jhinpan/cc-boss/internal/bus"
	"github.com/jhinpan/cc-boss/internal/event"
	"github.com/jhinpan/cc-boss/internal/logging"
	"github.com/jhinpan/cc-boss/internal/model"
	"github.com/jhinpan/cc-boss/internal/worker"
)

// workspacePrefix names each worker's worktree so concurrent workers never
// collide on the same checkout.
const workspacePrefix = "fleet-worker-"

// taskStore is the subset of the store a worker loop needs, re-declared
// here so callers can pass *store.Store without this package importing it.
type taskStore interface {
	Claim(workerID int) (*model.Task, error)
	Enqueue(prompt string, priority int) (int64, error)
	Settle(id int64, status model.Status, metrics model.SettleMetrics) error
	LogEvent(taskID int64, eventType, content, rawJSON string) error
}

// agentRunner is the subset of the runner a worker loop needs.
type agentRunner interface {
	Run(ctx context.Context, prompt, workspacePath, workspaceName string) (<-chan event.Event, error)
}

// Config configures the fleet.
type Config struct {
	MaxWorkers   int
	RepoPath     string
	ProgressFile string
}

// Orchestrator runs Config.MaxWorkers worker loops concurrently.
type Orchestrator struct {
	cfg    Config
	store  taskStore
	runner agentRunner
	bus    *bus.Bus
	logger *logging.Logger

	mu      sync.RWMutex
	loops   []*worker.Loop
	cancel  context.CancelFunc
	group   *errgroup.Group
	running bool
}

// New builds an Orchestrator. eventBus may be nil for configurations that
// don't need a live event stream (e.g. tests).
func New(cfg Config, store taskStore, runner agentRunner, eventBus *bus.Bus, log *logging.Logger) *Orchestrator {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 1
	}
	return &Orchestrator{cfg: cfg, store: store, runner: runner, bus: eventBus, logger: log}
}

// Start launches all worker loops in the background and returns immediately.
// Calling Start twice without an intervening Stop is an error.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.running {
		return fmt.Errorf("orchestrator is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.loops = make([]*worker.Loop, o.cfg.MaxWorkers)

	// A nil *bus.Bus must be passed to worker.New as a nil interface, not a
	// non-nil interface wrapping a nil pointer — the latter would make the
	// worker loop's own nil check on the interface value pass and then
	// panic calling Publish on a nil receiver.
	var eventBus worker.EventPublisher
	if o.bus != nil {
		eventBus = o.bus
	}

	g, gCtx := errgroup.WithContext(runCtx)
	for i := 0; i < o.cfg.MaxWorkers; i++ {
		workerID := i
		loop := worker.New(worker.Config{
			WorkerID:      workerID,
			RepoPath:      o.cfg.RepoPath,
			WorkspaceName: fmt.Sprintf("%s%d", workspacePrefix, workerID),
			ProgressFile:  o.cfg.ProgressFile,
		}, o.store, o.runner, eventBus, o.logger)
		o.loops[workerID] = loop

		g.Go(func() error {
			loop.Run(gCtx)
			return nil
		})
	}

	o.group = g
	o.running = true

	return nil
}

// Stop cancels every worker loop's execution context and blocks until all of
// them have actually exited, via the same errgroup.Wait() Start launched
// them with. After Stop returns, Running() reports false and no worker has a
// task in flight.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	cancel := o.cancel
	g := o.group
	o.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if g != nil {
		_ = g.Wait()
	}

	o.mu.Lock()
	o.running = false
	o.mu.Unlock()
}

// Running reports whether the fleet is currently started.
func (o *Orchestrator) Running() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.running
}

// WorkerStatuses returns a point-in-time snapshot of every worker slot.
func (o *Orchestrator) WorkerStatuses() []model.WorkerStatus {
	o.mu.RLock()
	defer o.mu.RUnlock()

	statuses := make([]model.WorkerStatus, 0, len(o.loops))
	for _, l := range o.loops {
		if l == nil {
			continue
		}
		statuses = append(statuses, l.Status())
	}
	return statuses
}
