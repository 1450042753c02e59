package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhinpan/cc-boss/internal/event"
	"github.com/jhinpan/cc-boss/internal/logging"
	"github.com/jhinpan/cc-boss/internal/model"
)

type fakeStore struct {
	mu      sync.Mutex
	pending []*model.Task
	claims  map[int]int
}

func newFakeStore(tasks ...*model.Task) *fakeStore {
	return &fakeStore{pending: tasks, claims: map[int]int{}}
}

func (f *fakeStore) Claim(workerID int) (*model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.claims[workerID]++
	if len(f.pending) == 0 {
		return nil, nil
	}
	t := f.pending[0]
	f.pending = f.pending[1:]
	return t, nil
}

func (f *fakeStore) Enqueue(prompt string, priority int) (int64, error) { return 1, nil }
func (f *fakeStore) Settle(id int64, status model.Status, metrics model.SettleMetrics) error {
	return nil
}
func (f *fakeStore) LogEvent(taskID int64, eventType, content, rawJSON string) error { return nil }

type fakeRunner struct{}

func (fakeRunner) Run(ctx context.Context, prompt, workspacePath, workspaceName string) (<-chan event.Event, error) {
	ch := make(chan event.Event)
	close(ch)
	return ch, nil
}

func TestStartLaunchesConfiguredWorkerCount(t *testing.T) {
	store := newFakeStore()
	o := New(Config{MaxWorkers: 3}, store, fakeRunner{}, nil, logging.Default())

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, o.Start(ctx))
	defer cancel()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		store.mu.Lock()
		n := len(store.claims)
		store.mu.Unlock()
		if n == 3 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Len(t, store.claims, 3)
}

func TestStartTwiceWithoutStopErrors(t *testing.T) {
	o := New(Config{MaxWorkers: 1}, newFakeStore(), fakeRunner{}, nil, logging.Default())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, o.Start(ctx))
	assert.Error(t, o.Start(ctx))
}

func TestStopBlocksUntilAllWorkersHaveSettled(t *testing.T) {
	o := New(Config{MaxWorkers: 2}, newFakeStore(), fakeRunner{}, nil, logging.Default())
	ctx := context.Background()
	require.NoError(t, o.Start(ctx))

	assert.True(t, o.Running())
	o.Stop()

	assert.False(t, o.Running())
}

func TestWorkerStatusesReportsOneEntryPerWorker(t *testing.T) {
	o := New(Config{MaxWorkers: 2}, newFakeStore(), fakeRunner{}, nil, logging.Default())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, o.Start(ctx))

	statuses := o.WorkerStatuses()
	assert.Len(t, statuses, 2)
}
