package plan

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhinpan/cc-boss/internal/event"
	"github.com/jhinpan/cc-boss/internal/model"
)

type fakeStore struct {
	planning []int64
	plans    map[int64]string
	enqueued []enqueueCall
	settled  map[int64]settleCall
	nextID   int64
}

type enqueueCall struct {
	prompt   string
	priority int
}

type settleCall struct {
	status  model.Status
	metrics model.SettleMetrics
}

func newFakeStore() *fakeStore {
	return &fakeStore{plans: map[int64]string{}, settled: map[int64]settleCall{}, nextID: 100}
}

func (f *fakeStore) SetPlanning(id int64) error { f.planning = append(f.planning, id); return nil }
func (f *fakeStore) SetPlan(id int64, plan string) error { f.plans[id] = plan; return nil }

func (f *fakeStore) Enqueue(prompt string, priority int) (int64, error) {
	f.nextID++
	f.enqueued = append(f.enqueued, enqueueCall{prompt: prompt, priority: priority})
	return f.nextID, nil
}

func (f *fakeStore) Settle(id int64, status model.Status, metrics model.SettleMetrics) error {
	f.settled[id] = settleCall{status: status, metrics: metrics}
	return nil
}

type fakeRunner struct {
	events []event.Event
}

func (f *fakeRunner) Run(ctx context.Context, prompt, workspacePath, workspaceName string) (<-chan event.Event, error) {
	ch := make(chan event.Event, len(f.events))
	for _, e := range f.events {
		ch <- e
	}
	close(ch)
	return ch, nil
}

func TestCreatePlanRecordsDraftedPlan(t *testing.T) {
	store := newFakeStore()
	runner := &fakeRunner{events: []event.Event{
		{Type: event.TypeAssistant, Content: "1. read the code"},
		{Type: event.TypeAssistant, Content: "2. write the fix"},
	}}
	mgr := New(store, runner)

	task := &model.Task{ID: 1, Status: model.StatusPending, Prompt: "fix the bug"}
	require.NoError(t, mgr.CreatePlan(context.Background(), task, "/repo"))

	assert.Contains(t, store.plans[1], "read the code")
	assert.Contains(t, store.plans[1], "write the fix")
	assert.Equal(t, []int64{1}, store.planning)
}

func TestCreatePlanRejectsNonPendingTask(t *testing.T) {
	mgr := New(newFakeStore(), &fakeRunner{})
	task := &model.Task{ID: 1, Status: model.StatusRunning}
	assert.Error(t, mgr.CreatePlan(context.Background(), task, "/repo"))
}

func TestCreatePlanRecordsPlaceholderWhenDraftIsEmpty(t *testing.T) {
	store := newFakeStore()
	mgr := New(store, &fakeRunner{})
	task := &model.Task{ID: 1, Status: model.StatusPending, Prompt: "x"}
	require.NoError(t, mgr.CreatePlan(context.Background(), task, "/repo"))
	assert.Equal(t, "No plan generated.", store.plans[1])
}

func TestApproveEnqueuesExecTaskAtHigherPriorityAndSettlesOriginalDone(t *testing.T) {
	store := newFakeStore()
	mgr := New(store, &fakeRunner{})
	plan := "1. do the thing"
	task := &model.Task{ID: 7, Status: model.StatusPlanned, Prompt: "do the thing", Priority: 3, Plan: &plan}

	execID, err := mgr.Approve(task)
	require.NoError(t, err)

	require.Len(t, store.enqueued, 1)
	assert.Equal(t, 13, store.enqueued[0].priority)
	assert.Contains(t, store.enqueued[0].prompt, "do the thing")
	assert.Contains(t, store.enqueued[0].prompt, "do the thing")
	assert.Equal(t, int64(101), execID)

	settled, ok := store.settled[7]
	require.True(t, ok)
	assert.Equal(t, model.StatusDone, settled.status)
	assert.Equal(t, "Plan approved and enqueued for execution", settled.metrics.ResultSummary)
}

func TestApproveRejectsTaskWithoutPlan(t *testing.T) {
	mgr := New(newFakeStore(), &fakeRunner{})
	task := &model.Task{ID: 1, Status: model.StatusPending}
	_, err := mgr.Approve(task)
	assert.Error(t, err)
}

func TestRejectSettlesTaskFailedWithPlanRejectedError(t *testing.T) {
	store := newFakeStore()
	mgr := New(store, &fakeRunner{})
	task := &model.Task{ID: 3, Status: model.StatusPlanned}
	require.NoError(t, mgr.Reject(task))

	settled, ok := store.settled[3]
	require.True(t, ok)
	assert.Equal(t, model.StatusFailed, settled.status)
	assert.Equal(t, "Plan rejected", settled.metrics.Error)
}

func TestRejectRejectsTaskWithoutPlan(t *testing.T) {
	mgr := New(newFakeStore(), &fakeRunner{})
	task := &model.Task{ID: 1, Status: model.StatusPending}
	assert.Error(t, mgr.Reject(task))
}
