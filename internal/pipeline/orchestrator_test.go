package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaykayhq/insight-pipeline/internal/model"
	"github.com/jaykayhq/insight-pipeline/internal/repository"
)

var sweepNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newOrchestrator(store *repository.MemoryStore) *Orchestrator {
	o := NewOrchestrator(store, store, 0, zerolog.Nop())
	o.now = func() time.Time { return sweepNow }
	return o
}

func TestOrchestrator_CreatesTaskAndSetsCooldown(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	require.NoError(t, store.UpsertSource(ctx, repository.Source{Name: model.TaskTypeFetchXTrends}))

	res, err := newOrchestrator(store).Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, "Orchestration check complete. Created 1 new tasks.", res.Message())

	items, err := store.ListTasks(ctx, repository.ListTasksFilter{TaskType: model.TaskTypeFetchXTrends})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, model.TaskStatusPending, items[0].Status)
	assert.Equal(t, items[0].ID, res.Decisions[0].TaskID)

	sources, err := store.ListSources(ctx)
	require.NoError(t, err)
	require.NotNil(t, sources[0].CoolDownUntil)
	assert.True(t, sources[0].CoolDownUntil.Equal(sweepNow.Add(15*time.Minute)))
}

func TestOrchestrator_UsesSourceIntervalAndPayload(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	require.NoError(t, store.UpsertSource(ctx, repository.Source{
		Name:            model.TaskTypeScrapeRSSFeed,
		RefreshInterval: time.Hour,
		DefaultPayload:  json.RawMessage(`{"url":"https://punchng.com/feed"}`),
	}))

	_, err := newOrchestrator(store).Sweep(ctx)
	require.NoError(t, err)

	items, err := store.ListTasks(ctx, repository.ListTasksFilter{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.JSONEq(t, `{"url":"https://punchng.com/feed"}`, string(items[0].Payload))

	sources, err := store.ListSources(ctx)
	require.NoError(t, err)
	assert.True(t, sources[0].CoolDownUntil.Equal(sweepNow.Add(time.Hour)))
}

func TestOrchestrator_SkipsCoolingDownSource(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	until := sweepNow.Add(time.Minute)
	require.NoError(t, store.UpsertSource(ctx, repository.Source{Name: model.TaskTypeFetchXTrends, CoolDownUntil: &until}))

	res, err := newOrchestrator(store).Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Created)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, DecisionCoolingDown, res.Decisions[0].Decision)

	n, err := store.CountPendingTasks(ctx, model.TaskTypeFetchXTrends)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOrchestrator_ExpiredCooldownIsEligible(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	until := sweepNow.Add(-time.Second)
	require.NoError(t, store.UpsertSource(ctx, repository.Source{Name: model.TaskTypeFetchXTrends, CoolDownUntil: &until}))

	res, err := newOrchestrator(store).Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
}

func TestOrchestrator_PendingTaskLeavesCooldownUntouched(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	require.NoError(t, store.UpsertSource(ctx, repository.Source{Name: model.TaskTypeFetchXTrends}))
	_, err := store.InsertTask(ctx, model.TaskTypeFetchXTrends, nil)
	require.NoError(t, err)

	res, err := newOrchestrator(store).Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Created)
	assert.Equal(t, DecisionPendingExists, res.Decisions[0].Decision)

	sources, err := store.ListSources(ctx)
	require.NoError(t, err)
	assert.Nil(t, sources[0].CoolDownUntil)
}

func TestOrchestrator_BackToBackSweepsCreateOneTask(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	require.NoError(t, store.UpsertSource(ctx, repository.Source{Name: model.TaskTypeFetchXTrends}))

	o := newOrchestrator(store)
	first, err := o.Sweep(ctx)
	require.NoError(t, err)
	second, err := o.Sweep(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, first.Created)
	assert.Zero(t, second.Created)

	n, err := store.CountPendingTasks(ctx, model.TaskTypeFetchXTrends)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

// flakyTasks 对指定类型的 pending 计数返回错误
type flakyTasks struct {
	*repository.MemoryStore
	failType string
}

func (f *flakyTasks) CountPendingTasks(ctx context.Context, taskType string) (int, error) {
	if taskType == f.failType {
		return 0, errors.New("db unavailable")
	}
	return f.MemoryStore.CountPendingTasks(ctx, taskType)
}

func TestOrchestrator_PerSourceErrorIsSkipped(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	require.NoError(t, store.UpsertSource(ctx, repository.Source{Name: model.TaskTypeCrawlWebPage}))
	require.NoError(t, store.UpsertSource(ctx, repository.Source{Name: model.TaskTypeFetchXTrends}))

	tasks := &flakyTasks{MemoryStore: store, failType: model.TaskTypeCrawlWebPage}
	o := NewOrchestrator(store, tasks, 0, zerolog.Nop())

	res, err := o.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.Errors)
	assert.Equal(t, DecisionError, res.Decisions[0].Decision)
	assert.Equal(t, "db unavailable", res.Decisions[0].Error)
	assert.Equal(t, DecisionCreated, res.Decisions[1].Decision)
}

type brokenSources struct{ repository.SourceRepository }

func (brokenSources) ListSources(context.Context) ([]repository.Source, error) {
	return nil, errors.New("relation data_sources does not exist")
}

func TestOrchestrator_ListSourcesFailure(t *testing.T) {
	store := repository.NewMemoryStore()
	o := NewOrchestrator(brokenSources{}, store, 0, zerolog.Nop())

	_, err := o.Sweep(context.Background())
	assert.ErrorContains(t, err, "list sources")
}
