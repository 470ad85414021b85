package trigger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaykayhq/insight-pipeline/internal/model"
	"github.com/jaykayhq/insight-pipeline/internal/pipeline"
	"github.com/jaykayhq/insight-pipeline/internal/repository"
	workers "github.com/jaykayhq/insight-pipeline/internal/worker"
)

type fakeSweeper struct {
	res   pipeline.SweepResult
	err   error
	calls int
}

func (f *fakeSweeper) Sweep(context.Context) (pipeline.SweepResult, error) {
	f.calls++
	return f.res, f.err
}

func newRegistry(t *testing.T, store *repository.MemoryStore, fn func(context.Context, repository.Task) (pipeline.Outcome, error), ready error) *workers.Registry {
	t.Helper()
	r := workers.NewRegistry()
	action := pipeline.ActionFunc{
		Type:    model.TaskTypeScrapeRSSFeed,
		ReadyFn: func() error { return ready },
		Fn:      fn,
	}
	require.NoError(t, r.Register(pipeline.NewAgent(action, store, pipeline.DefaultGraph(), zerolog.Nop())))
	return r
}

func runAgentTask(t *testing.T, taskType string) *asynq.Task {
	t.Helper()
	task, err := NewRunAgentTask(taskType, Options{})
	require.NoError(t, err)
	return task
}

func TestHandleOrchestrate(t *testing.T) {
	sw := &fakeSweeper{res: pipeline.SweepResult{Created: 2}}
	h := NewHandler(sw, workers.NewRegistry(), zerolog.Nop())

	require.NoError(t, h.HandleOrchestrate(context.Background(), NewOrchestrateTask(Options{})))
	assert.Equal(t, 1, sw.calls)

	sw.err = errors.New("db down")
	err := h.HandleOrchestrate(context.Background(), NewOrchestrateTask(Options{}))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.ErrorContains(t, err, "db down")
}

func TestHandleRunAgent_CompletesTask(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	created, err := store.InsertTask(ctx, model.TaskTypeScrapeRSSFeed, json.RawMessage(`{"url":"https://a.com"}`))
	require.NoError(t, err)

	r := newRegistry(t, store, func(context.Context, repository.Task) (pipeline.Outcome, error) {
		return pipeline.Outcome{Result: map[string]string{"message": "ok"}}, nil
	}, nil)
	h := NewHandler(&fakeSweeper{}, r, zerolog.Nop())

	require.NoError(t, h.HandleRunAgent(ctx, runAgentTask(t, model.TaskTypeScrapeRSSFeed)))

	got, err := store.GetTask(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusCompleted, got.Status)

	// 队列空时什么都不做
	assert.NoError(t, h.HandleRunAgent(ctx, runAgentTask(t, model.TaskTypeScrapeRSSFeed)))
}

func TestHandleRunAgent_Errors(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	_, err := store.InsertTask(ctx, model.TaskTypeScrapeRSSFeed, nil)
	require.NoError(t, err)

	r := newRegistry(t, store, func(context.Context, repository.Task) (pipeline.Outcome, error) {
		return pipeline.Outcome{}, pipeline.NoData("empty feed")
	}, nil)
	h := NewHandler(&fakeSweeper{}, r, zerolog.Nop())

	err = h.HandleRunAgent(ctx, runAgentTask(t, model.TaskTypeScrapeRSSFeed))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.ErrorIs(t, err, pipeline.ErrNoData)

	err = h.HandleRunAgent(ctx, runAgentTask(t, "UNKNOWN_TYPE"))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.ErrorIs(t, err, workers.ErrAgentNotFound)

	err = h.HandleRunAgent(ctx, asynq.NewTask(TypeRunAgent, []byte(`{}`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleRunAgent_NotReadyIsQuiet(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	created, err := store.InsertTask(ctx, model.TaskTypeScrapeRSSFeed, nil)
	require.NoError(t, err)

	r := newRegistry(t, store, nil, pipeline.ConfigMissing("FEED_TOKEN"))
	h := NewHandler(&fakeSweeper{}, r, zerolog.Nop())

	assert.NoError(t, h.HandleRunAgent(ctx, runAgentTask(t, model.TaskTypeScrapeRSSFeed)))

	got, err := store.GetTask(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusPending, got.Status)
}

func TestMux_Routes(t *testing.T) {
	sw := &fakeSweeper{}
	h := NewHandler(sw, workers.NewRegistry(), zerolog.Nop())
	require.NoError(t, h.Mux().ProcessTask(context.Background(), NewOrchestrateTask(Options{})))
	assert.Equal(t, 1, sw.calls)
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(zerolog.New(&buf))
	l.Info("scheduler ", "started")
	assert.Contains(t, buf.String(), `"component":"asynq"`)
	assert.Contains(t, buf.String(), `"message":"scheduler started"`)
}
