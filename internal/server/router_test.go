package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaykayhq/insight-pipeline/internal/healthcheck"
	"github.com/jaykayhq/insight-pipeline/internal/model"
	"github.com/jaykayhq/insight-pipeline/internal/payload"
	"github.com/jaykayhq/insight-pipeline/internal/pipeline"
	"github.com/jaykayhq/insight-pipeline/internal/repository"
	_ "github.com/jaykayhq/insight-pipeline/internal/server/docs"
	"github.com/jaykayhq/insight-pipeline/internal/server/dto"
	workers "github.com/jaykayhq/insight-pipeline/internal/worker"
)

type testEnv struct {
	store   *repository.MemoryStore
	handler http.Handler
	// feedFn SCRAPE_RSS_FEED 动作的行为，测试内可替换
	feedFn func(context.Context, repository.Task) (pipeline.Outcome, error)
}

func newTestEnv(t *testing.T, insightsReady error) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &testEnv{store: repository.NewMemoryStore()}
	env.feedFn = func(context.Context, repository.Task) (pipeline.Outcome, error) {
		return pipeline.Outcome{
			Result: payload.MessageResult{Message: "Successfully scraped 1 headlines."},
			FollowUps: []pipeline.FollowUp{{
				TaskType: model.TaskTypeGenerateInsights,
				Payload:  payload.GenerateInsights{Prompt: "p", Source: "punch"},
			}},
		}, nil
	}

	graph := pipeline.DefaultGraph()
	log := zerolog.Nop()
	registry := workers.NewRegistry()
	actions := []pipeline.Action{
		pipeline.ActionFunc{
			Type: model.TaskTypeScrapeRSSFeed,
			Fn: func(ctx context.Context, task repository.Task) (pipeline.Outcome, error) {
				return env.feedFn(ctx, task)
			},
		},
		pipeline.ActionFunc{
			Type:    model.TaskTypeGenerateInsights,
			ReadyFn: func() error { return insightsReady },
			Fn: func(context.Context, repository.Task) (pipeline.Outcome, error) {
				return pipeline.Outcome{}, nil
			},
		},
	}
	for _, a := range actions {
		require.NoError(t, registry.Register(pipeline.NewAgent(a, env.store, graph, log)))
	}

	env.handler = NewRouter(Deps{
		Store:         env.store.Store(),
		Registry:      registry,
		Orchestrator:  pipeline.NewOrchestrator(env.store, env.store, time.Minute, log),
		Graph:         graph,
		HealthChecker: healthcheck.NewHealthChecker("memory", nil, nil),
		Logger:        &log,
	})
	return env
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func (e *testEnv) insert(t *testing.T, taskType, raw string) *repository.Task {
	t.Helper()
	task, err := e.store.InsertTask(context.Background(), taskType, json.RawMessage(raw))
	require.NoError(t, err)
	return task
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestRunAgent_NoPendingTasks(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(http.MethodPost, "/api/v1/agents/SCRAPE_RSS_FEED/run", "")

	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[dto.RunAgentResponse](t, w)
	assert.Equal(t, "No pending tasks.", resp.Message)
	assert.Equal(t, "idle", resp.Status)
	assert.Empty(t, resp.TaskID)
}

func TestRunAgent_CompletesAndCreatesFollowUp(t *testing.T) {
	env := newTestEnv(t, nil)
	task := env.insert(t, model.TaskTypeScrapeRSSFeed, `{"url":"https://punchng.com/feed"}`)

	w := env.do(http.MethodPost, "/api/v1/agents/SCRAPE_RSS_FEED/run", "")

	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[dto.RunAgentResponse](t, w)
	assert.Equal(t, "Task completed successfully.", resp.Message)
	assert.Equal(t, task.ID, resp.TaskID)
	require.Len(t, resp.FollowUpIDs, 1)

	followUp, err := env.store.GetTask(context.Background(), resp.FollowUpIDs[0])
	require.NoError(t, err)
	assert.Equal(t, model.TaskTypeGenerateInsights, followUp.TaskType)
	assert.Equal(t, model.TaskStatusPending, followUp.Status)

	done, err := env.store.GetTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusCompleted, done.Status)
	assert.JSONEq(t, `{"message":"Successfully scraped 1 headlines."}`, string(done.Result))
}

func TestRunAgent_FailureReturns500(t *testing.T) {
	env := newTestEnv(t, nil)
	env.feedFn = func(context.Context, repository.Task) (pipeline.Outcome, error) {
		return pipeline.Outcome{}, pipeline.NoData("No headlines found in the RSS feed.")
	}
	task := env.insert(t, model.TaskTypeScrapeRSSFeed, `{"url":"https://punchng.com/feed"}`)

	w := env.do(http.MethodPost, "/api/v1/agents/SCRAPE_RSS_FEED/run", "")

	require.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decode[dto.ErrorResponse](t, w)
	assert.Equal(t, task.ID, resp.TaskID)
	assert.Equal(t, "no_data", resp.Kind)

	got, err := env.store.GetTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusFailed, got.Status)
	assert.Equal(t, "no data found: No headlines found in the RSS feed.", got.LastError)
}

func TestRunAgent_ConfigMissingReturns503(t *testing.T) {
	env := newTestEnv(t, pipeline.ConfigMissing("GEMINI_API_KEY"))
	task := env.insert(t, model.TaskTypeGenerateInsights, `{"prompt":"p"}`)

	w := env.do(http.MethodPost, "/api/v1/agents/GENERATE_INSIGHTS/run", "")

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "config_missing", decode[dto.ErrorResponse](t, w).Kind)

	// 未认领
	got, err := env.store.GetTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusPending, got.Status)
}

func TestRunAgent_UnknownOrInvalidType(t *testing.T) {
	env := newTestEnv(t, nil)

	assert.Equal(t, http.StatusNotFound, env.do(http.MethodPost, "/api/v1/agents/FETCH_WEATHER/run", "").Code)
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPost, "/api/v1/agents/fetch-weather/run", "").Code)
}

func TestRunOrchestrator(t *testing.T) {
	env := newTestEnv(t, nil)
	require.NoError(t, env.store.UpsertSource(context.Background(), repository.Source{
		Name:           model.TaskTypeScrapeRSSFeed,
		DefaultPayload: json.RawMessage(`{"url":"https://punchng.com/feed"}`),
	}))

	w := env.do(http.MethodPost, "/api/v1/orchestrator/run", "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[dto.OrchestratorRunResponse](t, w)
	assert.Equal(t, "Orchestration check complete. Created 1 new tasks.", resp.Message)
	assert.Equal(t, 1, resp.Created)

	resp = decode[dto.OrchestratorRunResponse](t, env.do(http.MethodPost, "/api/v1/orchestrator/run", ""))
	assert.Equal(t, "Orchestration check complete. Created 0 new tasks.", resp.Message)
	assert.Equal(t, 0, resp.Created)
	assert.Equal(t, 1, resp.Skipped)

	n, err := env.store.CountPendingTasks(context.Background(), model.TaskTypeScrapeRSSFeed)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCreateTask(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(http.MethodPost, "/api/v1/tasks", `{"task_type":"SCRAPE_RSS_FEED","payload":{"url":"https://punchng.com/feed"}}`)
	require.Equal(t, http.StatusCreated, w.Code)
	resp := decode[dto.TaskResponse](t, w)
	assert.Equal(t, model.TaskStatusPending, resp.Task.Status)
	assert.JSONEq(t, `{"url":"https://punchng.com/feed"}`, string(resp.Task.Payload))

	tests := []struct {
		name string
		body string
	}{
		{"missing task_type", `{"payload":{}}`},
		{"bad task_type", `{"task_type":"scrape"}`},
		{"no agent", `{"task_type":"FETCH_WEATHER"}`},
		{"missing url", `{"task_type":"SCRAPE_RSS_FEED","payload":{}}`},
		{"unknown field", `{"task_type":"SCRAPE_RSS_FEED","payload":{"url":"https://a.com","link":"x"}}`},
		{"not json", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPost, "/api/v1/tasks", tt.body).Code)
		})
	}
}

func TestListAndGetTasks(t *testing.T) {
	env := newTestEnv(t, nil)
	first := env.insert(t, model.TaskTypeScrapeRSSFeed, `{"url":"https://a.com"}`)
	env.insert(t, model.TaskTypeGenerateInsights, `{"prompt":"p"}`)

	resp := decode[dto.ListTasksResponse](t, env.do(http.MethodGet, "/api/v1/tasks?task_type=SCRAPE_RSS_FEED", ""))
	require.Len(t, resp.Items, 1)
	assert.Equal(t, first.ID, resp.Items[0].ID)
	assert.Equal(t, 50, resp.Limit)

	resp = decode[dto.ListTasksResponse](t, env.do(http.MethodGet, "/api/v1/tasks?limit=1", ""))
	assert.Len(t, resp.Items, 1)

	resp = decode[dto.ListTasksResponse](t, env.do(http.MethodGet, "/api/v1/tasks?status=failed", ""))
	assert.Empty(t, resp.Items)

	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/api/v1/tasks?status=running", "").Code)
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/api/v1/tasks?limit=ten", "").Code)

	w := env.do(http.MethodGet, "/api/v1/tasks/"+first.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, first.ID, decode[dto.TaskResponse](t, w).Task.ID)

	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/api/v1/tasks/550e8400-e29b-41d4-a716-446655440000", "").Code)
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/api/v1/tasks/nope", "").Code)
}

func TestRequeueTask(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	task := env.insert(t, model.TaskTypeScrapeRSSFeed, `{"url":"https://a.com"}`)

	// pending 任务不能重新入队
	assert.Equal(t, http.StatusConflict, env.do(http.MethodPost, "/api/v1/tasks/"+task.ID+"/requeue", "").Code)

	_, err := env.store.ClaimNextTask(ctx, model.TaskTypeScrapeRSSFeed)
	require.NoError(t, err)
	require.NoError(t, env.store.UpdateTask(ctx, task.ID, repository.TaskUpdate{Status: model.TaskStatusFailed, LastError: "boom"}))

	w := env.do(http.MethodPost, "/api/v1/tasks/"+task.ID+"/requeue", "")
	require.Equal(t, http.StatusCreated, w.Code)
	resp := decode[dto.RequeueTaskResponse](t, w)
	assert.Equal(t, task.ID, resp.RequeuedFrom)
	assert.NotEqual(t, task.ID, resp.Task.ID)
	assert.Equal(t, model.TaskStatusPending, resp.Task.Status)
	assert.JSONEq(t, `{"url":"https://a.com"}`, string(resp.Task.Payload))

	old, err := env.store.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusFailed, old.Status)
	assert.Equal(t, "boom", old.LastError)
}

func TestSourcesAndPipeline(t *testing.T) {
	env := newTestEnv(t, pipeline.ConfigMissing("GEMINI_API_KEY"))
	require.NoError(t, env.store.UpsertSource(context.Background(), repository.Source{Name: model.TaskTypeScrapeRSSFeed}))

	sources := decode[dto.ListSourcesResponse](t, env.do(http.MethodGet, "/api/v1/sources", ""))
	require.Len(t, sources.Items, 1)
	assert.Equal(t, model.TaskTypeScrapeRSSFeed, sources.Items[0].Name)

	p := decode[dto.PipelineResponse](t, env.do(http.MethodGet, "/api/v1/pipeline", ""))
	assert.Len(t, p.Edges, 3)
	require.Len(t, p.Agents, 2)
	assert.Equal(t, model.TaskTypeGenerateInsights, p.Agents[0].TaskType)
	assert.False(t, p.Agents[0].Ready)
	assert.Contains(t, p.Agents[0].NotReady, "GEMINI_API_KEY")
	assert.True(t, p.Agents[1].Ready)
	assert.Equal(t, []string{model.TaskTypeGenerateInsights}, p.Agents[1].Downstream)
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)

	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/healthz", "").Code)

	w := env.do(http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[dto.ReadinessResponse](t, w)
	assert.Equal(t, "ok", res.Status)
	assert.Equal(t, "memory", res.Store)
	assert.Empty(t, res.Checks)
	assert.Equal(t, "ready", res.Agents[model.TaskTypeScrapeRSSFeed])

	w = env.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req-1", env.requestID(t))
}

func TestSwaggerDocCoversRoutes(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(http.MethodGet, "/swagger/doc.json", "")
	require.Equal(t, http.StatusOK, w.Code)

	var doc struct {
		BasePath string                    `json:"basePath"`
		Paths    map[string]map[string]any `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, "/api/v1", doc.BasePath)
	for path, method := range map[string]string{
		"/agents/{task_type}/run":  "post",
		"/orchestrator/run":        "post",
		"/pipeline":                "get",
		"/tasks":                   "post",
		"/tasks/{task_id}":         "get",
		"/tasks/{task_id}/requeue": "post",
		"/sources":                 "get",
		"/healthz":                 "get",
		"/readyz":                  "get",
	} {
		assert.Contains(t, doc.Paths[path], method, path)
	}
}

func TestReadiness_ReportsUnconfiguredAgentWithoutFailing(t *testing.T) {
	env := newTestEnv(t, pipeline.ConfigMissing("GEMINI_API_KEY"))

	w := env.do(http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[dto.ReadinessResponse](t, w)
	assert.Equal(t, "ok", res.Status)
	assert.Contains(t, res.Agents[model.TaskTypeGenerateInsights], "not ready: ")
	assert.Contains(t, res.Agents[model.TaskTypeGenerateInsights], "GEMINI_API_KEY")
}

func (e *testEnv) requestID(t *testing.T) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "req-1")
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w.Header().Get("X-Request-ID")
}
