package sdk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_RunAgent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/agents/SCRAPE_RSS_FEED/run", r.URL.Path)
		_, _ = w.Write([]byte(`{"message":"Task completed successfully.","status":"completed","task_type":"SCRAPE_RSS_FEED","task_id":"t1","follow_up_ids":["t2"]}`))
	}))
	defer srv.Close()

	res, err := NewClient(srv.URL+"/").RunAgent(context.Background(), "SCRAPE_RSS_FEED")
	require.NoError(t, err)
	assert.Equal(t, "t1", res.TaskID)
	assert.Equal(t, []string{"t2"}, res.FollowUpIDs)
	assert.False(t, res.Idle())
}

func TestClient_RunAgentFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"upstream request failed: X API Error: 429","kind":"upstream","task_id":"t1"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).RunAgent(context.Background(), "FETCH_X_TRENDS")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "upstream", apiErr.Kind)
	assert.Equal(t, "t1", apiErr.TaskID)
	assert.False(t, IsNotReady(err))
}

func TestClient_NotReady(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"configuration missing: GEMINI_API_KEY is not set","kind":"config_missing"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).RunAgent(context.Background(), "GENERATE_INSIGHTS")
	assert.True(t, IsNotReady(err))
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")
}

func TestClient_EnqueueAndList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			var req EnqueueTaskRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "CRAWL_WEB_PAGE", req.TaskType)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"task":{"id":"t1","task_type":"CRAWL_WEB_PAGE","status":"pending","payload":{"url":"https://a.com"}}}`))
		case http.MethodGet:
			assert.Equal(t, "failed", r.URL.Query().Get("status"))
			assert.Equal(t, "10", r.URL.Query().Get("limit"))
			assert.Empty(t, r.URL.Query().Get("offset"))
			_, _ = w.Write([]byte(`{"items":[{"id":"t1","status":"failed"}],"limit":10,"offset":0}`))
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	task, err := c.EnqueueTask(context.Background(), EnqueueTaskRequest{
		TaskType: "CRAWL_WEB_PAGE",
		Payload:  json.RawMessage(`{"url":"https://a.com"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "pending", task.Status)
	assert.JSONEq(t, `{"url":"https://a.com"}`, string(task.Payload))

	list, err := c.ListTasks(context.Background(), ListTasksRequest{Status: "failed", Limit: 10})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, 10, list.Limit)
}

func TestClient_RequeueConflict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/tasks/t1/requeue", r.URL.Path)
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).RequeueTask(context.Background(), "t1")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, "not json", apiErr.Message)
}

func fastRetry() RetryConfig {
	return RetryConfig{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, BackoffFactor: 2}
}

func TestWithRetry(t *testing.T) {
	var calls int
	err := WithRetry(context.Background(), fastRetry(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = WithRetry(context.Background(), fastRetry(), func(context.Context) error {
		calls++
		return &APIError{StatusCode: http.StatusInternalServerError}
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)

	calls = 0
	err = WithRetry(context.Background(), fastRetry(), func(context.Context) error {
		calls++
		return errors.New("connection refused")
	})
	assert.ErrorContains(t, err, "connection refused")
	assert.Equal(t, 3, calls)
}

func TestClient_Drain(t *testing.T) {
	var n atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch n.Add(1) {
		case 1:
			_, _ = w.Write([]byte(`{"status":"completed","task_id":"a"}`))
		case 2:
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"boom","kind":"internal","task_id":"b"}`))
		default:
			_, _ = w.Write([]byte(`{"status":"idle","message":"No pending tasks."}`))
		}
	}))
	defer srv.Close()

	res, err := NewClient(srv.URL).Drain(context.Background(), "SCRAPE_RSS_FEED", 0, fastRetry())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Completed)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, []string{"b"}, res.FailedTasks)
	assert.EqualValues(t, 3, n.Load())
}

func TestClient_DrainStopsWhenNotReady(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"configuration missing","kind":"config_missing"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Drain(context.Background(), "GENERATE_INSIGHTS", 5, fastRetry())
	assert.True(t, IsNotReady(err))
}
