// Package sdk 流水线 HTTP API 的 Go 客户端，供调度器、运维脚本和 pipelinectl 使用。
package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// APIError 服务端返回的非预期状态
type APIError struct {
	StatusCode int
	Message    string
	Kind       string
	TaskID     string
}

func (e *APIError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("unexpected status %d (%s): %s", e.StatusCode, e.Kind, e.Message)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Message)
}

// IsNotReady 代理缺少配置（HTTP 503）
func IsNotReady(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusServiceUnavailable
}

// Client HTTP 客户端
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient 创建客户端
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
	}
}

// Task 任务记录
type Task struct {
	ID        string          `json:"id"`
	TaskType  string          `json:"task_type"`
	Status    string          `json:"status"`
	Payload   json.RawMessage `json:"payload"`
	Result    json.RawMessage `json:"result,omitempty"`
	LastError string          `json:"last_error,omitempty"`
	ClaimedAt *time.Time      `json:"claimed_at,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// RunAgentResponse 代理运行一次的结果
type RunAgentResponse struct {
	Message     string   `json:"message"`
	Status      string   `json:"status"`
	TaskType    string   `json:"task_type"`
	TaskID      string   `json:"task_id,omitempty"`
	FollowUpIDs []string `json:"follow_up_ids,omitempty"`
}

// Idle 没有 pending 任务
func (r *RunAgentResponse) Idle() bool { return r.Status == "idle" }

// SourceDecision 编排器对单个数据源的决策
type SourceDecision struct {
	Source   string `json:"source"`
	Decision string `json:"decision"`
	TaskID   string `json:"task_id,omitempty"`
	Error    string `json:"error,omitempty"`
}

// OrchestratorRunResponse 编排一次的结果
type OrchestratorRunResponse struct {
	Message   string           `json:"message"`
	Created   int              `json:"created"`
	Skipped   int              `json:"skipped"`
	Errors    int              `json:"errors"`
	Decisions []SourceDecision `json:"decisions"`
}

// EnqueueTaskRequest 任务入队请求
type EnqueueTaskRequest struct {
	TaskType string          `json:"task_type"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// RequeueTaskResponse 重新入队结果
type RequeueTaskResponse struct {
	Task         Task   `json:"task"`
	RequeuedFrom string `json:"requeued_from"`
}

// ListTasksRequest 任务列表查询
type ListTasksRequest struct {
	TaskType string
	Status   string
	Limit    int
	Offset   int
}

// ListTasksResponse 任务列表
type ListTasksResponse struct {
	Items  []Task `json:"items"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

// RunAgent 让指定任务类型的代理处理至多一个任务。
// 任务失败时返回 *APIError，TaskID 为失败的任务。
func (c *Client) RunAgent(ctx context.Context, taskType string) (*RunAgentResponse, error) {
	var result RunAgentResponse
	path := "/api/v1/agents/" + url.PathEscape(taskType) + "/run"
	if err := c.do(ctx, http.MethodPost, path, nil, http.StatusOK, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RunOrchestrator 触发一次编排
func (c *Client) RunOrchestrator(ctx context.Context) (*OrchestratorRunResponse, error) {
	var result OrchestratorRunResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/orchestrator/run", nil, http.StatusOK, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// EnqueueTask 手动创建 pending 任务
func (c *Client) EnqueueTask(ctx context.Context, req EnqueueTaskRequest) (*Task, error) {
	var result struct {
		Task Task `json:"task"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/tasks", req, http.StatusCreated, &result); err != nil {
		return nil, err
	}
	return &result.Task, nil
}

// GetTask 获取任务详情
func (c *Client) GetTask(ctx context.Context, taskID string) (*Task, error) {
	var result struct {
		Task Task `json:"task"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/tasks/"+url.PathEscape(taskID), nil, http.StatusOK, &result); err != nil {
		return nil, err
	}
	return &result.Task, nil
}

// RequeueTask 以失败任务的类型和载荷创建新任务
func (c *Client) RequeueTask(ctx context.Context, taskID string) (*RequeueTaskResponse, error) {
	var result RequeueTaskResponse
	path := "/api/v1/tasks/" + url.PathEscape(taskID) + "/requeue"
	if err := c.do(ctx, http.MethodPost, path, nil, http.StatusCreated, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListTasks 分页查询任务
func (c *Client) ListTasks(ctx context.Context, req ListTasksRequest) (*ListTasksResponse, error) {
	q := url.Values{}
	if req.TaskType != "" {
		q.Set("task_type", req.TaskType)
	}
	if req.Status != "" {
		q.Set("status", req.Status)
	}
	if req.Limit > 0 {
		q.Set("limit", strconv.Itoa(req.Limit))
	}
	if req.Offset > 0 {
		q.Set("offset", strconv.Itoa(req.Offset))
	}
	path := "/api/v1/tasks"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var result ListTasksResponse
	if err := c.do(ctx, http.MethodGet, path, nil, http.StatusOK, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) do(ctx context.Context, method, path string, in any, want int, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		bodyBytes, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(bodyBytes))}
		var e struct {
			Error  string `json:"error"`
			Kind   string `json:"kind"`
			TaskID string `json:"task_id"`
		}
		if json.Unmarshal(bodyBytes, &e) == nil && e.Error != "" {
			apiErr.Message, apiErr.Kind, apiErr.TaskID = e.Error, e.Kind, e.TaskID
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
