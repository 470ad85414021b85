package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jaykayhq/insight-pipeline/internal/model"
)

var (
	// ErrNoPendingTask 没有可认领的 pending 任务（包括并发认领失败的一方）
	ErrNoPendingTask = errors.New("no pending task")

	// ErrTaskNotFound 任务不存在
	ErrTaskNotFound = errors.New("task not found")

	// ErrInvalidTransition 非法状态流转（例如对终态任务再次写入）
	ErrInvalidTransition = errors.New("invalid task status transition")

	// ErrSourceNotFound 数据源不存在
	ErrSourceNotFound = errors.New("source not found")
)

// Task 表示任务实体
type Task struct {
	ID        string           `json:"id"`
	TaskType  string           `json:"task_type"`
	Status    model.TaskStatus `json:"status"`
	Payload   json.RawMessage  `json:"payload"`
	Result    json.RawMessage  `json:"result,omitempty"`
	LastError string           `json:"last_error,omitempty"`
	ClaimedAt *time.Time       `json:"claimed_at,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// TaskUpdate 终态写入。Result 仅在 completed 时写入，LastError 仅在 failed 时写入。
type TaskUpdate struct {
	Status    model.TaskStatus
	Result    json.RawMessage
	LastError string
}

// Validate 校验更新内容与目标状态是否匹配
func (u TaskUpdate) Validate() error {
	switch u.Status {
	case model.TaskStatusCompleted:
		if u.LastError != "" {
			return errors.New("last_error can only be written on failure")
		}
	case model.TaskStatusFailed:
		if len(u.Result) > 0 {
			return errors.New("result can only be written on completion")
		}
	default:
		return ErrInvalidTransition
	}
	return nil
}

// ListTasksFilter 任务列表查询过滤条件
type ListTasksFilter struct {
	TaskType string
	Status   string
	Limit    int
	Offset   int
}

// Normalize 修正分页参数
func (f ListTasksFilter) Normalize() ListTasksFilter {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// Source 数据源（name 同时作为派生任务的 task_type）
type Source struct {
	Name            string          `json:"name"`
	RefreshInterval time.Duration   `json:"refresh_interval"`
	DefaultPayload  json.RawMessage `json:"default_payload,omitempty"`
	CoolDownUntil   *time.Time      `json:"cool_down_until,omitempty"`
}

// Trend 热门话题
type Trend struct {
	ID          int64     `json:"id"`
	Topic       string    `json:"topic"`
	TweetVolume *int64    `json:"tweet_volume,omitempty"`
	WOEID       int64     `json:"woeid"`
	CreatedAt   time.Time `json:"created_at"`
}

// Insight 生成的营销洞察
type Insight struct {
	ID          int64     `json:"id"`
	InsightText string    `json:"insight_text"`
	TaskID      string    `json:"task_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// TaskRepository 任务仓储接口
type TaskRepository interface {
	// ClaimNextTask 原子地选出该类型最早创建的 pending 任务并置为 claimed。
	// 没有任务时返回 ErrNoPendingTask。
	ClaimNextTask(ctx context.Context, taskType string) (*Task, error)

	// InsertTask 创建 pending 任务
	InsertTask(ctx context.Context, taskType string, payload json.RawMessage) (*Task, error)

	// UpdateTask 写入终态（只允许 claimed -> completed|failed）
	UpdateTask(ctx context.Context, id string, upd TaskUpdate) error

	// CountPendingTasks 统计某类型的 pending 任务数
	CountPendingTasks(ctx context.Context, taskType string) (int, error)

	// GetTask 根据 id 获取任务
	GetTask(ctx context.Context, id string) (*Task, error)

	// ListTasks 查询任务列表（按创建时间倒序）
	ListTasks(ctx context.Context, filter ListTasksFilter) ([]Task, error)
}

// SourceRepository 数据源仓储接口
type SourceRepository interface {
	ListSources(ctx context.Context) ([]Source, error)
	UpdateSourceCooldown(ctx context.Context, name string, until time.Time) error
	UpsertSource(ctx context.Context, source Source) error
}

// TrendRepository 热门话题仓储接口
type TrendRepository interface {
	InsertTrends(ctx context.Context, trends []Trend) ([]int64, error)
	TopicsByIDs(ctx context.Context, ids []int64) ([]string, error)
}

// InsightRepository 洞察仓储接口
type InsightRepository interface {
	InsertInsights(ctx context.Context, taskID string, insights []string) error
}

// Store 聚合所有仓储，由存储驱动统一提供
type Store struct {
	Tasks    TaskRepository
	Sources  SourceRepository
	Trends   TrendRepository
	Insights InsightRepository
}

func emptyPayload(p json.RawMessage) json.RawMessage {
	if len(p) == 0 || string(p) == "null" {
		return json.RawMessage(`{}`)
	}
	return p
}
