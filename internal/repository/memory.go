package repository

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jaykayhq/insight-pipeline/internal/model"
)

// MemoryStore 进程内存储，用于测试和单进程本地开发。
// 所有操作在同一把锁下完成，认领天然是原子的。
type MemoryStore struct {
	mu       sync.Mutex
	now      func() time.Time
	tasks    map[string]*Task
	order    []string // 按创建顺序
	sources  map[string]Source
	trends   []Trend
	insights []Insight
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:     time.Now,
		tasks:   map[string]*Task{},
		sources: map[string]Source{},
	}
}

// Store 返回聚合仓储
func (s *MemoryStore) Store() Store {
	return Store{Tasks: s, Sources: s, Trends: s, Insights: s}
}

func cloneTask(t *Task) *Task {
	c := *t
	if t.Payload != nil {
		c.Payload = append(json.RawMessage(nil), t.Payload...)
	}
	if t.Result != nil {
		c.Result = append(json.RawMessage(nil), t.Result...)
	}
	if t.ClaimedAt != nil {
		at := *t.ClaimedAt
		c.ClaimedAt = &at
	}
	return &c
}

func (s *MemoryStore) ClaimNextTask(_ context.Context, taskType string) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.order {
		t := s.tasks[id]
		if t.TaskType != taskType || t.Status != model.TaskStatusPending {
			continue
		}
		now := s.now()
		t.Status = model.TaskStatusClaimed
		t.ClaimedAt = &now
		t.UpdatedAt = now
		return cloneTask(t), nil
	}
	return nil, ErrNoPendingTask
}

func (s *MemoryStore) InsertTask(_ context.Context, taskType string, payload json.RawMessage) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	t := &Task{
		ID:        uuid.NewString(),
		TaskType:  taskType,
		Status:    model.TaskStatusPending,
		Payload:   append(json.RawMessage(nil), emptyPayload(payload)...),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.tasks[t.ID] = t
	s.order = append(s.order, t.ID)
	return cloneTask(t), nil
}

func (s *MemoryStore) UpdateTask(_ context.Context, id string, upd TaskUpdate) error {
	if err := upd.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return ErrTaskNotFound
	}
	if !model.CanTransition(t.Status, upd.Status) {
		return ErrInvalidTransition
	}
	t.Status = upd.Status
	if upd.Status == model.TaskStatusCompleted {
		t.Result = append(json.RawMessage(nil), upd.Result...)
	} else {
		t.LastError = upd.LastError
	}
	t.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStore) CountPendingTasks(_ context.Context, taskType string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, t := range s.tasks {
		if t.TaskType == taskType && t.Status == model.TaskStatusPending {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) GetTask(_ context.Context, id string) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return cloneTask(t), nil
}

func (s *MemoryStore) ListTasks(_ context.Context, f ListTasksFilter) ([]Task, error) {
	f = f.Normalize()

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Task, 0)
	skipped := 0
	for i := len(s.order) - 1; i >= 0; i-- {
		t := s.tasks[s.order[i]]
		if f.TaskType != "" && t.TaskType != f.TaskType {
			continue
		}
		if f.Status != "" && string(t.Status) != f.Status {
			continue
		}
		if skipped < f.Offset {
			skipped++
			continue
		}
		out = append(out, *cloneTask(t))
		if len(out) >= f.Limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) ListSources(_ context.Context) ([]Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Source, 0, len(s.sources))
	for _, src := range s.sources {
		out = append(out, src)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *MemoryStore) UpdateSourceCooldown(_ context.Context, name string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	src, ok := s.sources[name]
	if !ok {
		return ErrSourceNotFound
	}
	src.CoolDownUntil = &until
	s.sources[name] = src
	return nil
}

// UpsertSource 创建或更新数据源配置；已存在时保留 cool_down_until
func (s *MemoryStore) UpsertSource(_ context.Context, src Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.sources[src.Name]; ok && src.CoolDownUntil == nil {
		src.CoolDownUntil = old.CoolDownUntil
	}
	s.sources[src.Name] = src
	return nil
}

func (s *MemoryStore) InsertTrends(_ context.Context, trends []Trend) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int64, 0, len(trends))
	for _, tr := range trends {
		tr.ID = int64(len(s.trends) + 1)
		tr.CreatedAt = s.now()
		s.trends = append(s.trends, tr)
		ids = append(ids, tr.ID)
	}
	return ids, nil
}

func (s *MemoryStore) TopicsByIDs(_ context.Context, ids []int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var topics []string
	for _, id := range ids {
		if id >= 1 && id <= int64(len(s.trends)) {
			topics = append(topics, s.trends[id-1].Topic)
		}
	}
	return topics, nil
}

func (s *MemoryStore) InsertInsights(_ context.Context, taskID string, insights []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, text := range insights {
		s.insights = append(s.insights, Insight{
			ID:          int64(len(s.insights) + 1),
			InsightText: text,
			TaskID:      taskID,
			CreatedAt:   s.now(),
		})
	}
	return nil
}

// Insights 返回已保存的洞察（测试用）
func (s *MemoryStore) Insights() []Insight {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Insight(nil), s.insights...)
}
