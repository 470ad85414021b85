// Package workers 维护进程内已注册的代理，每种任务类型一个。
package workers

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/jaykayhq/insight-pipeline/internal/metrics"
	"github.com/jaykayhq/insight-pipeline/internal/pipeline"
)

var (
	// ErrAgentNotFound 该任务类型没有注册代理
	ErrAgentNotFound = errors.New("agent not registered")
	// ErrAgentExists 同一任务类型重复注册
	ErrAgentExists = errors.New("agent already registered")
)

// Info 代理的对外描述
type Info struct {
	TaskType   string   `json:"task_type"`
	Ready      bool     `json:"ready"`
	NotReady   string   `json:"not_ready,omitempty"`
	Downstream []string `json:"downstream,omitempty"`
}

type Registry struct {
	mu     sync.RWMutex
	agents map[string]*pipeline.Agent // key: task_type
}

func NewRegistry() *Registry {
	return &Registry{
		agents: map[string]*pipeline.Agent{},
	}
}

// Register 注册代理；同一任务类型只能注册一次
func (r *Registry) Register(a *pipeline.Agent) error {
	taskType := strings.TrimSpace(a.TaskType())
	if taskType == "" {
		return errors.New("task_type 不能为空")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.agents[taskType]; ok {
		return fmt.Errorf("%w: %s", ErrAgentExists, taskType)
	}
	r.agents[taskType] = a
	metrics.UpdateAgentStats(len(r.agents))
	return nil
}

// Get 获取指定任务类型的代理
func (r *Registry) Get(taskType string) (*pipeline.Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[taskType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, taskType)
	}
	return a, nil
}

// TaskTypes 已注册的任务类型（排序）
func (r *Registry) TaskTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.agents))
	for k := range r.agents {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// List 返回所有代理的描述，按任务类型排序
func (r *Registry) List(graph *pipeline.Graph) []Info {
	types := r.TaskTypes()
	out := make([]Info, 0, len(types))
	for _, t := range types {
		a, err := r.Get(t)
		if err != nil {
			continue
		}
		info := Info{TaskType: t, Ready: true}
		if err := a.Ready(); err != nil {
			info.Ready = false
			info.NotReady = err.Error()
		}
		if graph != nil {
			for _, e := range graph.Edges() {
				if e.From == t {
					info.Downstream = append(info.Downstream, e.To)
				}
			}
		}
		out = append(out, info)
	}
	return out
}
