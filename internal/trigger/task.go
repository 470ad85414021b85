// Package trigger 用 asynq 周期性地触发编排器和各代理。
//
// 触发消息本身不携带业务数据，只是“现在运行一次”的信号；
// 任务状态始终以任务存储为准。
package trigger

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// asynq 任务名
const (
	TypeOrchestrate = "pipeline:orchestrate"
	TypeRunAgent    = "pipeline:run-agent"
)

// RunAgentPayload pipeline:run-agent 的载荷
type RunAgentPayload struct {
	TaskType string `json:"task_type"`
}

// Options 触发消息的公共选项。
// 触发消息不设 asynq.Timeout：已认领任务的执行不受外部超时约束。
type Options struct {
	Queue string
	// Unique 同一触发在该窗口内只入队一次
	Unique time.Duration
}

func (o Options) asynqOptions() []asynq.Option {
	// 触发不重试：下一次调度会再次触发
	opts := []asynq.Option{asynq.MaxRetry(0)}
	if o.Queue != "" {
		opts = append(opts, asynq.Queue(o.Queue))
	}
	if o.Unique > 0 {
		opts = append(opts, asynq.Unique(o.Unique))
	}
	return opts
}

// NewOrchestrateTask 编排触发
func NewOrchestrateTask(o Options) *asynq.Task {
	return asynq.NewTask(TypeOrchestrate, nil, o.asynqOptions()...)
}

// NewRunAgentTask 某任务类型的代理触发
func NewRunAgentTask(taskType string, o Options) (*asynq.Task, error) {
	if taskType == "" {
		return nil, fmt.Errorf("task_type 不能为空")
	}
	b, err := json.Marshal(RunAgentPayload{TaskType: taskType})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeRunAgent, b, o.asynqOptions()...), nil
}

// ParseRunAgent 解析 pipeline:run-agent 载荷
func ParseRunAgent(t *asynq.Task) (RunAgentPayload, error) {
	var p RunAgentPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return p, fmt.Errorf("decode %s payload: %w", TypeRunAgent, err)
	}
	if p.TaskType == "" {
		return p, fmt.Errorf("%s payload missing task_type", TypeRunAgent)
	}
	return p, nil
}
