package pipeline

import (
	"context"

	"github.com/jaykayhq/insight-pipeline/internal/repository"
)

// Action 某种任务类型的业务动作
type Action interface {
	// TaskType 返回动作处理的任务类型
	TaskType() string

	// Ready 在认领任务之前检查配置；返回错误时不会认领任何任务
	Ready() error

	// Execute 执行任务。返回错误即任务失败，错误文本写入 last_error。
	Execute(ctx context.Context, task repository.Task) (Outcome, error)
}

// Outcome 成功执行的产出
type Outcome struct {
	Result    any
	FollowUps []FollowUp
}

// FollowUp 后续任务，载荷必须自包含
type FollowUp struct {
	TaskType string
	Payload  any
}

// ActionFunc 把函数适配为 Action（测试与简单动作使用）
type ActionFunc struct {
	Type    string
	ReadyFn func() error
	Fn      func(ctx context.Context, task repository.Task) (Outcome, error)
}

func (a ActionFunc) TaskType() string { return a.Type }

func (a ActionFunc) Ready() error {
	if a.ReadyFn == nil {
		return nil
	}
	return a.ReadyFn()
}

func (a ActionFunc) Execute(ctx context.Context, task repository.Task) (Outcome, error) {
	return a.Fn(ctx, task)
}
