package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"

	"github.com/jaykayhq/insight-pipeline/internal/metrics"
	"github.com/jaykayhq/insight-pipeline/internal/model"
	"github.com/jaykayhq/insight-pipeline/internal/payload"
	"github.com/jaykayhq/insight-pipeline/internal/repository"
)

// RunStatus 一次调用的结局
type RunStatus string

const (
	RunIdle      RunStatus = "idle"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// 调用结果消息
const (
	MsgNoPendingTasks = "No pending tasks."
	MsgTaskCompleted  = "Task completed successfully."
)

// defaultWriteTimeout 终态写入使用的独立超时
const defaultWriteTimeout = 10 * time.Second

// RunResult RunOnce 的返回值
type RunResult struct {
	Status      RunStatus `json:"status"`
	TaskType    string    `json:"task_type"`
	TaskID      string    `json:"task_id,omitempty"`
	FollowUpIDs []string  `json:"follow_up_ids,omitempty"`
	Message     string    `json:"message,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// Agent 通用代理：检查配置、认领、执行、写终态、插入后续任务。
// 每次调用无状态，可以在任意多个进程里并发运行。
type Agent struct {
	action       Action
	tasks        repository.TaskRepository
	graph        *Graph
	log          zerolog.Logger
	writeTimeout time.Duration
	now          func() time.Time
}

// NewAgent 创建代理
func NewAgent(action Action, tasks repository.TaskRepository, graph *Graph, log zerolog.Logger) *Agent {
	if graph == nil {
		graph = DefaultGraph()
	}
	return &Agent{
		action:       action,
		tasks:        tasks,
		graph:        graph,
		log:          log.With().Str("task_type", action.TaskType()).Logger(),
		writeTimeout: defaultWriteTimeout,
		now:          time.Now,
	}
}

// TaskType 代理负责的任务类型
func (a *Agent) TaskType() string { return a.action.TaskType() }

// Ready 代理配置是否齐全
func (a *Agent) Ready() error { return a.action.Ready() }

// RunOnce 处理至多一个任务。
//
// 没有 pending 任务时返回 RunIdle 且 error 为 nil；配置缺失时不认领任务直接返回错误；
// 认领之后的任何退出路径（包括 panic）都会把任务写成 completed 或 failed。
// ctx 只约束认领，不会取消已认领任务的执行。
func (a *Agent) RunOnce(ctx context.Context) (RunResult, error) {
	taskType := a.action.TaskType()
	res := RunResult{TaskType: taskType}

	if err := a.action.Ready(); err != nil {
		metrics.RecordAgentRun(taskType, "not_ready")
		a.log.Error().Err(err).Msg("代理配置缺失，跳过认领")
		res.Status = RunFailed
		res.Error = err.Error()
		return res, err
	}

	task, err := a.tasks.ClaimNextTask(ctx, taskType)
	if errors.Is(err, repository.ErrNoPendingTask) {
		metrics.RecordAgentRun(taskType, string(RunIdle))
		a.log.Debug().Msg("没有待处理任务")
		res.Status = RunIdle
		res.Message = MsgNoPendingTasks
		return res, nil
	}
	if err != nil {
		metrics.RecordError("agent", "claim")
		a.log.Error().Err(err).Msg("认领任务失败")
		res.Status = RunFailed
		res.Error = err.Error()
		return res, fmt.Errorf("claim %s: %w", taskType, err)
	}

	metrics.RecordTaskClaimed(taskType)
	a.log.Info().Str("task_id", task.ID).Msg("已认领任务")

	res, err = a.process(ctx, task)
	metrics.RecordAgentRun(taskType, string(res.Status))
	return res, err
}

// process 执行已认领的任务；defer 保证任务一定离开 claimed 状态
func (a *Agent) process(ctx context.Context, task *repository.Task) (res RunResult, err error) {
	start := a.now()
	settled := false

	defer func() {
		rec := recover()
		if settled && rec == nil {
			return
		}
		cause := err
		if rec != nil {
			a.log.Error().
				Str("task_id", task.ID).
				Interface("panic", rec).
				Str("stack", string(debug.Stack())).
				Msg("代理执行 panic")
			cause = fmt.Errorf("%w: %v", ErrActionPanic, rec)
		}
		if cause == nil {
			cause = errors.New("task exited without reaching a terminal state")
		}
		res, err = a.fail(ctx, task, start, cause)
	}()

	// 认领之后动作跑到自然结束，调用方取消或超时不会中断它
	out, execErr := a.action.Execute(context.WithoutCancel(ctx), *task)
	if execErr != nil {
		res, err = a.fail(ctx, task, start, execErr)
		settled = true
		return res, err
	}

	res, err = a.complete(ctx, task, start, out)
	settled = true
	return res, err
}

// complete 校验并插入后续任务，然后写 completed。后续任务校验或插入失败时任务转为 failed。
func (a *Agent) complete(ctx context.Context, task *repository.Task, start time.Time, out Outcome) (RunResult, error) {
	result, err := payload.Encode(out.Result)
	if err != nil {
		return a.fail(ctx, task, start, fmt.Errorf("%w: encode result: %v", ErrMalformedResult, err))
	}

	type encoded struct {
		taskType string
		raw      []byte
	}
	followUps := make([]encoded, 0, len(out.FollowUps))
	for _, f := range out.FollowUps {
		if !a.graph.Allows(task.TaskType, f.TaskType) {
			return a.fail(ctx, task, start, fmt.Errorf("%w: %s -> %s", ErrUndeclaredFollowUp, task.TaskType, f.TaskType))
		}
		raw, err := payload.Encode(f.Payload)
		if err != nil {
			return a.fail(ctx, task, start, fmt.Errorf("%w: encode follow-up payload: %v", ErrMalformedResult, err))
		}
		followUps = append(followUps, encoded{taskType: f.TaskType, raw: raw})
	}

	wctx, cancel := a.writeContext(ctx)
	defer cancel()

	ids := make([]string, 0, len(followUps))
	for _, f := range followUps {
		created, err := a.tasks.InsertTask(wctx, f.taskType, f.raw)
		if err != nil {
			return a.fail(ctx, task, start, fmt.Errorf("insert follow-up %s: %w", f.taskType, err))
		}
		metrics.RecordTaskCreated(f.taskType, model.OriginFollowUp)
		ids = append(ids, created.ID)
	}

	err = a.tasks.UpdateTask(wctx, task.ID, repository.TaskUpdate{
		Status: model.TaskStatusCompleted,
		Result: result,
	})
	if err != nil {
		metrics.RecordError("agent", "update")
		a.log.Error().Err(err).Str("task_id", task.ID).Msg("写入 completed 失败")
		if errors.Is(err, repository.ErrInvalidTransition) {
			return RunResult{Status: RunFailed, TaskType: task.TaskType, TaskID: task.ID, FollowUpIDs: ids, Error: err.Error()}, err
		}
		return a.fail(ctx, task, start, fmt.Errorf("write result: %w", err))
	}

	elapsed := a.now().Sub(start)
	metrics.RecordTaskFinished(task.TaskType, string(model.TaskStatusCompleted), elapsed.Seconds())
	a.log.Info().
		Str("task_id", task.ID).
		Strs("follow_up_ids", ids).
		Dur("duration", elapsed).
		Msg("任务完成")

	return RunResult{
		Status:      RunCompleted,
		TaskType:    task.TaskType,
		TaskID:      task.ID,
		FollowUpIDs: ids,
		Message:     MsgTaskCompleted,
	}, nil
}

// fail 写 failed 与 last_error；返回的 error 是任务失败原因
func (a *Agent) fail(ctx context.Context, task *repository.Task, start time.Time, cause error) (RunResult, error) {
	res := RunResult{Status: RunFailed, TaskType: task.TaskType, TaskID: task.ID, Error: cause.Error()}

	wctx, cancel := a.writeContext(ctx)
	defer cancel()

	err := a.tasks.UpdateTask(wctx, task.ID, repository.TaskUpdate{
		Status:    model.TaskStatusFailed,
		LastError: cause.Error(),
	})
	if err != nil {
		metrics.RecordError("agent", "update")
		a.log.Error().Err(err).Str("task_id", task.ID).Msg("写入 failed 失败，任务将停留在 claimed")
		return res, errors.Join(cause, fmt.Errorf("write failure: %w", err))
	}

	metrics.RecordTaskFinished(task.TaskType, string(model.TaskStatusFailed), a.now().Sub(start).Seconds())
	metrics.RecordError("agent", ErrorKind(cause))
	a.log.Error().Err(cause).Str("task_id", task.ID).Str("kind", ErrorKind(cause)).Msg("任务失败")
	return res, cause
}

// writeContext 终态写入不受调用方取消影响
func (a *Agent) writeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), a.writeTimeout)
}
