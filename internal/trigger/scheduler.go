package trigger

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// ScheduleConfig 周期触发配置
type ScheduleConfig struct {
	OrchestratorCron string
	AgentCron        string
	Queue            string
	// UniqueWindow 同一触发的去重窗口
	UniqueWindow time.Duration
}

// Entry 一条已注册的周期触发
type Entry struct {
	ID       string
	Cronspec string
	TaskType string
}

// Register 注册编排触发和每种任务类型的代理触发。
// 触发消息在 UniqueWindow 内唯一，避免上一轮未消费时堆积。
func Register(s *asynq.Scheduler, cfg ScheduleConfig, taskTypes []string) ([]Entry, error) {
	opts := Options{Queue: cfg.Queue, Unique: cfg.UniqueWindow}

	var entries []Entry
	if cfg.OrchestratorCron != "" {
		id, err := s.Register(cfg.OrchestratorCron, NewOrchestrateTask(opts))
		if err != nil {
			return nil, fmt.Errorf("register %s: %w", TypeOrchestrate, err)
		}
		entries = append(entries, Entry{ID: id, Cronspec: cfg.OrchestratorCron, TaskType: TypeOrchestrate})
	}

	if cfg.AgentCron == "" {
		return entries, nil
	}
	for _, taskType := range taskTypes {
		t, err := NewRunAgentTask(taskType, opts)
		if err != nil {
			return nil, err
		}
		id, err := s.Register(cfg.AgentCron, t)
		if err != nil {
			return nil, fmt.Errorf("register %s(%s): %w", TypeRunAgent, taskType, err)
		}
		entries = append(entries, Entry{ID: id, Cronspec: cfg.AgentCron, TaskType: taskType})
	}
	return entries, nil
}

// NewScheduler 创建 asynq 调度器
func NewScheduler(redisOpt asynq.RedisConnOpt, log zerolog.Logger) *asynq.Scheduler {
	return asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Logger:   NewLogger(log),
		Location: time.UTC,
	})
}

// NewServer 创建 asynq 消费端。shutdownGrace 是关闭时等待进行中代理调用的时长。
func NewServer(redisOpt asynq.RedisConnOpt, queue string, concurrency int, shutdownGrace time.Duration, log zerolog.Logger) *asynq.Server {
	if queue == "" {
		queue = "default"
	}
	return asynq.NewServer(redisOpt, asynq.Config{
		Concurrency:     concurrency,
		Queues:          map[string]int{queue: 1},
		ShutdownTimeout: shutdownGrace,
		Logger:          NewLogger(log),
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			log.Warn().Err(err).Str("trigger", task.Type()).Msg("触发处理失败")
		}),
	})
}
