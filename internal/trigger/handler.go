package trigger

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/jaykayhq/insight-pipeline/internal/pipeline"
	workers "github.com/jaykayhq/insight-pipeline/internal/worker"
)

// Sweeper 编排器
type Sweeper interface {
	Sweep(ctx context.Context) (pipeline.SweepResult, error)
}

// Handler 把触发消息转成编排/代理调用
type Handler struct {
	orchestrator Sweeper
	registry     *workers.Registry
	log          zerolog.Logger
}

func NewHandler(orchestrator Sweeper, registry *workers.Registry, log zerolog.Logger) *Handler {
	return &Handler{orchestrator: orchestrator, registry: registry, log: log}
}

// Mux 注册全部触发处理器
func (h *Handler) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeOrchestrate, h.HandleOrchestrate)
	mux.HandleFunc(TypeRunAgent, h.HandleRunAgent)
	return mux
}

func (h *Handler) HandleOrchestrate(ctx context.Context, _ *asynq.Task) error {
	res, err := h.orchestrator.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	h.log.Info().
		Int("created", res.Created).
		Int("skipped", res.Skipped).
		Int("errors", res.Errors).
		Msg(res.Message())
	return nil
}

func (h *Handler) HandleRunAgent(ctx context.Context, t *asynq.Task) error {
	p, err := ParseRunAgent(t)
	if err != nil {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	agent, err := h.registry.Get(p.TaskType)
	if err != nil {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}

	res, err := agent.RunOnce(ctx)
	switch {
	case errors.Is(err, pipeline.ErrConfigMissing):
		// 配置缺失时不认领任务，等下次触发
		return nil
	case err != nil:
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	h.log.Debug().
		Str("task_type", p.TaskType).
		Str("status", string(res.Status)).
		Str("task_id", res.TaskID).
		Msg("代理触发完成")
	return nil
}
