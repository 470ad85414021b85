package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jaykayhq/insight-pipeline/internal/metrics"
	"github.com/jaykayhq/insight-pipeline/internal/model"
	"github.com/jaykayhq/insight-pipeline/internal/repository"
)

// DefaultCooldown 数据源未配置刷新间隔时使用
const DefaultCooldown = 15 * time.Minute

// 编排器对单个数据源的决策
const (
	DecisionCreated       = "created"
	DecisionCoolingDown   = "cooling_down"
	DecisionPendingExists = "pending_exists"
	DecisionError         = "error"
)

// SourceDecision 单个数据源的处理结果
type SourceDecision struct {
	Source   string `json:"source"`
	Decision string `json:"decision"`
	TaskID   string `json:"task_id,omitempty"`
	Error    string `json:"error,omitempty"`
}

// SweepResult 一次编排的汇总
type SweepResult struct {
	Created   int              `json:"created"`
	Skipped   int              `json:"skipped"`
	Errors    int              `json:"errors"`
	Decisions []SourceDecision `json:"decisions"`
}

// Message 调用方展示的汇总消息
func (r SweepResult) Message() string {
	return fmt.Sprintf("Orchestration check complete. Created %d new tasks.", r.Created)
}

// Orchestrator 按数据源冷却时间补充 pending 任务
type Orchestrator struct {
	sources         repository.SourceRepository
	tasks           repository.TaskRepository
	defaultCooldown time.Duration
	log             zerolog.Logger
	now             func() time.Time
}

// NewOrchestrator 创建编排器；defaultCooldown 为 0 时使用 DefaultCooldown
func NewOrchestrator(sources repository.SourceRepository, tasks repository.TaskRepository, defaultCooldown time.Duration, log zerolog.Logger) *Orchestrator {
	if defaultCooldown <= 0 {
		defaultCooldown = DefaultCooldown
	}
	return &Orchestrator{
		sources:         sources,
		tasks:           tasks,
		defaultCooldown: defaultCooldown,
		log:             log.With().Str("component", "orchestrator").Logger(),
		now:             time.Now,
	}
}

// Sweep 遍历所有数据源。单个数据源出错只记录并跳过；读取数据源列表失败时整体返回错误。
func (o *Orchestrator) Sweep(ctx context.Context) (SweepResult, error) {
	res := SweepResult{Decisions: make([]SourceDecision, 0)}

	sources, err := o.sources.ListSources(ctx)
	if err != nil {
		metrics.RecordError("orchestrator", "list_sources")
		o.log.Error().Err(err).Msg("读取数据源失败")
		return res, fmt.Errorf("list sources: %w", err)
	}

	for _, src := range sources {
		d := o.sweepOne(ctx, src)
		switch d.Decision {
		case DecisionCreated:
			res.Created++
		case DecisionError:
			res.Errors++
		default:
			res.Skipped++
		}
		metrics.RecordSweepDecision(src.Name, d.Decision)
		res.Decisions = append(res.Decisions, d)
	}

	o.log.Info().
		Int("sources", len(sources)).
		Int("created", res.Created).
		Int("skipped", res.Skipped).
		Int("errors", res.Errors).
		Msg("编排检查完成")
	return res, nil
}

func (o *Orchestrator) sweepOne(ctx context.Context, src repository.Source) SourceDecision {
	d := SourceDecision{Source: src.Name}
	log := o.log.With().Str("source", src.Name).Logger()
	now := o.now()

	if src.CoolDownUntil != nil && now.Before(*src.CoolDownUntil) {
		log.Debug().Time("cool_down_until", *src.CoolDownUntil).Msg("数据源冷却中")
		d.Decision = DecisionCoolingDown
		return d
	}

	pending, err := o.tasks.CountPendingTasks(ctx, src.Name)
	if err != nil {
		metrics.RecordError("orchestrator", "count_pending")
		log.Error().Err(err).Msg("检查 pending 任务失败")
		d.Decision = DecisionError
		d.Error = err.Error()
		return d
	}
	metrics.UpdatePendingTasks(src.Name, pending)
	if pending > 0 {
		log.Debug().Int("pending", pending).Msg("已有 pending 任务，跳过")
		d.Decision = DecisionPendingExists
		return d
	}

	task, err := o.tasks.InsertTask(ctx, src.Name, src.DefaultPayload)
	if err != nil {
		metrics.RecordError("orchestrator", "insert_task")
		log.Error().Err(err).Msg("创建任务失败")
		d.Decision = DecisionError
		d.Error = err.Error()
		return d
	}
	metrics.RecordTaskCreated(src.Name, model.OriginOrchestrator)
	d.Decision = DecisionCreated
	d.TaskID = task.ID

	interval := src.RefreshInterval
	if interval <= 0 {
		interval = o.defaultCooldown
	}
	until := now.Add(interval)
	// 冷却时间写入失败不撤销已创建的任务；下次编排会因 pending 任务存在而跳过
	if err := o.sources.UpdateSourceCooldown(ctx, src.Name, until); err != nil {
		metrics.RecordError("orchestrator", "update_cooldown")
		log.Error().Err(err).Str("task_id", task.ID).Msg("更新冷却时间失败")
		d.Error = err.Error()
		return d
	}

	log.Info().Str("task_id", task.ID).Time("cool_down_until", until).Msg("已创建任务")
	return d
}
