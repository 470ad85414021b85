package sdk

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// RetryConfig 请求重试配置。只重试网络错误，服务端已给出答复的请求不重试。
type RetryConfig struct {
	MaxRetries     int           // 最大重试次数，默认 3
	InitialBackoff time.Duration // 初始退避时间，默认 1秒
	MaxBackoff     time.Duration // 最大退避时间，默认 30秒
	BackoffFactor  float64       // 退避因子，默认 2.0（指数退避）
}

// DefaultRetryConfig 默认重试配置
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		BackoffFactor:  2.0,
	}
}

// WithRetry 按指数退避重试 fn
func WithRetry(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	var lastErr error
	backoff := cfg.InitialBackoff

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}

			backoff = time.Duration(float64(backoff) * cfg.BackoffFactor)
			if backoff > cfg.MaxBackoff {
				backoff = cfg.MaxBackoff
			}
		}

		err := fn(ctx)
		if err == nil {
			if attempt > 0 {
				log.Info().Int("attempt", attempt).Msg("重试成功")
			}
			return nil
		}

		var apiErr *APIError
		if errors.As(err, &apiErr) || ctx.Err() != nil {
			return err
		}
		lastErr = err
		log.Warn().Err(err).Int("attempt", attempt+1).Int("max", cfg.MaxRetries+1).Msg("请求失败")
	}

	return fmt.Errorf("已达最大重试次数: %w", lastErr)
}

// DrainResult 连续运行代理的汇总
type DrainResult struct {
	Completed   int
	Failed      int
	FailedTasks []string
}

// Drain 反复运行代理直到没有 pending 任务或达到 limit 次（limit<=0 不限）。
// 单个任务失败只记录并继续；代理未就绪或请求失败时停止。
func (c *Client) Drain(ctx context.Context, taskType string, limit int, cfg RetryConfig) (DrainResult, error) {
	var res DrainResult
	for i := 0; limit <= 0 || i < limit; i++ {
		var run *RunAgentResponse
		err := WithRetry(ctx, cfg, func(ctx context.Context) error {
			var err error
			run, err = c.RunAgent(ctx, taskType)
			return err
		})

		var apiErr *APIError
		switch {
		case err == nil && run.Idle():
			return res, nil
		case err == nil:
			res.Completed++
		case errors.As(err, &apiErr) && apiErr.TaskID != "":
			res.Failed++
			res.FailedTasks = append(res.FailedTasks, apiErr.TaskID)
			log.Warn().Str("task_type", taskType).Str("task_id", apiErr.TaskID).Str("kind", apiErr.Kind).Msg("任务失败")
		default:
			return res, err
		}
	}
	return res, nil
}
