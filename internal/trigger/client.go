package trigger

import (
	"context"

	"github.com/hibiken/asynq"
)

// Client 立即入队一次触发（启动时补跑或运维手动触发）
type Client struct {
	*asynq.Client
	opts Options
}

func NewClient(redisOpt asynq.RedisConnOpt, opts Options) *Client {
	return &Client{Client: asynq.NewClient(redisOpt), opts: opts}
}

// EnqueueOrchestrate 入队一次编排
func (c *Client) EnqueueOrchestrate(ctx context.Context) (*asynq.TaskInfo, error) {
	return c.EnqueueContext(ctx, NewOrchestrateTask(c.opts))
}

// EnqueueRunAgent 入队一次代理运行
func (c *Client) EnqueueRunAgent(ctx context.Context, taskType string) (*asynq.TaskInfo, error) {
	t, err := NewRunAgentTask(taskType, c.opts)
	if err != nil {
		return nil, err
	}
	return c.EnqueueContext(ctx, t)
}
