package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyPrefix 所有键的公共前缀
const KeyPrefix = "pipeline"

// NewClient 解析 redis:// 地址并创建客户端，创建后立即 PING
func NewClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	// 测试连接
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

// ParseURL 兼容裸 host:port 与 redis:// 两种写法
func ParseURL(redisURL string) (*redis.Options, error) {
	if !strings.HasPrefix(redisURL, "redis://") && !strings.HasPrefix(redisURL, "rediss://") {
		redisURL = "redis://" + redisURL
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return opts, nil
}

// Key 生成带前缀的 key
func Key(parts ...string) string {
	return KeyPrefix + ":" + strings.Join(parts, ":")
}
