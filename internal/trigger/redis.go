package trigger

import "github.com/hibiken/asynq"

// NewRedisConnOpt 仅接受 URI（例如 redis://localhost:6379/0）。
func NewRedisConnOpt(redisURI string) (asynq.RedisConnOpt, error) {
	return asynq.ParseRedisURI(redisURI)
}
