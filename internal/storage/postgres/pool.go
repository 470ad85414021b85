package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolConfig 连接池配置
type PoolConfig struct {
	MaxConns          int32         // 最大连接数，默认 20
	MinConns          int32         // 最小连接数，默认 5
	MaxConnLifetime   time.Duration // 连接最大生命周期，默认 30 分钟
	MaxConnIdleTime   time.Duration // 连接最大空闲时间，默认 5 分钟
	HealthCheckPeriod time.Duration // 健康检查周期，默认 1 分钟
}

// DefaultPoolConfig 返回默认连接池配置
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxConns:          20,
		MinConns:          5,
		MaxConnLifetime:   30 * time.Minute,
		MaxConnIdleTime:   5 * time.Minute,
		HealthCheckPeriod: time.Minute,
	}
}

// NewPool 创建 pgx 连接池（仓储的读写都走这里）
func NewPool(ctx context.Context, dsn string, cfg PoolConfig) (*pgxpool.Pool, error) {
	if err := ValidateDSN(dsn); err != nil {
		return nil, fmt.Errorf("invalid POSTGRES_DSN: %w", err)
	}

	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	def := DefaultPoolConfig()
	pcfg.MaxConns = orDefault(cfg.MaxConns, def.MaxConns)
	pcfg.MinConns = orDefault(cfg.MinConns, def.MinConns)
	pcfg.MaxConnLifetime = orDefault(cfg.MaxConnLifetime, def.MaxConnLifetime)
	pcfg.MaxConnIdleTime = orDefault(cfg.MaxConnIdleTime, def.MaxConnIdleTime)
	pcfg.HealthCheckPeriod = orDefault(cfg.HealthCheckPeriod, def.HealthCheckPeriod)

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}

	// 连通性检查
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

func orDefault[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
