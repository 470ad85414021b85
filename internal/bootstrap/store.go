package bootstrap

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/jaykayhq/insight-pipeline/internal/config"
	"github.com/jaykayhq/insight-pipeline/internal/repository"
	"github.com/jaykayhq/insight-pipeline/internal/storage/postgres"
	rediskeys "github.com/jaykayhq/insight-pipeline/internal/storage/redis"
)

// Backend 打开的任务存储及其底层连接
type Backend struct {
	Driver string
	Store  repository.Store
	Pool   *pgxpool.Pool
	Redis  *redis.Client
	// Migrations 本次启动执行的 SQL 迁移文件
	Migrations []string

	// gorm 只在启动阶段用于建表和写种子
	gormDB *gorm.DB
}

// OpenStore 按 STORE_DRIVER 打开任务存储
func OpenStore(ctx context.Context, cfg *config.Config) (*Backend, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		return openPostgres(ctx, cfg)
	case config.StoreDriverRedis:
		rdb, err := rediskeys.NewClient(ctx, cfg.Redis.URL())
		if err != nil {
			return nil, err
		}
		return &Backend{Driver: cfg.Store.Driver, Store: repository.NewRedisStore(rdb).Store(), Redis: rdb}, nil
	case config.StoreDriverMemory:
		mem := repository.NewMemoryStore()
		return &Backend{Driver: cfg.Store.Driver, Store: mem.Store()}, nil
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.Store.Driver)
	}
}

func openPostgres(ctx context.Context, cfg *config.Config) (*Backend, error) {
	b := &Backend{Driver: cfg.Store.Driver}

	if cfg.Store.AutoMigrate {
		db, err := postgres.OpenGorm(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, err
		}
		if err := postgres.AutoMigrate(ctx, db); err != nil {
			_ = postgres.CloseGorm(db)
			return nil, err
		}
		b.gormDB = db
	}

	if cfg.Store.MigrationsDir != "" {
		applied, err := postgres.ApplyMigrations(ctx, cfg.Postgres.DSN, cfg.Store.MigrationsDir)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
		b.Migrations = applied
	}

	pool, err := postgres.NewPool(ctx, cfg.Postgres.DSN, postgres.PoolConfig{
		MaxConns:          cfg.DBPool.MaxConns,
		MinConns:          cfg.DBPool.MinConns,
		MaxConnLifetime:   cfg.DBPool.MaxConnLifetime,
		MaxConnIdleTime:   cfg.DBPool.MaxConnIdleTime,
		HealthCheckPeriod: cfg.DBPool.HealthCheckPeriod,
	})
	if err != nil {
		b.Close()
		return nil, err
	}
	b.Pool = pool
	b.Store = repository.NewPGStore(pool)
	return b, nil
}

// SeedSources 写入数据源种子。postgres 走 gorm 批量 upsert，其他驱动逐条 UpsertSource。
func (b *Backend) SeedSources(ctx context.Context, sources []repository.Source) error {
	if len(sources) == 0 {
		return nil
	}
	if b.gormDB != nil {
		return postgres.SeedSources(ctx, b.gormDB, sources)
	}
	for _, s := range sources {
		if err := b.Store.Sources.UpsertSource(ctx, s); err != nil {
			return fmt.Errorf("seed source %s: %w", s.Name, err)
		}
	}
	return nil
}

// Close 关闭所有连接
func (b *Backend) Close() {
	if b.gormDB != nil {
		_ = postgres.CloseGorm(b.gormDB)
		b.gormDB = nil
	}
	if b.Pool != nil {
		b.Pool.Close()
	}
	if b.Redis != nil {
		_ = b.Redis.Close()
	}
}
