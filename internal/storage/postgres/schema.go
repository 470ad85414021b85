package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/jaykayhq/insight-pipeline/internal/repository"
)

// OpenGorm 打开 GORM 连接，仅用于建表与种子数据
func OpenGorm(ctx context.Context, dsn string) (*gorm.DB, error) {
	if err := ValidateDSN(dsn); err != nil {
		return nil, fmt.Errorf("invalid POSTGRES_DSN: %w", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(2)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// CloseGorm 关闭 GORM 底层连接
func CloseGorm(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// AutoMigrate 创建/更新 agent_tasks、data_sources、x_trends、actionable_insights
func AutoMigrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(repository.AllModels()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// SeedSources 写入数据源种子；已存在的数据源只更新配置，不动 cool_down_until
func SeedSources(ctx context.Context, db *gorm.DB, sources []repository.Source) error {
	if len(sources) == 0 {
		return nil
	}

	rows := make([]repository.SourceModel, 0, len(sources))
	for _, s := range sources {
		s.CoolDownUntil = nil
		rows = append(rows, repository.SourceToModel(s))
	}

	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"refresh_interval_seconds", "default_payload", "updated_at"}),
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("seed sources: %w", err)
	}
	return nil
}
