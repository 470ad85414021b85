package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGSourceRepo 基于 PostgreSQL 的数据源仓储
type PGSourceRepo struct {
	pool *pgxpool.Pool
}

func NewPGSourceRepo(pool *pgxpool.Pool) *PGSourceRepo {
	return &PGSourceRepo{pool: pool}
}

func (r *PGSourceRepo) ListSources(ctx context.Context) ([]Source, error) {
	rows, err := r.pool.Query(ctx, `
select name, refresh_interval_seconds, default_payload, cool_down_until
from data_sources
order by name asc
`)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	out := make([]Source, 0)
	for rows.Next() {
		var (
			s       Source
			seconds int64
		)
		if err := rows.Scan(&s.Name, &seconds, &s.DefaultPayload, &s.CoolDownUntil); err != nil {
			return nil, err
		}
		s.RefreshInterval = time.Duration(seconds) * time.Second
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *PGSourceRepo) UpdateSourceCooldown(ctx context.Context, name string, until time.Time) error {
	tag, err := r.pool.Exec(ctx, `
update data_sources set cool_down_until=$2, updated_at=now() where name=$1
`, name, until)
	if err != nil {
		return fmt.Errorf("update source cooldown: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSourceNotFound
	}
	return nil
}

// UpsertSource 已存在时只覆盖配置字段，cool_down_until 为空时保留原值
func (r *PGSourceRepo) UpsertSource(ctx context.Context, s Source) error {
	_, err := r.pool.Exec(ctx, `
insert into data_sources(name, refresh_interval_seconds, default_payload, cool_down_until, created_at, updated_at)
values ($1, $2, $3, $4, now(), now())
on conflict (name) do update set
    refresh_interval_seconds = excluded.refresh_interval_seconds,
    default_payload = excluded.default_payload,
    cool_down_until = coalesce(excluded.cool_down_until, data_sources.cool_down_until),
    updated_at = now()
`, s.Name, int64(s.RefreshInterval/time.Second), emptyPayload(s.DefaultPayload), s.CoolDownUntil)
	if err != nil {
		return fmt.Errorf("upsert source: %w", err)
	}
	return nil
}

// PGArtifactRepo 保存代理产出的话题与洞察
type PGArtifactRepo struct {
	pool *pgxpool.Pool
}

func NewPGArtifactRepo(pool *pgxpool.Pool) *PGArtifactRepo {
	return &PGArtifactRepo{pool: pool}
}

func (r *PGArtifactRepo) InsertTrends(ctx context.Context, trends []Trend) ([]int64, error) {
	if len(trends) == 0 {
		return nil, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ids := make([]int64, 0, len(trends))
	for _, t := range trends {
		var id int64
		if err := tx.QueryRow(ctx, `
insert into x_trends(topic, tweet_volume, x_woeid, created_at)
values ($1, $2, $3, now())
returning id
`, t.Topic, t.TweetVolume, t.WOEID).Scan(&id); err != nil {
			return nil, fmt.Errorf("insert trend: %w", err)
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *PGArtifactRepo) TopicsByIDs(ctx context.Context, ids []int64) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
select topic from x_trends where id = any($1) order by id asc
`, ids)
	if err != nil {
		return nil, fmt.Errorf("topics by ids: %w", err)
	}
	defer rows.Close()

	var topics []string
	for rows.Next() {
		var topic string
		if err := rows.Scan(&topic); err != nil {
			return nil, err
		}
		topics = append(topics, topic)
	}
	return topics, rows.Err()
}

func (r *PGArtifactRepo) InsertInsights(ctx context.Context, taskID string, insights []string) error {
	if len(insights) == 0 {
		return nil
	}

	var tid *string
	if taskID != "" {
		tid = &taskID
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, text := range insights {
		if _, err := tx.Exec(ctx, `
insert into actionable_insights(insight_text, task_id, created_at) values ($1, $2, now())
`, text, tid); err != nil {
			return fmt.Errorf("insert insight: %w", err)
		}
	}
	return tx.Commit(ctx)
}

// NewPGStore 用同一个连接池组装 PostgreSQL 仓储
func NewPGStore(pool *pgxpool.Pool) Store {
	artifacts := NewPGArtifactRepo(pool)
	return Store{
		Tasks:    NewPGTaskRepo(pool),
		Sources:  NewPGSourceRepo(pool),
		Trends:   artifacts,
		Insights: artifacts,
	}
}
