package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jaykayhq/insight-pipeline/internal/model"
)

const taskColumns = `id, task_type, status, payload, coalesce(result, 'null'::jsonb), coalesce(last_error,''), claimed_at, created_at, updated_at`

// PGTaskRepo 基于 PostgreSQL 的任务仓储
type PGTaskRepo struct {
	pool *pgxpool.Pool
}

func NewPGTaskRepo(pool *pgxpool.Pool) *PGTaskRepo {
	return &PGTaskRepo{pool: pool}
}

func scanTask(row pgx.Row) (*Task, error) {
	var (
		t      Task
		status string
	)
	if err := row.Scan(&t.ID, &t.TaskType, &status, &t.Payload, &t.Result, &t.LastError, &t.ClaimedAt, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Status = model.TaskStatus(status)
	if string(t.Result) == "null" {
		t.Result = nil
	}
	return &t, nil
}

// ClaimNextTask 选择与更新在同一条语句里完成；FOR UPDATE SKIP LOCKED 让并发认领者
// 跳过已被锁定的行，失败的一方直接拿到空结果。
func (r *PGTaskRepo) ClaimNextTask(ctx context.Context, taskType string) (*Task, error) {
	row := r.pool.QueryRow(ctx, `
update agent_tasks
set status='claimed', claimed_at=now(), updated_at=now()
where id = (
    select id from agent_tasks
    where task_type=$1 and status='pending'
    order by seq asc
    for update skip locked
    limit 1
)
and status='pending'
returning `+taskColumns, taskType)

	t, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoPendingTask
	}
	if err != nil {
		return nil, fmt.Errorf("claim next task: %w", err)
	}
	return t, nil
}

func (r *PGTaskRepo) InsertTask(ctx context.Context, taskType string, payload json.RawMessage) (*Task, error) {
	if taskType == "" {
		return nil, errors.New("task_type 不能为空")
	}
	row := r.pool.QueryRow(ctx, `
insert into agent_tasks(id, task_type, status, payload)
values ($1, $2, 'pending', $3)
returning `+taskColumns, uuid.NewString(), taskType, emptyPayload(payload))

	t, err := scanTask(row)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	return t, nil
}

// UpdateTask 只更新仍处于 claimed 的任务，保证终态字段至多写一次。
func (r *PGTaskRepo) UpdateTask(ctx context.Context, id string, upd TaskUpdate) error {
	if err := upd.Validate(); err != nil {
		return err
	}

	var (
		result    any
		lastError any
	)
	if upd.Status == model.TaskStatusCompleted {
		result = emptyPayload(upd.Result)
	} else {
		lastError = upd.LastError
	}

	tag, err := r.pool.Exec(ctx, `
update agent_tasks
set status=$2, result=$3, last_error=$4, updated_at=now()
where id=$1 and status='claimed'
`, id, string(upd.Status), result, lastError)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// 区分不存在与非法流转
	if _, err := r.GetTask(ctx, id); err != nil {
		return err
	}
	return ErrInvalidTransition
}

func (r *PGTaskRepo) CountPendingTasks(ctx context.Context, taskType string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
select count(*) from agent_tasks where task_type=$1 and status='pending'
`, taskType).Scan(&count)
	return count, err
}

func (r *PGTaskRepo) GetTask(ctx context.Context, id string) (*Task, error) {
	row := r.pool.QueryRow(ctx, `select `+taskColumns+` from agent_tasks where id=$1`, id)
	t, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTaskNotFound
	}
	return t, err
}

func (r *PGTaskRepo) ListTasks(ctx context.Context, f ListTasksFilter) ([]Task, error) {
	f = f.Normalize()

	rows, err := r.pool.Query(ctx, `
select `+taskColumns+`
from agent_tasks
where ($1='' or task_type=$1)
  and ($2='' or status=$2)
order by seq desc
limit $3 offset $4
`, f.TaskType, f.Status, f.Limit, f.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}
