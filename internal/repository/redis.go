package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jaykayhq/insight-pipeline/internal/model"
	rediskeys "github.com/jaykayhq/insight-pipeline/internal/storage/redis"
)

// 认领脚本：从 pending 列表头部弹出，直到找到仍是 pending 的任务并置为 claimed，
// 返回该任务的 HGETALL。KEYS[1] pending 列表；ARGV[1] 任务 key 前缀；ARGV[2] 当前时间。
// 任务 key 在脚本内拼出，不能用于 Redis Cluster。
var claimScript = redis.NewScript(`
while true do
  local id = redis.call('LPOP', KEYS[1])
  if not id then
    return false
  end
  local key = ARGV[1] .. id
  if redis.call('HGET', key, 'status') == 'pending' then
    redis.call('HSET', key, 'status', 'claimed', 'claimed_at', ARGV[2], 'updated_at', ARGV[2])
    return redis.call('HGETALL', key)
  end
end
`)

// 终态写入脚本：只有 claimed 状态的任务才能写入。
// 返回 -1 不存在，0 状态不对，1 成功
var updateScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'status')
if not cur then
  return -1
end
if cur ~= 'claimed' then
  return 0
end
redis.call('HSET', KEYS[1], 'status', ARGV[1], ARGV[2], ARGV[3], 'updated_at', ARGV[4])
return 1
`)

// RedisStore 基于 Redis 的存储驱动
type RedisStore struct {
	rdb *redis.Client
	now func() time.Time
}

// NewRedisStore 创建 Redis 存储
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb, now: time.Now}
}

// Store 返回聚合仓储
func (s *RedisStore) Store() Store {
	return Store{Tasks: s, Sources: s, Trends: s, Insights: s}
}

func taskKey(id string) string          { return rediskeys.Key("task", id) }
func pendingKey(taskType string) string { return rediskeys.Key("pending", taskType) }
func sourceKey(name string) string      { return rediskeys.Key("source", name) }
func trendKey(id int64) string          { return rediskeys.Key("trend", strconv.FormatInt(id, 10)) }

var (
	taskSeqKey   = rediskeys.Key("seq")
	taskIndexKey = rediskeys.Key("tasks")
	sourceSetKey = rediskeys.Key("sources")
	trendSeqKey  = rediskeys.Key("trend", "seq")
	insightsKey  = rediskeys.Key("insights")
)

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func taskFromHash(h map[string]string) *Task {
	t := &Task{
		ID:        h["id"],
		TaskType:  h["task_type"],
		Status:    model.TaskStatus(h["status"]),
		Payload:   json.RawMessage(h["payload"]),
		LastError: h["last_error"],
		CreatedAt: parseTime(h["created_at"]),
		UpdatedAt: parseTime(h["updated_at"]),
	}
	if r := h["result"]; r != "" {
		t.Result = json.RawMessage(r)
	}
	if c := h["claimed_at"]; c != "" {
		at := parseTime(c)
		t.ClaimedAt = &at
	}
	return t
}

func (s *RedisStore) ClaimNextTask(ctx context.Context, taskType string) (*Task, error) {
	fields, err := claimScript.Run(ctx, s.rdb,
		[]string{pendingKey(taskType)},
		rediskeys.Key("task")+":", formatTime(s.now()),
	).StringSlice()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoPendingTask
	}
	if err != nil {
		return nil, fmt.Errorf("claim next task: %w", err)
	}
	return taskFromHash(pairsToMap(fields)), nil
}

// pairsToMap 把 HGETALL 的扁平回复转成 map
func pairsToMap(fields []string) map[string]string {
	h := make(map[string]string, len(fields)/2)
	for i := 0; i+1 < len(fields); i += 2 {
		h[fields[i]] = fields[i+1]
	}
	return h
}

func (s *RedisStore) InsertTask(ctx context.Context, taskType string, payload json.RawMessage) (*Task, error) {
	if taskType == "" {
		return nil, errors.New("task_type 不能为空")
	}

	seq, err := s.rdb.Incr(ctx, taskSeqKey).Result()
	if err != nil {
		return nil, fmt.Errorf("next seq: %w", err)
	}

	now := s.now()
	t := &Task{
		ID:        uuid.NewString(),
		TaskType:  taskType,
		Status:    model.TaskStatusPending,
		Payload:   emptyPayload(payload),
		CreatedAt: now,
		UpdatedAt: now,
	}

	// 先写 hash 再入列表，认领方看到 id 时 hash 一定存在
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, taskKey(t.ID),
			"id", t.ID,
			"seq", seq,
			"task_type", t.TaskType,
			"status", string(t.Status),
			"payload", string(t.Payload),
			"created_at", formatTime(now),
			"updated_at", formatTime(now),
		)
		p.ZAdd(ctx, taskIndexKey, redis.Z{Score: float64(seq), Member: t.ID})
		p.RPush(ctx, pendingKey(taskType), t.ID)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	return t, nil
}

func (s *RedisStore) UpdateTask(ctx context.Context, id string, upd TaskUpdate) error {
	if err := upd.Validate(); err != nil {
		return err
	}

	field, value := "last_error", upd.LastError
	if upd.Status == model.TaskStatusCompleted {
		field, value = "result", string(emptyPayload(upd.Result))
	}

	n, err := updateScript.Run(ctx, s.rdb,
		[]string{taskKey(id)},
		string(upd.Status), field, value, formatTime(s.now()),
	).Int()
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	switch n {
	case 1:
		return nil
	case -1:
		return ErrTaskNotFound
	default:
		return ErrInvalidTransition
	}
}

// CountPendingTasks pending 列表里只保留尚未认领的 id
func (s *RedisStore) CountPendingTasks(ctx context.Context, taskType string) (int, error) {
	n, err := s.rdb.LLen(ctx, pendingKey(taskType)).Result()
	return int(n), err
}

func (s *RedisStore) GetTask(ctx context.Context, id string) (*Task, error) {
	h, err := s.rdb.HGetAll(ctx, taskKey(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(h) == 0 {
		return nil, ErrTaskNotFound
	}
	return taskFromHash(h), nil
}

func (s *RedisStore) ListTasks(ctx context.Context, f ListTasksFilter) ([]Task, error) {
	f = f.Normalize()

	const page = 100
	out := make([]Task, 0)
	skipped := 0

	for start := int64(0); ; start += page {
		ids, err := s.rdb.ZRevRange(ctx, taskIndexKey, start, start+page-1).Result()
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return out, nil
		}

		cmds, err := s.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
			for _, id := range ids {
				p.HGetAll(ctx, taskKey(id))
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		for _, cmd := range cmds {
			h := cmd.(*redis.MapStringStringCmd).Val()
			if len(h) == 0 {
				continue
			}
			t := taskFromHash(h)
			if f.TaskType != "" && t.TaskType != f.TaskType {
				continue
			}
			if f.Status != "" && string(t.Status) != f.Status {
				continue
			}
			if skipped < f.Offset {
				skipped++
				continue
			}
			out = append(out, *t)
			if len(out) >= f.Limit {
				return out, nil
			}
		}
	}
}

func (s *RedisStore) ListSources(ctx context.Context) ([]Source, error) {
	names, err := s.rdb.SMembers(ctx, sourceSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	sort.Strings(names)

	out := make([]Source, 0, len(names))
	for _, name := range names {
		h, err := s.rdb.HGetAll(ctx, sourceKey(name)).Result()
		if err != nil {
			return nil, err
		}
		if len(h) == 0 {
			continue
		}
		seconds, _ := strconv.ParseInt(h["refresh_interval_seconds"], 10, 64)
		src := Source{
			Name:            name,
			RefreshInterval: time.Duration(seconds) * time.Second,
			DefaultPayload:  json.RawMessage(h["default_payload"]),
		}
		if c := h["cool_down_until"]; c != "" {
			until := parseTime(c)
			src.CoolDownUntil = &until
		}
		out = append(out, src)
	}
	return out, nil
}

func (s *RedisStore) UpdateSourceCooldown(ctx context.Context, name string, until time.Time) error {
	ok, err := s.rdb.SIsMember(ctx, sourceSetKey, name).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrSourceNotFound
	}
	return s.rdb.HSet(ctx, sourceKey(name), "cool_down_until", formatTime(until)).Err()
}

func (s *RedisStore) UpsertSource(ctx context.Context, src Source) error {
	values := []any{
		"refresh_interval_seconds", int64(src.RefreshInterval / time.Second),
		"default_payload", string(emptyPayload(src.DefaultPayload)),
	}
	if src.CoolDownUntil != nil {
		values = append(values, "cool_down_until", formatTime(*src.CoolDownUntil))
	}
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, sourceKey(src.Name), values...)
		p.SAdd(ctx, sourceSetKey, src.Name)
		return nil
	})
	return err
}

func (s *RedisStore) InsertTrends(ctx context.Context, trends []Trend) ([]int64, error) {
	ids := make([]int64, 0, len(trends))
	for _, tr := range trends {
		id, err := s.rdb.Incr(ctx, trendSeqKey).Result()
		if err != nil {
			return nil, err
		}
		values := []any{
			"topic", tr.Topic,
			"woeid", tr.WOEID,
			"created_at", formatTime(s.now()),
		}
		if tr.TweetVolume != nil {
			values = append(values, "tweet_volume", *tr.TweetVolume)
		}
		if err := s.rdb.HSet(ctx, trendKey(id), values...).Err(); err != nil {
			return nil, fmt.Errorf("insert trend: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *RedisStore) TopicsByIDs(ctx context.Context, ids []int64) ([]string, error) {
	var topics []string
	for _, id := range ids {
		topic, err := s.rdb.HGet(ctx, trendKey(id), "topic").Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, err
		}
		topics = append(topics, topic)
	}
	return topics, nil
}

func (s *RedisStore) InsertInsights(ctx context.Context, taskID string, insights []string) error {
	if len(insights) == 0 {
		return nil
	}
	now := s.now()
	values := make([]any, 0, len(insights))
	for _, text := range insights {
		b, err := json.Marshal(Insight{InsightText: text, TaskID: taskID, CreatedAt: now})
		if err != nil {
			return err
		}
		values = append(values, string(b))
	}
	return s.rdb.RPush(ctx, insightsKey, values...).Err()
}
