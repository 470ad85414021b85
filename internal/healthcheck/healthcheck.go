package healthcheck

import (
	"context"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// checkTimeout 单项依赖检查超时
const checkTimeout = 2 * time.Second

type check struct {
	name string
	fn   func(ctx context.Context) error
}

// HealthChecker 健康检查器
type HealthChecker struct {
	driver string
	checks []check
}

// NewHealthChecker 创建健康检查器；pgPool、rdb 为 nil 时跳过对应检查
func NewHealthChecker(driver string, pgPool *pgxpool.Pool, rdb *redis.Client) *HealthChecker {
	h := &HealthChecker{driver: driver}
	if pgPool != nil {
		h.checks = append(h.checks, check{name: "postgres", fn: pgPool.Ping})
	}
	if rdb != nil {
		h.checks = append(h.checks, check{name: "redis", fn: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}
	return h
}

// Driver 任务存储驱动
func (h *HealthChecker) Driver() string { return h.driver }

// CheckResult 健康检查结果
type CheckResult struct {
	Status string            `json:"status"` // "ok" or "error"
	Checks map[string]string `json:"checks"`
}

// LivenessCheck 存活检查（快速返回，不检查依赖）
func (h *HealthChecker) LivenessCheck() CheckResult {
	return CheckResult{
		Status: "ok",
		Checks: map[string]string{
			"service": "running",
		},
	}
}

// ReadinessCheck 就绪检查（检查任务存储依赖）
func (h *HealthChecker) ReadinessCheck(ctx context.Context) CheckResult {
	result := CheckResult{
		Status: "ok",
		Checks: map[string]string{"store": h.driver},
	}

	for _, c := range h.checks {
		cctx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := c.fn(cctx)
		cancel()
		if err != nil {
			result.Checks[c.name] = "error: " + err.Error()
			result.Status = "error"
			continue
		}
		result.Checks[c.name] = "ok"
	}
	return result
}

// Names 已配置的依赖检查项
func (h *HealthChecker) Names() []string {
	out := make([]string, 0, len(h.checks))
	for _, c := range h.checks {
		out = append(out, c.name)
	}
	sort.Strings(out)
	return out
}
