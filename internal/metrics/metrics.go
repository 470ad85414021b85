package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP 请求指标
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// 任务指标
	TasksCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_tasks_created_total",
			Help: "Total number of tasks inserted, by origin",
		},
		[]string{"task_type", "origin"},
	)

	TasksClaimedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_tasks_claimed_total",
			Help: "Total number of tasks claimed by agents",
		},
		[]string{"task_type"},
	)

	TasksFinishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_tasks_finished_total",
			Help: "Total number of tasks that reached a terminal state",
		},
		[]string{"task_type", "status"},
	)

	TaskExecutionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_task_execution_duration_seconds",
			Help:    "Task execution duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"task_type"},
	)

	// 代理调用指标（outcome: idle/completed/failed/not_ready）
	AgentRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_agent_runs_total",
			Help: "Total number of agent invocations by outcome",
		},
		[]string{"task_type", "outcome"},
	)

	// 编排器指标
	SweepDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_sweep_decisions_total",
			Help: "Orchestrator per-source decisions",
		},
		[]string{"source", "decision"},
	)

	PendingTasks = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pipeline_pending_tasks",
			Help: "Pending tasks observed during the last sweep",
		},
		[]string{"task_type"},
	)

	// 注册的代理数量
	AgentsRegistered = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pipeline_agents_registered",
			Help: "Number of registered agents",
		},
	)

	// 数据库连接池指标
	DBConnectionsInUse = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pipeline_db_connections_in_use",
			Help: "Number of database connections in use",
		},
	)

	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pipeline_db_connections_idle",
			Help: "Number of idle database connections",
		},
	)

	DBConnectionsMax = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pipeline_db_connections_max",
			Help: "Maximum number of database connections",
		},
	)

	// 错误指标
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "type"},
	)
)

// RecordHTTPRequest 记录 HTTP 请求
func RecordHTTPRequest(method, path string, status int, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, statusClass(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// RecordTaskCreated 记录任务创建
func RecordTaskCreated(taskType, origin string) {
	TasksCreatedTotal.WithLabelValues(taskType, origin).Inc()
}

// RecordTaskClaimed 记录任务认领
func RecordTaskClaimed(taskType string) {
	TasksClaimedTotal.WithLabelValues(taskType).Inc()
}

// RecordTaskFinished 记录任务进入终态
func RecordTaskFinished(taskType, status string, duration float64) {
	TasksFinishedTotal.WithLabelValues(taskType, status).Inc()
	if duration > 0 {
		TaskExecutionDuration.WithLabelValues(taskType).Observe(duration)
	}
}

// RecordAgentRun 记录一次代理调用
func RecordAgentRun(taskType, outcome string) {
	AgentRunsTotal.WithLabelValues(taskType, outcome).Inc()
}

// RecordSweepDecision 记录编排器对某个数据源的决策
func RecordSweepDecision(source, decision string) {
	SweepDecisionsTotal.WithLabelValues(source, decision).Inc()
}

// UpdatePendingTasks 更新 pending 任务数
func UpdatePendingTasks(taskType string, n int) {
	PendingTasks.WithLabelValues(taskType).Set(float64(n))
}

// UpdateAgentStats 更新代理统计
func UpdateAgentStats(total int) {
	AgentsRegistered.Set(float64(total))
}

// UpdateDBPoolStats 更新数据库连接池统计
func UpdateDBPoolStats(inUse, idle, max int32) {
	DBConnectionsInUse.Set(float64(inUse))
	DBConnectionsIdle.Set(float64(idle))
	DBConnectionsMax.Set(float64(max))
}

// RecordError 记录错误
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

// statusClass 将 HTTP 状态码转为类别
func statusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
