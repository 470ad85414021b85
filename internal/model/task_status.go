package model

// TaskStatus 任务状态枚举（用于 API/PG/Redis/前端筛选）。
// 约定：
// - pending: 已创建，等待被 agent 认领
// - claimed: 已被某个 agent 原子认领，正在处理
// - completed: 处理成功（终态）
// - failed: 处理失败（终态，不会自动重试）
//
// 状态只能单向流转：pending -> claimed -> completed|failed。
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusClaimed   TaskStatus = "claimed"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusClaimed, TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal completed/failed 为吸收态
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// CanTransition 判断状态流转是否合法
func CanTransition(from, to TaskStatus) bool {
	switch from {
	case TaskStatusPending:
		return to == TaskStatusClaimed
	case TaskStatusClaimed:
		return to == TaskStatusCompleted || to == TaskStatusFailed
	default:
		return false
	}
}
