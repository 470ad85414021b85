package dto

// ErrorResponse 错误响应
type ErrorResponse struct {
	Error  string `json:"error" example:"task not found"`
	Kind   string `json:"kind,omitempty" example:"upstream"`
	TaskID string `json:"task_id,omitempty" example:"550e8400-e29b-41d4-a716-446655440000"`
}

// MessageResponse 只有一条消息的响应
type MessageResponse struct {
	Message string `json:"message" example:"No pending tasks."`
}

// ReadinessResponse 就绪检查。代理缺配置不影响整体就绪，只在 agents 里标出。
type ReadinessResponse struct {
	Status string            `json:"status" example:"ok"`
	Store  string            `json:"store" example:"postgres"`
	Checks map[string]string `json:"checks"`
	Agents map[string]string `json:"agents,omitempty"`
}
