package dto

import (
	"encoding/json"

	"github.com/jaykayhq/insight-pipeline/internal/repository"
)

// CreateTaskRequest 运维手动入队
type CreateTaskRequest struct {
	TaskType string          `json:"task_type" binding:"required" example:"SCRAPE_RSS_FEED"`
	Payload  json.RawMessage `json:"payload" swaggertype:"object"`
}

// TaskResponse 单个任务
type TaskResponse struct {
	Task repository.Task `json:"task"`
}

// RequeueTaskResponse 重新入队结果
type RequeueTaskResponse struct {
	Task         repository.Task `json:"task"`
	RequeuedFrom string          `json:"requeued_from"`
}

// ListTasksResponse 任务列表
type ListTasksResponse struct {
	Items  []repository.Task `json:"items"`
	Limit  int               `json:"limit" example:"50"`
	Offset int               `json:"offset" example:"0"`
}

// ListSourcesResponse 数据源列表
type ListSourcesResponse struct {
	Items []repository.Source `json:"items"`
}
