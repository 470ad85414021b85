package dto

import (
	"github.com/jaykayhq/insight-pipeline/internal/pipeline"
	workers "github.com/jaykayhq/insight-pipeline/internal/worker"
)

// RunAgentResponse 代理运行一次的结果
type RunAgentResponse struct {
	Message     string   `json:"message" example:"Task completed successfully."`
	Status      string   `json:"status" example:"completed"`
	TaskType    string   `json:"task_type" example:"SCRAPE_RSS_FEED"`
	TaskID      string   `json:"task_id,omitempty"`
	FollowUpIDs []string `json:"follow_up_ids,omitempty"`
}

// OrchestratorRunResponse 编排一次的结果
type OrchestratorRunResponse struct {
	Message   string                    `json:"message" example:"Orchestration check complete. Created 2 new tasks."`
	Created   int                       `json:"created" example:"2"`
	Skipped   int                       `json:"skipped" example:"1"`
	Errors    int                       `json:"errors" example:"0"`
	Decisions []pipeline.SourceDecision `json:"decisions"`
}

// PipelineResponse 流水线图与已注册代理
type PipelineResponse struct {
	Edges  []pipeline.Edge `json:"edges"`
	Agents []workers.Info  `json:"agents"`
}
