package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jaykayhq/insight-pipeline/internal/pipeline"
	"github.com/jaykayhq/insight-pipeline/internal/server/dto"
	workers "github.com/jaykayhq/insight-pipeline/internal/worker"
)

// Sweeper 编排器
type Sweeper interface {
	Sweep(ctx context.Context) (pipeline.SweepResult, error)
}

// AgentHandler 代理与编排器调用入口
type AgentHandler struct {
	registry     *workers.Registry
	orchestrator Sweeper
	graph        *pipeline.Graph
}

// NewAgentHandler 创建 AgentHandler
func NewAgentHandler(registry *workers.Registry, orchestrator Sweeper, graph *pipeline.Graph) *AgentHandler {
	return &AgentHandler{registry: registry, orchestrator: orchestrator, graph: graph}
}

// RunAgent godoc
// @Summary 运行一次代理
// @Description 认领并处理该任务类型最早的 pending 任务（至多一个）
// @Tags Agents
// @Produce json
// @Param task_type path string true "任务类型" example(SCRAPE_RSS_FEED)
// @Success 200 {object} dto.RunAgentResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /agents/{task_type}/run [post]
func (h *AgentHandler) RunAgent(c *gin.Context) {
	taskType := c.Param("task_type")

	agent, err := h.registry.Get(taskType)
	if err != nil {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: err.Error()})
		return
	}

	res, err := agent.RunOnce(c.Request.Context())
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, pipeline.ErrConfigMissing) {
			status = http.StatusServiceUnavailable
		}
		_ = c.Error(err)
		c.JSON(status, dto.ErrorResponse{Error: err.Error(), Kind: pipeline.ErrorKind(err), TaskID: res.TaskID})
		return
	}

	c.JSON(http.StatusOK, dto.RunAgentResponse{
		Message:     res.Message,
		Status:      string(res.Status),
		TaskType:    res.TaskType,
		TaskID:      res.TaskID,
		FollowUpIDs: res.FollowUpIDs,
	})
}

// RunOrchestrator godoc
// @Summary 运行一次编排
// @Description 遍历数据源，为冷却结束且没有 pending 任务的数据源创建任务
// @Tags Agents
// @Produce json
// @Success 200 {object} dto.OrchestratorRunResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /orchestrator/run [post]
func (h *AgentHandler) RunOrchestrator(c *gin.Context) {
	res, err := h.orchestrator.Sweep(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto.OrchestratorRunResponse{
		Message:   res.Message(),
		Created:   res.Created,
		Skipped:   res.Skipped,
		Errors:    res.Errors,
		Decisions: res.Decisions,
	})
}

// GetPipeline godoc
// @Summary 流水线结构
// @Description 返回声明的任务类型依赖图和已注册代理的就绪状态
// @Tags Agents
// @Produce json
// @Success 200 {object} dto.PipelineResponse
// @Router /pipeline [get]
func (h *AgentHandler) GetPipeline(c *gin.Context) {
	c.JSON(http.StatusOK, dto.PipelineResponse{
		Edges:  h.graph.Edges(),
		Agents: h.registry.List(h.graph),
	})
}
