package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jaykayhq/insight-pipeline/internal/metrics"
	"github.com/jaykayhq/insight-pipeline/internal/middleware"
	"github.com/jaykayhq/insight-pipeline/internal/model"
	"github.com/jaykayhq/insight-pipeline/internal/payload"
	"github.com/jaykayhq/insight-pipeline/internal/repository"
	"github.com/jaykayhq/insight-pipeline/internal/server/dto"
	workers "github.com/jaykayhq/insight-pipeline/internal/worker"
)

// TaskHandler Task 相关 API Handler
type TaskHandler struct {
	tasks    repository.TaskRepository
	sources  repository.SourceRepository
	registry *workers.Registry
}

// NewTaskHandler 创建 TaskHandler
func NewTaskHandler(tasks repository.TaskRepository, sources repository.SourceRepository, registry *workers.Registry) *TaskHandler {
	return &TaskHandler{
		tasks:    tasks,
		sources:  sources,
		registry: registry,
	}
}

// CreateTask godoc
// @Summary 手动入队
// @Description 创建一个 pending 任务，载荷按任务类型校验
// @Tags Tasks
// @Accept json
// @Produce json
// @Param request body dto.CreateTaskRequest true "任务创建请求"
// @Success 201 {object} dto.TaskResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /tasks [post]
func (h *TaskHandler) CreateTask(c *gin.Context) {
	var req dto.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}

	if !middleware.ValidateTaskType(req.TaskType) {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "task_type 格式无效"})
		return
	}
	// 没有代理的任务类型永远不会被处理
	if _, err := h.registry.Get(req.TaskType); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}
	if err := payload.Validate(req.TaskType, req.Payload); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error(), Kind: "malformed_payload"})
		return
	}

	task, err := h.tasks.InsertTask(c.Request.Context(), req.TaskType, req.Payload)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}
	metrics.RecordTaskCreated(req.TaskType, model.OriginOperator)
	c.JSON(http.StatusCreated, dto.TaskResponse{Task: *task})
}

// ListTasks godoc
// @Summary 任务列表
// @Description 按创建时间倒序分页查询任务
// @Tags Tasks
// @Produce json
// @Param task_type query string false "任务类型"
// @Param status query string false "状态" Enums(pending, claimed, completed, failed)
// @Param limit query int false "每页条数" default(50)
// @Param offset query int false "偏移" default(0)
// @Success 200 {object} dto.ListTasksResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /tasks [get]
func (h *TaskHandler) ListTasks(c *gin.Context) {
	filter := repository.ListTasksFilter{
		TaskType: c.Query("task_type"),
		Status:   c.Query("status"),
	}
	if filter.TaskType != "" && !middleware.ValidateTaskType(filter.TaskType) {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "task_type 格式无效"})
		return
	}
	if filter.Status != "" && !model.TaskStatus(filter.Status).Valid() {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "status 无效"})
		return
	}

	var err error
	if v := c.Query("limit"); v != "" {
		if filter.Limit, err = strconv.Atoi(v); err != nil {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "limit 必须是整数"})
			return
		}
	}
	if v := c.Query("offset"); v != "" {
		if filter.Offset, err = strconv.Atoi(v); err != nil {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "offset 必须是整数"})
			return
		}
	}
	filter = filter.Normalize()

	items, err := h.tasks.ListTasks(c.Request.Context(), filter)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}
	if items == nil {
		items = []repository.Task{}
	}
	c.JSON(http.StatusOK, dto.ListTasksResponse{Items: items, Limit: filter.Limit, Offset: filter.Offset})
}

// GetTask godoc
// @Summary 任务详情
// @Tags Tasks
// @Produce json
// @Param task_id path string true "任务 ID"
// @Success 200 {object} dto.TaskResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /tasks/{task_id} [get]
func (h *TaskHandler) GetTask(c *gin.Context) {
	task, err := h.tasks.GetTask(c.Request.Context(), c.Param("task_id"))
	if err != nil {
		h.taskError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.TaskResponse{Task: *task})
}

// RequeueTask godoc
// @Summary 重新入队失败任务
// @Description 以相同类型和载荷创建一个新的 pending 任务；原任务保持 failed
// @Tags Tasks
// @Produce json
// @Param task_id path string true "任务 ID"
// @Success 201 {object} dto.RequeueTaskResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /tasks/{task_id}/requeue [post]
func (h *TaskHandler) RequeueTask(c *gin.Context) {
	ctx := c.Request.Context()
	old, err := h.tasks.GetTask(ctx, c.Param("task_id"))
	if err != nil {
		h.taskError(c, err)
		return
	}
	if old.Status != model.TaskStatusFailed {
		c.JSON(http.StatusConflict, dto.ErrorResponse{Error: "只有 failed 任务可以重新入队", TaskID: old.ID})
		return
	}

	task, err := h.tasks.InsertTask(ctx, old.TaskType, old.Payload)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}
	metrics.RecordTaskCreated(old.TaskType, model.OriginOperator)
	c.JSON(http.StatusCreated, dto.RequeueTaskResponse{Task: *task, RequeuedFrom: old.ID})
}

// ListSources godoc
// @Summary 数据源列表
// @Tags Sources
// @Produce json
// @Success 200 {object} dto.ListSourcesResponse
// @Router /sources [get]
func (h *TaskHandler) ListSources(c *gin.Context) {
	items, err := h.sources.ListSources(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}
	if items == nil {
		items = []repository.Source{}
	}
	c.JSON(http.StatusOK, dto.ListSourcesResponse{Items: items})
}

func (h *TaskHandler) taskError(c *gin.Context, err error) {
	if errors.Is(err, repository.ErrTaskNotFound) {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: err.Error()})
		return
	}
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
}
