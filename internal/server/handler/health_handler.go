package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jaykayhq/insight-pipeline/internal/healthcheck"
	"github.com/jaykayhq/insight-pipeline/internal/server/dto"
	workers "github.com/jaykayhq/insight-pipeline/internal/worker"
)

// HealthHandler 存活与就绪检查
type HealthHandler struct {
	checker  *healthcheck.HealthChecker
	registry *workers.Registry
}

// NewHealthHandler checker 为 nil 时只报告存活，registry 为 nil 时不报告代理
func NewHealthHandler(checker *healthcheck.HealthChecker, registry *workers.Registry) *HealthHandler {
	return &HealthHandler{checker: checker, registry: registry}
}

// Liveness godoc
// @Summary 存活检查
// @Description 进程存活即返回 200，不检查任务存储
// @Tags Health
// @Produce json
// @Success 200 {object} healthcheck.CheckResult
// @Router /healthz [get]
func (h *HealthHandler) Liveness(c *gin.Context) {
	if h.checker == nil {
		c.JSON(http.StatusOK, healthcheck.CheckResult{Status: "ok"})
		return
	}
	c.JSON(http.StatusOK, h.checker.LivenessCheck())
}

// Readiness godoc
// @Summary 就绪检查
// @Description 报告 STORE_DRIVER 及其连接状态；各代理的配置状态只做展示，不影响就绪
// @Tags Health
// @Produce json
// @Success 200 {object} dto.ReadinessResponse
// @Failure 503 {object} dto.ReadinessResponse
// @Router /readyz [get]
func (h *HealthHandler) Readiness(c *gin.Context) {
	resp := dto.ReadinessResponse{Status: "ok", Checks: map[string]string{}}
	if h.checker != nil {
		result := h.checker.ReadinessCheck(c.Request.Context())
		resp.Status = result.Status
		resp.Store = h.checker.Driver()
		for name, state := range result.Checks {
			if name != "store" {
				resp.Checks[name] = state
			}
		}
	}

	if h.registry != nil {
		resp.Agents = make(map[string]string)
		for _, info := range h.registry.List(nil) {
			state := "ready"
			if !info.Ready {
				state = "not ready: " + info.NotReady
			}
			resp.Agents[info.TaskType] = state
		}
	}

	code := http.StatusOK
	if resp.Status == "error" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, resp)
}
