package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/jaykayhq/insight-pipeline/internal/healthcheck"
	"github.com/jaykayhq/insight-pipeline/internal/middleware"
	"github.com/jaykayhq/insight-pipeline/internal/pipeline"
	"github.com/jaykayhq/insight-pipeline/internal/repository"
	"github.com/jaykayhq/insight-pipeline/internal/server/handler"
	workers "github.com/jaykayhq/insight-pipeline/internal/worker"
)

type Deps struct {
	Store        repository.Store
	Registry     *workers.Registry
	Orchestrator handler.Sweeper
	Graph        *pipeline.Graph

	// HealthChecker 健康检查器
	HealthChecker *healthcheck.HealthChecker

	// MaxBodyBytes 请求体上限，0 使用默认值
	MaxBodyBytes int64

	// Logger 访问日志，nil 时使用全局 logger
	Logger *zerolog.Logger
}

// NewRouter 提供 Gin HTTP API
func NewRouter(deps Deps) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())

	// 全局中间件
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.PrometheusMiddleware())
	r.Use(middleware.LoggingMiddleware(deps.Logger))
	r.Use(middleware.PayloadSizeLimit(deps.MaxBodyBytes))
	r.Use(middleware.CORSMiddleware())

	graph := deps.Graph
	if graph == nil {
		graph = pipeline.DefaultGraph()
	}

	healthHandler := handler.NewHealthHandler(deps.HealthChecker, deps.Registry)
	agentHandler := handler.NewAgentHandler(deps.Registry, deps.Orchestrator, graph)
	taskHandler := handler.NewTaskHandler(deps.Store.Tasks, deps.Store.Sources, deps.Registry)

	// 健康检查路由
	r.GET("/healthz", healthHandler.Liveness)
	r.GET("/readyz", healthHandler.Readiness)

	// Prometheus metrics 端点
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Swagger API 文档
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api/v1")
	{
		api.POST("/agents/:task_type/run", middleware.ValidateTaskTypeParam(), agentHandler.RunAgent)
		api.POST("/orchestrator/run", agentHandler.RunOrchestrator)
		api.GET("/pipeline", agentHandler.GetPipeline)

		api.POST("/tasks", taskHandler.CreateTask)
		api.GET("/tasks", taskHandler.ListTasks)
		api.GET("/tasks/:task_id", middleware.ValidateTaskIDParam(), taskHandler.GetTask)
		api.POST("/tasks/:task_id/requeue", middleware.ValidateTaskIDParam(), taskHandler.RequeueTask)

		api.GET("/sources", taskHandler.ListSources)
	}

	return r
}
