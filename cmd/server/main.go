package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jaykayhq/insight-pipeline/internal/bootstrap"
	"github.com/jaykayhq/insight-pipeline/internal/config"
	"github.com/jaykayhq/insight-pipeline/internal/healthcheck"
	"github.com/jaykayhq/insight-pipeline/internal/logger"
	"github.com/jaykayhq/insight-pipeline/internal/metrics"
	httpserver "github.com/jaykayhq/insight-pipeline/internal/server"
	_ "github.com/jaykayhq/insight-pipeline/internal/server/docs" // Swagger docs
)

//go:generate swag init --dir ../.. --generalInfo cmd/server/main.go --output ../../internal/server/docs --outputTypes go

// @title Insight Pipeline API
// @version 1.0.0
// @description 市场洞察任务流水线 - 编排器、代理调用与任务运维接口
// @BasePath /api/v1
// @schemes http https
// @host localhost:28080

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	if err := logger.Init(cfg.Log.Production); err != nil {
		panic(err)
	}
	defer logger.Sync()
	logger.SetLevel(cfg.Log.Level)

	// 验证配置
	if err := cfg.Validate(); err != nil {
		logger.L.Fatal().Err(err).Msg("配置验证失败")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger.WithComponent("bootstrap"))
	if err != nil {
		logger.L.Fatal().Err(err).Msg("初始化流水线失败")
	}
	defer app.Close()

	// 创建健康检查器
	healthChecker := healthcheck.NewHealthChecker(app.Backend.Driver, app.Backend.Pool, app.Backend.Redis)

	accessLog := logger.WithComponent("http")
	httpSrv := &http.Server{
		Addr: cfg.HTTP.Addr,
		Handler: httpserver.NewRouter(httpserver.Deps{
			Store:         app.Backend.Store,
			Registry:      app.Registry,
			Orchestrator:  app.Orchestrator,
			Graph:         app.Graph,
			HealthChecker: healthChecker,
			MaxBodyBytes:  cfg.HTTP.MaxBodyBytes,
			Logger:        &accessLog,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	if app.Backend.Pool != nil {
		go collectPoolStats(ctx, app.Backend.Pool)
	}

	go func() {
		logger.L.Info().
			Str("addr", cfg.HTTP.Addr).
			Str("store", app.Backend.Driver).
			Msg("HTTP 服务监听")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.L.Fatal().Err(err).Msg("HTTP 服务错误")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpSrv.Shutdown(shutdownCtx)
	logger.L.Info().Msg("服务已优雅关闭")
}

// collectPoolStats 定期上报连接池指标
func collectPoolStats(ctx context.Context, pool *pgxpool.Pool) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		s := pool.Stat()
		metrics.UpdateDBPoolStats(s.AcquiredConns(), s.IdleConns(), s.MaxConns())

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
