package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jaykayhq/insight-pipeline/internal/bootstrap"
	"github.com/jaykayhq/insight-pipeline/internal/config"
	"github.com/jaykayhq/insight-pipeline/internal/logger"
	"github.com/jaykayhq/insight-pipeline/internal/trigger"
)

// 定时触发进程：asynq 调度器按 cron 投递触发消息，同进程内的 asynq 消费端
// 收到消息后运行一次编排器或代理。多个实例可以同时运行，认领由任务存储保证原子。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	if err := logger.Init(cfg.Log.Production); err != nil {
		panic(err)
	}
	defer logger.Sync()
	logger.SetLevel(cfg.Log.Level)

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

	redisOpt, err := trigger.NewRedisConnOpt(cfg.Redis.URL())
	if err != nil {
		logger.L.Fatal().Err(err).Msg("解析 Redis URI 失败")
	}

	log := logger.WithComponent("trigger")

	scheduler := trigger.NewScheduler(redisOpt, log)
	entries, err := trigger.Register(scheduler, trigger.ScheduleConfig{
		OrchestratorCron: cfg.Orchestrator.Cron,
		AgentCron:        cfg.Trigger.AgentCron,
		Queue:            cfg.Trigger.Queue,
		UniqueWindow:     cfg.Trigger.RunTimeout,
	}, app.Registry.TaskTypes())
	if err != nil {
		logger.L.Fatal().Err(err).Msg("注册定时触发失败")
	}
	for _, e := range entries {
		log.Info().Str("entry_id", e.ID).Str("cron", e.Cronspec).Str("target", e.TaskType).Msg("已注册定时触发")
	}

	srv := trigger.NewServer(redisOpt, cfg.Trigger.Queue, cfg.Trigger.Concurrency, cfg.Trigger.RunTimeout, log)
	handler := trigger.NewHandler(app.Orchestrator, app.Registry, log)

	if err := srv.Start(handler.Mux()); err != nil {
		logger.L.Fatal().Err(err).Msg("启动 asynq 消费端失败")
	}
	if err := scheduler.Start(); err != nil {
		logger.L.Fatal().Err(err).Msg("启动 asynq 调度器失败")
	}

	// 启动时立即补跑一次编排，不必等第一个 cron 周期
	client := trigger.NewClient(redisOpt, trigger.Options{Queue: cfg.Trigger.Queue, Unique: cfg.Trigger.RunTimeout})
	if info, err := client.EnqueueOrchestrate(ctx); err != nil {
		log.Warn().Err(err).Msg("启动编排入队失败")
	} else {
		log.Info().Str("asynq_task_id", info.ID).Msg("已入队启动编排")
	}
	_ = client.Close()

	var metricsSrv *http.Server
	if cfg.Monitoring.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Monitoring.Port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Info().Str("addr", metricsSrv.Addr).Msg("metrics 服务监听")
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("metrics 服务错误")
			}
		}()
	}

	<-ctx.Done()

	scheduler.Shutdown()
	srv.Shutdown()
	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	logger.L.Info().Msg("触发进程已退出")
}
