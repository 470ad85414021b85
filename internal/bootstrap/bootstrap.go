// Package bootstrap 按配置组装任务存储、代理注册表与编排器，供各入口进程共用。
package bootstrap

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/jaykayhq/insight-pipeline/internal/action/crawl"
	"github.com/jaykayhq/insight-pipeline/internal/action/feed"
	"github.com/jaykayhq/insight-pipeline/internal/action/insights"
	"github.com/jaykayhq/insight-pipeline/internal/action/trends"
	"github.com/jaykayhq/insight-pipeline/internal/config"
	"github.com/jaykayhq/insight-pipeline/internal/payload"
	"github.com/jaykayhq/insight-pipeline/internal/pipeline"
	"github.com/jaykayhq/insight-pipeline/internal/repository"
	"github.com/jaykayhq/insight-pipeline/internal/storage/postgres"
	workers "github.com/jaykayhq/insight-pipeline/internal/worker"
)

// App 组装好的运行时
type App struct {
	Config       *config.Config
	Backend      *Backend
	Graph        *pipeline.Graph
	Registry     *workers.Registry
	Orchestrator *pipeline.Orchestrator

	closers []func() error
}

// New 打开存储、注册四个代理、写入数据源种子并校验流水线图
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	backend, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	app := &App{
		Config:  cfg,
		Backend: backend,
		Graph:   pipeline.DefaultGraph(),
	}

	actions, err := app.buildActions(ctx, log)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Registry, err = NewRegistry(actions, backend.Store.Tasks, app.Graph, log)
	if err != nil {
		app.Close()
		return nil, err
	}

	if err := app.seed(ctx, log); err != nil {
		app.Close()
		return nil, err
	}
	if err := app.validate(ctx); err != nil {
		app.Close()
		return nil, err
	}

	app.Orchestrator = pipeline.NewOrchestrator(backend.Store.Sources, backend.Store.Tasks, cfg.Orchestrator.DefaultCooldown, log)

	ev := log.Info().
		Str("store", backend.Driver).
		Strs("agents", app.Registry.TaskTypes())
	if backend.Driver == config.StoreDriverPostgres {
		ev = ev.Str("dsn", postgres.RedactDSN(cfg.Postgres.DSN)).Strs("migrations", backend.Migrations)
	}
	ev.Msg("流水线组装完成")
	return app, nil
}

// NewRegistry 为每个动作创建代理并注册
func NewRegistry(actions []pipeline.Action, tasks repository.TaskRepository, graph *pipeline.Graph, log zerolog.Logger) (*workers.Registry, error) {
	reg := workers.NewRegistry()
	for _, a := range actions {
		if err := reg.Register(pipeline.NewAgent(a, tasks, graph, log)); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func (app *App) buildActions(ctx context.Context, log zerolog.Logger) ([]pipeline.Action, error) {
	cfg := app.Config
	store := app.Backend.Store

	var gen insights.Generator
	if cfg.Gemini.APIKey != "" {
		g, err := insights.NewGemini(ctx, insights.GeminiConfig{
			APIKey:    cfg.Gemini.APIKey,
			Model:     cfg.Gemini.Model,
			MaxTokens: cfg.Gemini.MaxTokens,
		})
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, g.Close)
		gen = g
	} else {
		log.Warn().Msg("GEMINI_API_KEY 未设置，GENERATE_INSIGHTS 代理不会认领任务")
	}

	return []pipeline.Action{
		trends.New(trends.Config{
			BearerToken: cfg.XAPI.BearerToken,
			WOEID:       cfg.XAPI.WOEID,
			BaseURL:     cfg.XAPI.BaseURL,
			Timeout:     cfg.XAPI.Timeout,
		}, store.Trends, &http.Client{Timeout: cfg.XAPI.Timeout}, log.With().Str("component", "trends").Logger()),
		feed.New(feed.Config{
			MaxHeadlines: cfg.Feed.MaxHeadlines,
			Timeout:      cfg.Feed.Timeout,
		}, &http.Client{Timeout: cfg.Feed.Timeout}, log.With().Str("component", "feed").Logger()),
		crawl.New(crawl.Config{
			ServerURL:    cfg.Crawl.ServerURL,
			APIKey:       cfg.Crawl.APIKey,
			ContentLimit: cfg.Crawl.ContentLimit,
			Timeout:      cfg.Crawl.Timeout,
		}, &http.Client{Timeout: cfg.Crawl.Timeout}, log.With().Str("component", "crawl").Logger()),
		insights.New(gen, store.Trends, store.Insights, log.With().Str("component", "insights").Logger()),
	}, nil
}

func (app *App) seed(ctx context.Context, log zerolog.Logger) error {
	specs, err := config.LoadSources(app.Config.Orchestrator.SourcesFile)
	if err != nil {
		return err
	}
	sources, err := SourcesFromSpecs(specs)
	if err != nil {
		return err
	}
	if err := app.Backend.SeedSources(ctx, sources); err != nil {
		return fmt.Errorf("seed sources: %w", err)
	}
	if len(sources) > 0 {
		log.Info().Int("count", len(sources)).Msg("已写入数据源种子")
	}
	return nil
}

// SourcesFromSpecs 把种子配置转为数据源，并按任务类型校验默认载荷
func SourcesFromSpecs(specs []config.SourceSpec) ([]repository.Source, error) {
	out := make([]repository.Source, 0, len(specs))
	for _, s := range specs {
		raw, err := payload.Encode(s.Payload)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", s.Name, err)
		}
		if s.Payload == nil {
			raw = nil
		}
		if err := payload.Validate(s.Name, raw); err != nil {
			return nil, fmt.Errorf("source %s: %w", s.Name, err)
		}
		out = append(out, repository.Source{
			Name:            s.Name,
			RefreshInterval: s.RefreshInterval,
			DefaultPayload:  raw,
		})
	}
	return out, nil
}

func (app *App) validate(ctx context.Context) error {
	sources, err := app.Backend.Store.Sources.ListSources(ctx)
	if err != nil {
		return fmt.Errorf("list sources: %w", err)
	}
	names := make([]string, 0, len(sources))
	for _, s := range sources {
		names = append(names, s.Name)
	}
	return app.Graph.Validate(app.Registry.TaskTypes(), names)
}

// Close 释放所有资源
func (app *App) Close() {
	for _, c := range app.closers {
		_ = c()
	}
	app.closers = nil
	if app.Backend != nil {
		app.Backend.Close()
	}
}
