package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaykayhq/insight-pipeline/internal/config"
	"github.com/jaykayhq/insight-pipeline/internal/model"
	"github.com/jaykayhq/insight-pipeline/internal/pipeline"
)

func memoryConfig(t *testing.T, sources string) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Store.Driver = config.StoreDriverMemory
	cfg.Orchestrator.DefaultCooldown = 15 * time.Minute
	if sources != "" {
		path := filepath.Join(t.TempDir(), "sources.yaml")
		require.NoError(t, os.WriteFile(path, []byte(sources), 0o600))
		cfg.Orchestrator.SourcesFile = path
	}
	return cfg
}

func TestNew_MemoryStore(t *testing.T) {
	ctx := context.Background()
	cfg := memoryConfig(t, `
sources:
  - name: FETCH_X_TRENDS
    refresh_interval: 15m
  - name: SCRAPE_RSS_FEED
    refresh_interval: 1h
    payload:
      url: https://punchng.com/feed
      source_name: punch
`)

	app, err := New(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	defer app.Close()

	assert.Equal(t, []string{
		model.TaskTypeCrawlWebPage,
		model.TaskTypeFetchXTrends,
		model.TaskTypeGenerateInsights,
		model.TaskTypeScrapeRSSFeed,
	}, app.Registry.TaskTypes())

	// 没有 GEMINI_API_KEY 时洞察代理不就绪
	agent, err := app.Registry.Get(model.TaskTypeGenerateInsights)
	require.NoError(t, err)
	assert.ErrorIs(t, agent.Ready(), pipeline.ErrConfigMissing)

	res, err := app.Orchestrator.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)

	tasks, err := app.Backend.Store.Tasks.CountPendingTasks(ctx, model.TaskTypeScrapeRSSFeed)
	require.NoError(t, err)
	assert.Equal(t, 1, tasks)
}

func TestNew_NoSourcesFile(t *testing.T) {
	app, err := New(context.Background(), memoryConfig(t, ""), zerolog.Nop())
	require.NoError(t, err)
	defer app.Close()

	res, err := app.Orchestrator.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Created)
}

func TestNew_RejectsUnregisteredSource(t *testing.T) {
	cfg := memoryConfig(t, `
sources:
  - name: FETCH_WEATHER
`)
	_, err := New(context.Background(), cfg, zerolog.Nop())
	assert.ErrorContains(t, err, "FETCH_WEATHER")
}

func TestNew_RejectsInvalidSourcePayload(t *testing.T) {
	cfg := memoryConfig(t, `
sources:
  - name: SCRAPE_RSS_FEED
    payload:
      source_name: punch
`)
	_, err := New(context.Background(), cfg, zerolog.Nop())
	assert.ErrorIs(t, err, pipeline.ErrMalformedPayload)
}

func TestSourcesFromSpecs(t *testing.T) {
	sources, err := SourcesFromSpecs([]config.SourceSpec{
		{Name: model.TaskTypeFetchXTrends, RefreshInterval: time.Minute},
		{Name: model.TaskTypeCrawlWebPage, Payload: map[string]any{"url": "https://x.com/a"}},
	})
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Nil(t, sources[0].DefaultPayload)
	assert.Equal(t, time.Minute, sources[0].RefreshInterval)
	assert.JSONEq(t, `{"url":"https://x.com/a"}`, string(sources[1].DefaultPayload))
}

func TestOpenStore_UnknownDriver(t *testing.T) {
	cfg := &config.Config{}
	cfg.Store.Driver = "sqlite"
	_, err := OpenStore(context.Background(), cfg)
	assert.ErrorContains(t, err, "unknown STORE_DRIVER")
}
