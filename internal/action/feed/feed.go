// Package feed 抓取 RSS/Atom 标题并生成洞察任务。
package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"

	"github.com/jaykayhq/insight-pipeline/internal/model"
	"github.com/jaykayhq/insight-pipeline/internal/payload"
	"github.com/jaykayhq/insight-pipeline/internal/pipeline"
	"github.com/jaykayhq/insight-pipeline/internal/repository"
)

// Config RSS 抓取配置
type Config struct {
	MaxHeadlines int
	Timeout      time.Duration
}

// Action SCRAPE_RSS_FEED
type Action struct {
	cfg    Config
	client *http.Client
	parser *gofeed.Parser
	log    zerolog.Logger
}

// New 创建动作
func New(cfg Config, client *http.Client, log zerolog.Logger) *Action {
	if cfg.MaxHeadlines <= 0 {
		cfg.MaxHeadlines = 10
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Action{cfg: cfg, client: client, parser: gofeed.NewParser(), log: log}
}

func (a *Action) TaskType() string { return model.TaskTypeScrapeRSSFeed }

// Ready RSS 抓取不需要密钥
func (a *Action) Ready() error { return nil }

func (a *Action) Execute(ctx context.Context, task repository.Task) (pipeline.Outcome, error) {
	p, err := payload.Decode[payload.FeedScrape](task.Payload)
	if err != nil {
		return pipeline.Outcome{}, err
	}

	body, err := a.fetch(ctx, p.URL)
	if err != nil {
		return pipeline.Outcome{}, err
	}

	f, err := a.parser.ParseString(body)
	if err != nil {
		return pipeline.Outcome{}, fmt.Errorf("%w: parse feed: %v", pipeline.ErrMalformedResult, err)
	}

	headlines := make([]string, 0, a.cfg.MaxHeadlines)
	for _, item := range f.Items {
		if len(headlines) >= a.cfg.MaxHeadlines {
			break
		}
		if title := strings.TrimSpace(item.Title); title != "" {
			headlines = append(headlines, title)
		}
	}
	if len(headlines) == 0 {
		return pipeline.Outcome{}, pipeline.NoData("No headlines found in the RSS feed.")
	}
	a.log.Info().Str("url", p.URL).Int("count", len(headlines)).Msg("已解析 RSS 标题")

	source := p.SourceName
	if source == "" {
		source = f.Title
	}

	return pipeline.Outcome{
		Result: payload.MessageResult{Message: fmt.Sprintf("Successfully scraped %d headlines.", len(headlines))},
		FollowUps: []pipeline.FollowUp{{
			TaskType: model.TaskTypeGenerateInsights,
			Payload: payload.GenerateInsights{
				Prompt:      HeadlinesPrompt(headlines),
				Source:      source,
				OriginalURL: p.URL,
			},
		}},
	}, nil
}

// HeadlinesPrompt 由新闻标题构造洞察提示词
func HeadlinesPrompt(headlines []string) string {
	return fmt.Sprintf(`Based on these recent news headlines from Nigeria: "%s", generate three short, actionable marketing insights for small businesses. Each insight should be a single, complete sentence. Format the response as a simple JSON array of strings, like ["insight 1", "insight 2", "insight 3"].`,
		strings.Join(headlines, "; "))
}

func (a *Action) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", pipeline.ErrMalformedPayload, err)
	}
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: fetch RSS feed: %v", pipeline.ErrUpstream, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return "", fmt.Errorf("%w: read RSS feed: %v", pipeline.ErrUpstream, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", pipeline.Upstream(resp.StatusCode, string(b), "Failed to fetch RSS feed. Status: %d", resp.StatusCode)
	}
	return string(b), nil
}
