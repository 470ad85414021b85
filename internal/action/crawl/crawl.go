// Package crawl 通过外部抓取服务获取网页内容，分析本地市场相关度并生成洞察任务。
package crawl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jaykayhq/insight-pipeline/internal/model"
	"github.com/jaykayhq/insight-pipeline/internal/payload"
	"github.com/jaykayhq/insight-pipeline/internal/pipeline"
	"github.com/jaykayhq/insight-pipeline/internal/repository"
)

// Config 抓取服务配置
type Config struct {
	ServerURL    string
	APIKey       string
	ContentLimit int
	Timeout      time.Duration
}

// Action CRAWL_WEB_PAGE
type Action struct {
	cfg    Config
	client *http.Client
	log    zerolog.Logger
}

// New 创建动作
func New(cfg Config, client *http.Client, log zerolog.Logger) *Action {
	cfg.ServerURL = strings.TrimRight(cfg.ServerURL, "/")
	if cfg.ContentLimit <= 0 {
		cfg.ContentLimit = 1000
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Action{cfg: cfg, client: client, log: log}
}

func (a *Action) TaskType() string { return model.TaskTypeCrawlWebPage }

func (a *Action) Ready() error {
	if a.cfg.ServerURL == "" {
		return pipeline.ConfigMissing("CRAWL_SERVER_URL")
	}
	if a.cfg.APIKey == "" {
		return pipeline.ConfigMissing("CRAWL_API_KEY")
	}
	return nil
}

type crawlOptions struct {
	WaitFor      int64             `json:"wait_for"`
	Screenshot   bool              `json:"screenshot"`
	PDF          bool              `json:"pdf"`
	IncludeLinks bool              `json:"include_links"`
	UserAgent    string            `json:"user_agent,omitempty"`
	Headers      map[string]string `json:"headers,omitempty"`
}

type crawlParams struct {
	URL             string       `json:"url"`
	CrawlType       string       `json:"crawl_type"`
	MaxPages        int          `json:"max_pages"`
	IncludeMetadata bool         `json:"include_metadata"`
	Platform        string       `json:"platform"`
	AntiDetection   bool         `json:"anti_detection"`
	RAGContext      bool         `json:"rag_context"`
	Options         crawlOptions `json:"options"`
}

type crawlRequest struct {
	Method string      `json:"method"`
	Params crawlParams `json:"params"`
}

type crawlResponse struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
	Links    []string       `json:"links"`
}

func (a *Action) Execute(ctx context.Context, task repository.Task) (pipeline.Outcome, error) {
	p, err := payload.Decode[payload.PageCrawl](task.Payload)
	if err != nil {
		return pipeline.Outcome{}, err
	}
	p = p.WithDefaults()

	platform := p.Platform
	if platform == "auto" {
		platform = DetectPlatform(p.URL)
	}

	req := crawlRequest{
		Method: "crawl",
		Params: crawlParams{
			URL:             p.URL,
			CrawlType:       p.CrawlType,
			MaxPages:        p.MaxPages,
			IncludeMetadata: *p.IncludeMetadata,
			Platform:        platform,
			AntiDetection:   *p.AntiDetection,
			RAGContext:      *p.RAGContext,
			Options:         crawlOptions{IncludeLinks: true},
		},
	}
	if *p.AntiDetection {
		req.Params.Options.WaitFor = randomDelay().Milliseconds()
		req.Params.Options.UserAgent = randomUserAgent()
		req.Params.Options.Headers = browserHeaders
	}

	resp, err := a.crawl(ctx, req)
	if err != nil {
		return pipeline.Outcome{}, err
	}
	if strings.TrimSpace(resp.Content) == "" {
		return pipeline.Outcome{}, pipeline.NoData("Crawl returned no content.")
	}
	a.log.Info().
		Str("url", p.URL).
		Str("platform", platform).
		Int("content_length", len(resp.Content)).
		Msg("网页抓取完成")

	var market *payload.MarketContext
	if *p.RAGContext {
		market = AnalyzeMarket(resp.Content)
	}

	out := pipeline.Outcome{
		Result: payload.CrawlResult{
			Message:       fmt.Sprintf("Successfully crawled %s.", p.URL),
			ContentLength: len(resp.Content),
			Platform:      platform,
			Links:         len(resp.Links),
			MarketContext: market,
		},
	}
	if *p.CreateInsightsTask {
		out.FollowUps = []pipeline.FollowUp{{
			TaskType: model.TaskTypeGenerateInsights,
			Payload: payload.GenerateInsights{
				Prompt:        a.prompt(platform, p.URL, resp.Content, market),
				Source:        "web_crawl",
				OriginalURL:   p.URL,
				Platform:      platform,
				MarketContext: market,
			},
		}}
	}
	return out, nil
}

func (a *Action) prompt(platform, pageURL, content string, market *payload.MarketContext) string {
	excerpt := content
	if r := []rune(content); len(r) > a.cfg.ContentLimit {
		excerpt = string(r[:a.cfg.ContentLimit])
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Based on the following web content from %s (%s): \"%s...\"\n\n", platform, pageURL, excerpt)
	if s := Summary(market); s != "" {
		b.WriteString(s)
		b.WriteString("\n\n")
	}
	b.WriteString("Generate three actionable marketing insights specifically for Nigerian small businesses. " +
		"Each insight should be culturally relevant, practical, and consider the Nigerian market context. " +
		"Format the response as a simple JSON array of strings.")
	return b.String()
}

func (a *Action) crawl(ctx context.Context, body crawlRequest) (*crawlResponse, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.ServerURL+"/crawl", bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: crawl server: %v", pipeline.ErrUpstream, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read crawl response: %v", pipeline.ErrUpstream, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, pipeline.Upstream(resp.StatusCode, string(b), "Crawl server error: %d - %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var out crawlResponse
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("%w: decode crawl response: %v", pipeline.ErrMalformedResult, err)
	}
	return &out, nil
}
