// Package payload 定义每种任务类型的载荷与结果结构。
//
// 存储层只保存 JSON；代理在执行前用 Decode 转为对应的具体类型，
// 运维入队时用 Validate 按任务类型校验。
package payload

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/jaykayhq/insight-pipeline/internal/model"
)

// ErrMalformed 载荷无法解析或缺少必需字段
var ErrMalformed = errors.New("malformed payload")

// TrendFetch FETCH_X_TRENDS 载荷
type TrendFetch struct {
	WOEID int64 `json:"woeid,omitempty"`
}

// FeedScrape SCRAPE_RSS_FEED 载荷
type FeedScrape struct {
	URL        string `json:"url"`
	SourceName string `json:"source_name,omitempty"`
}

func (p FeedScrape) validate() error {
	if p.URL == "" {
		return fmt.Errorf("%w: Task payload is missing 'url'.", ErrMalformed)
	}
	return checkURL(p.URL)
}

// PageCrawl CRAWL_WEB_PAGE 载荷
type PageCrawl struct {
	URL                string `json:"url"`
	CrawlType          string `json:"crawl_type,omitempty"`
	MaxPages           int    `json:"max_pages,omitempty"`
	IncludeMetadata    *bool  `json:"include_metadata,omitempty"`
	Platform           string `json:"platform,omitempty"`
	AntiDetection      *bool  `json:"anti_detection,omitempty"`
	RAGContext         *bool  `json:"rag_context,omitempty"`
	CreateInsightsTask *bool  `json:"create_insights_task,omitempty"`
}

// 爬取类型
const (
	CrawlSinglePage  = "single_page"
	CrawlSitemap     = "sitemap"
	CrawlRecursive   = "recursive"
	CrawlSocialMedia = "social_media"
)

func (p PageCrawl) validate() error {
	if p.URL == "" {
		return fmt.Errorf("%w: Task payload is missing 'url'.", ErrMalformed)
	}
	switch p.CrawlType {
	case "", CrawlSinglePage, CrawlSitemap, CrawlRecursive, CrawlSocialMedia:
	default:
		return fmt.Errorf("%w: unknown crawl_type %q", ErrMalformed, p.CrawlType)
	}
	if p.MaxPages < 0 {
		return fmt.Errorf("%w: max_pages must not be negative", ErrMalformed)
	}
	return checkURL(p.URL)
}

// WithDefaults 填充默认值
func (p PageCrawl) WithDefaults() PageCrawl {
	if p.CrawlType == "" {
		p.CrawlType = CrawlSinglePage
	}
	if p.MaxPages == 0 {
		p.MaxPages = 1
	}
	if p.Platform == "" {
		p.Platform = "auto"
	}
	p.IncludeMetadata = orTrue(p.IncludeMetadata)
	p.AntiDetection = orTrue(p.AntiDetection)
	p.RAGContext = orTrue(p.RAGContext)
	p.CreateInsightsTask = orTrue(p.CreateInsightsTask)
	return p
}

// GenerateInsights GENERATE_INSIGHTS 载荷。Prompt 与 TrendIDs 至少有一个。
type GenerateInsights struct {
	Prompt        string         `json:"prompt,omitempty"`
	TrendIDs      []int64        `json:"trend_ids,omitempty"`
	Topics        []string       `json:"topics,omitempty"`
	Source        string         `json:"source,omitempty"`
	OriginalURL   string         `json:"original_url,omitempty"`
	Platform      string         `json:"platform,omitempty"`
	MarketContext *MarketContext `json:"market_context,omitempty"`
}

func (p GenerateInsights) validate() error {
	if p.Prompt == "" && len(p.TrendIDs) == 0 {
		return fmt.Errorf("%w: Task payload is invalid. Must contain either 'prompt' or 'trend_ids'.", ErrMalformed)
	}
	return nil
}

// MarketContext 抓取内容的本地市场分析
type MarketContext struct {
	RelevanceScore  float64  `json:"relevance_score"`
	Keywords        []string `json:"keywords"`
	MarketInsights  []string `json:"market_insights"`
	CulturalContext []string `json:"cultural_context"`
}

// MessageResult 只有一条消息的结果
type MessageResult struct {
	Message string `json:"message"`
}

// CrawlResult CRAWL_WEB_PAGE 结果
type CrawlResult struct {
	Message       string         `json:"message"`
	ContentLength int            `json:"content_length"`
	Platform      string         `json:"platform"`
	Links         int            `json:"links"`
	MarketContext *MarketContext `json:"market_context,omitempty"`
}

// InsightsResult GENERATE_INSIGHTS 结果
type InsightsResult struct {
	Insights []string `json:"insights"`
}

type validator interface {
	validate() error
}

// Decode 严格解析载荷：未知字段和类型不符都视为格式错误。
func Decode[P any](raw json.RawMessage) (P, error) {
	var p P
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = json.RawMessage(`{}`)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return p, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if v, ok := any(p).(validator); ok {
		if err := v.validate(); err != nil {
			return p, err
		}
	}
	return p, nil
}

// Validate 按任务类型校验载荷；未知类型只要求是 JSON 对象。
func Validate(taskType string, raw json.RawMessage) error {
	var err error
	switch taskType {
	case model.TaskTypeFetchXTrends:
		_, err = Decode[TrendFetch](raw)
	case model.TaskTypeScrapeRSSFeed:
		_, err = Decode[FeedScrape](raw)
	case model.TaskTypeCrawlWebPage:
		_, err = Decode[PageCrawl](raw)
	case model.TaskTypeGenerateInsights:
		_, err = Decode[GenerateInsights](raw)
	default:
		var obj map[string]any
		if len(bytes.TrimSpace(raw)) > 0 {
			if jerr := json.Unmarshal(raw, &obj); jerr != nil {
				err = fmt.Errorf("%w: %v", ErrMalformed, jerr)
			}
		}
	}
	return err
}

// Encode 序列化载荷或结果
func Encode(v any) (json.RawMessage, error) {
	if v == nil {
		return json.RawMessage(`{}`), nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: invalid url %q", ErrMalformed, raw)
	}
	return nil
}

func orTrue(b *bool) *bool {
	if b != nil {
		return b
	}
	t := true
	return &t
}
