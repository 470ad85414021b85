// Package trends 拉取 X 热门话题并写入 x_trends。
package trends

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/jaykayhq/insight-pipeline/internal/model"
	"github.com/jaykayhq/insight-pipeline/internal/payload"
	"github.com/jaykayhq/insight-pipeline/internal/pipeline"
	"github.com/jaykayhq/insight-pipeline/internal/repository"
)

// Config X API 配置
type Config struct {
	BearerToken string
	WOEID       int64
	BaseURL     string
	Timeout     time.Duration
}

// Action FETCH_X_TRENDS
type Action struct {
	cfg    Config
	trends repository.TrendRepository
	client *http.Client
	log    zerolog.Logger
}

// New 创建动作；client 为 nil 时按配置超时新建
func New(cfg Config, trends repository.TrendRepository, client *http.Client, log zerolog.Logger) *Action {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Action{cfg: cfg, trends: trends, client: client, log: log}
}

type xTrend struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Query       string `json:"query"`
	TweetVolume *int64 `json:"tweet_volume"`
}

type xPlace struct {
	Trends []xTrend `json:"trends"`
}

func (a *Action) TaskType() string { return model.TaskTypeFetchXTrends }

func (a *Action) Ready() error {
	if a.cfg.BearerToken == "" {
		return pipeline.ConfigMissing("X_API_BEARER_TOKEN")
	}
	return nil
}

func (a *Action) Execute(ctx context.Context, task repository.Task) (pipeline.Outcome, error) {
	p, err := payload.Decode[payload.TrendFetch](task.Payload)
	if err != nil {
		return pipeline.Outcome{}, err
	}
	woeid := p.WOEID
	if woeid == 0 {
		woeid = a.cfg.WOEID
	}

	trends, err := a.fetch(ctx, woeid)
	if err != nil {
		return pipeline.Outcome{}, err
	}
	a.log.Info().Int("count", len(trends)).Int64("woeid", woeid).Msg("已获取热门话题")

	rows := make([]repository.Trend, 0, len(trends))
	topics := make([]string, 0, len(trends))
	for _, t := range trends {
		vol := t.TweetVolume
		if vol != nil && *vol == 0 {
			vol = nil
		}
		rows = append(rows, repository.Trend{Topic: t.Name, TweetVolume: vol, WOEID: woeid})
		topics = append(topics, t.Name)
	}

	ids, err := a.trends.InsertTrends(ctx, rows)
	if err != nil {
		return pipeline.Outcome{}, fmt.Errorf("store trends: %w", err)
	}

	return pipeline.Outcome{
		Result: payload.MessageResult{Message: fmt.Sprintf("Successfully inserted %d trends.", len(trends))},
		FollowUps: []pipeline.FollowUp{{
			TaskType: model.TaskTypeGenerateInsights,
			Payload: payload.GenerateInsights{
				TrendIDs: ids,
				Topics:   topics,
				Source:   "x_trends",
			},
		}},
	}, nil
}

func (a *Action) fetch(ctx context.Context, woeid int64) ([]xTrend, error) {
	endpoint := a.cfg.BaseURL + "/1.1/trends/place.json?id=" + strconv.FormatInt(woeid, 10)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+a.cfg.BearerToken)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: X API request: %v", pipeline.ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read X API response: %v", pipeline.ErrUpstream, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, pipeline.Upstream(resp.StatusCode, string(body), "X API request failed: %d", resp.StatusCode)
	}

	var places []xPlace
	if err := json.Unmarshal(body, &places); err != nil {
		return nil, fmt.Errorf("%w: decode X API response: %v", pipeline.ErrMalformedResult, err)
	}
	if len(places) == 0 || len(places[0].Trends) == 0 {
		return nil, pipeline.NoData("No trends found in X API response.")
	}
	return places[0].Trends, nil
}
