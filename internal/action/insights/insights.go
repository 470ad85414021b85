// Package insights 调用 Gemini 把热门话题或抓取内容转为营销洞察。
package insights

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jaykayhq/insight-pipeline/internal/model"
	"github.com/jaykayhq/insight-pipeline/internal/payload"
	"github.com/jaykayhq/insight-pipeline/internal/pipeline"
	"github.com/jaykayhq/insight-pipeline/internal/repository"
)

// Action GENERATE_INSIGHTS
type Action struct {
	gen      Generator
	trends   repository.TrendRepository
	insights repository.InsightRepository
	log      zerolog.Logger
}

// New 创建动作。gen 为 nil 表示未配置 GEMINI_API_KEY。
func New(gen Generator, trends repository.TrendRepository, insights repository.InsightRepository, log zerolog.Logger) *Action {
	return &Action{gen: gen, trends: trends, insights: insights, log: log}
}

func (a *Action) TaskType() string { return model.TaskTypeGenerateInsights }

func (a *Action) Ready() error {
	if a.gen == nil {
		return pipeline.ConfigMissing("GEMINI_API_KEY")
	}
	return nil
}

func (a *Action) Execute(ctx context.Context, task repository.Task) (pipeline.Outcome, error) {
	p, err := payload.Decode[payload.GenerateInsights](task.Payload)
	if err != nil {
		return pipeline.Outcome{}, err
	}

	prompt := p.Prompt
	if prompt == "" {
		topics, err := a.trends.TopicsByIDs(ctx, p.TrendIDs)
		if err != nil {
			return pipeline.Outcome{}, fmt.Errorf("fetch trends: %w", err)
		}
		if len(topics) == 0 {
			return pipeline.Outcome{}, pipeline.NoData("No matching trends found.")
		}
		prompt = TrendPrompt(topics)
	}

	text, err := a.gen.Generate(ctx, prompt)
	if err != nil {
		return pipeline.Outcome{}, err
	}
	list, err := ParseInsights(text)
	if err != nil {
		return pipeline.Outcome{}, err
	}
	a.log.Info().Int("count", len(list)).Str("source", p.Source).Msg("收到 Gemini 洞察")

	if err := a.insights.InsertInsights(ctx, task.ID, list); err != nil {
		return pipeline.Outcome{}, fmt.Errorf("insert insights: %w", err)
	}
	return pipeline.Outcome{Result: payload.InsightsResult{Insights: list}}, nil
}

// TrendPrompt 由热门话题生成提示词
func TrendPrompt(topics []string) string {
	return fmt.Sprintf("Based on these trending topics on social media in Nigeria: \"%s\", "+
		"generate three short, actionable marketing insights for small businesses. "+
		"Each insight should be a single, complete sentence. "+
		"Format the response as a simple JSON array of strings, like [\"insight 1\", \"insight 2\", \"insight 3\"].",
		strings.Join(topics, ", "))
}

var fenceReplacer = strings.NewReplacer("```json", "", "```", "")

// ParseInsights 去掉 markdown 代码块标记后解析字符串数组
func ParseInsights(text string) ([]string, error) {
	cleaned := strings.TrimSpace(fenceReplacer.Replace(strings.TrimSpace(text)))

	var list []string
	if err := json.Unmarshal([]byte(cleaned), &list); err != nil {
		return nil, fmt.Errorf("%w: %v", pipeline.ErrMalformedResult, err)
	}
	if list == nil {
		list = []string{}
	}
	return list, nil
}
