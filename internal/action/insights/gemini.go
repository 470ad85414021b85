package insights

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/jaykayhq/insight-pipeline/internal/pipeline"
)

// Generator 文本生成接口
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeminiConfig Gemini 客户端配置
type GeminiConfig struct {
	APIKey    string
	Model     string
	MaxTokens int32
}

// GeminiGenerator 基于官方 SDK 的 Generator
type GeminiGenerator struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGemini 创建 Gemini 客户端
func NewGemini(ctx context.Context, cfg GeminiConfig) (*GeminiGenerator, error) {
	if cfg.APIKey == "" {
		return nil, pipeline.ConfigMissing("GEMINI_API_KEY")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	model := client.GenerativeModel(cfg.Model)
	if cfg.MaxTokens > 0 {
		maxTokens := cfg.MaxTokens
		model.MaxOutputTokens = &maxTokens
	}
	return &GeminiGenerator{client: client, model: model}, nil
}

// Close 关闭底层连接
func (g *GeminiGenerator) Close() error {
	return g.client.Close()
}

func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		status := 0
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) {
			status = apiErr.Code
		}
		return "", pipeline.Upstream(status, err.Error(), "Gemini API Error: %v", err)
	}

	var b strings.Builder
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("%w: Gemini returned no text", pipeline.ErrMalformedResult)
	}
	return b.String(), nil
}
