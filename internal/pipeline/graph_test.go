package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jaykayhq/insight-pipeline/internal/model"
)

func TestDefaultGraph(t *testing.T) {
	g := DefaultGraph()

	assert.True(t, g.Allows(model.TaskTypeFetchXTrends, model.TaskTypeGenerateInsights))
	assert.True(t, g.Allows(model.TaskTypeScrapeRSSFeed, model.TaskTypeGenerateInsights))
	assert.True(t, g.Allows(model.TaskTypeCrawlWebPage, model.TaskTypeGenerateInsights))
	assert.False(t, g.Allows(model.TaskTypeGenerateInsights, model.TaskTypeFetchXTrends))
	assert.False(t, g.Allows("UNKNOWN", model.TaskTypeGenerateInsights))

	assert.Equal(t, []Edge{
		{From: model.TaskTypeCrawlWebPage, To: model.TaskTypeGenerateInsights},
		{From: model.TaskTypeFetchXTrends, To: model.TaskTypeGenerateInsights},
		{From: model.TaskTypeScrapeRSSFeed, To: model.TaskTypeGenerateInsights},
	}, g.Edges())
}

func TestGraph_Validate(t *testing.T) {
	g := DefaultGraph()

	tests := []struct {
		name       string
		registered []string
		sources    []string
		wantErr    string
	}{
		{
			name:       "all registered",
			registered: model.TaskTypes(),
			sources:    []string{model.TaskTypeFetchXTrends},
		},
		{
			name:       "missing edge target",
			registered: []string{model.TaskTypeFetchXTrends, model.TaskTypeScrapeRSSFeed, model.TaskTypeCrawlWebPage},
			wantErr:    "no agent registered for GENERATE_INSIGHTS",
		},
		{
			name:       "source without agent",
			registered: model.TaskTypes(),
			sources:    []string{"SCRAPE_TIKTOK"},
			wantErr:    "source SCRAPE_TIKTOK",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := g.Validate(tt.registered, tt.sources)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestNewGraph_CopiesEdges(t *testing.T) {
	edges := map[string][]string{"A": {"B"}}
	g := NewGraph(edges)
	edges["A"][0] = "C"

	assert.True(t, g.Allows("A", "B"))
	assert.False(t, g.Allows("A", "C"))
}
