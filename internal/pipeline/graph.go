package pipeline

import (
	"fmt"
	"sort"

	"github.com/jaykayhq/insight-pipeline/internal/model"
)

// Graph 声明每种任务类型允许产生的后续任务类型
type Graph struct {
	edges map[string][]string
}

// NewGraph 创建流水线图
func NewGraph(edges map[string][]string) *Graph {
	g := &Graph{edges: make(map[string][]string, len(edges))}
	for from, tos := range edges {
		g.edges[from] = append([]string(nil), tos...)
	}
	return g
}

// DefaultGraph 三个采集类型都流向洞察生成
func DefaultGraph() *Graph {
	return NewGraph(map[string][]string{
		model.TaskTypeFetchXTrends:  {model.TaskTypeGenerateInsights},
		model.TaskTypeScrapeRSSFeed: {model.TaskTypeGenerateInsights},
		model.TaskTypeCrawlWebPage:  {model.TaskTypeGenerateInsights},
	})
}

// Allows 判断 from 是否可以产生 to
func (g *Graph) Allows(from, to string) bool {
	for _, t := range g.edges[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Edge 一条边
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Edges 返回排序后的全部边
func (g *Graph) Edges() []Edge {
	out := make([]Edge, 0)
	for from, tos := range g.edges {
		for _, to := range tos {
			out = append(out, Edge{From: from, To: to})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	return out
}

// Validate 启动时校验：边的两端和每个数据源都必须有已注册的代理
func (g *Graph) Validate(registered []string, sources []string) error {
	known := make(map[string]struct{}, len(registered))
	for _, t := range registered {
		known[t] = struct{}{}
	}

	for _, e := range g.Edges() {
		if _, ok := known[e.From]; !ok {
			return fmt.Errorf("pipeline graph: %s -> %s: no agent registered for %s", e.From, e.To, e.From)
		}
		if _, ok := known[e.To]; !ok {
			return fmt.Errorf("pipeline graph: %s -> %s: no agent registered for %s", e.From, e.To, e.To)
		}
	}
	for _, s := range sources {
		if _, ok := known[s]; !ok {
			return fmt.Errorf("source %s: no agent registered for task type %s", s, s)
		}
	}
	return nil
}
