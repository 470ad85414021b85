package crawl

import (
	"fmt"
	"math"
	"strings"

	"github.com/jaykayhq/insight-pipeline/internal/payload"
)

var localKeywords = []string{
	"Nigeria", "Nigerian", "Lagos", "Abuja", "Port Harcourt", "Kano", "Ibadan",
	"Naira", "NGN", "Nigerian market", "West Africa", "African business",
	"SME", "small business", "entrepreneur", "startup", "tech hub",
	"Yoruba", "Igbo", "Hausa", "Pidgin", "Naija", "Jollof", "Suya",
	"Nollywood", "Afrobeats", "Nigerian music", "Nigerian food",
	"MTN", "Airtel", "Glo", "9mobile", "Dangote", "BUA", "Flutterwave",
	"Paystack", "Interswitch", "Nigerian banks", "CBN", "NSE",
}

var marketInsights = []string{
	"Nigerian SMEs contribute 48% of GDP",
	"Mobile money adoption is growing rapidly",
	"E-commerce is expanding with Jumia and Konga",
	"Fintech sector is booming with Flutterwave and Paystack",
	"Agriculture remains a key economic driver",
	"Oil and gas sector is significant but diversifying",
	"Youth population is driving digital transformation",
	"Nigerian diaspora remittances exceed $20 billion annually",
}

var culturalNotes = []string{
	"Family-oriented business culture",
	"Strong community networks and trust",
	"Entrepreneurial spirit and hustle culture",
	"Respect for elders and authority",
	"Celebration of success and wealth",
	"Importance of personal relationships in business",
	"Adaptability and resilience in challenging environments",
	"Strong religious and traditional values",
}

const (
	maxKeywords       = 5
	maxMarketInsights = 3
	maxCulturalNotes  = 2
)

// AnalyzeMarket 统计内容中的本地关键词，并按前几个词匹配市场洞察与文化背景
func AnalyzeMarket(content string) *payload.MarketContext {
	lower := strings.ToLower(content)

	var matched []string
	for _, k := range localKeywords {
		if strings.Contains(lower, strings.ToLower(k)) {
			matched = append(matched, k)
		}
	}

	mc := &payload.MarketContext{
		RelevanceScore:  math.Min(float64(len(matched))/10, 1),
		Keywords:        firstN(matched, maxKeywords),
		MarketInsights:  firstN(matchLeading(lower, marketInsights, 3), maxMarketInsights),
		CulturalContext: firstN(matchLeading(lower, culturalNotes, 2), maxCulturalNotes),
	}
	return mc
}

// matchLeading 取每条候选的前 n 个词，出现在内容中即命中
func matchLeading(lower string, candidates []string, n int) []string {
	out := make([]string, 0)
	for _, c := range candidates {
		words := strings.Fields(c)
		if len(words) > n {
			words = words[:n]
		}
		if strings.Contains(lower, strings.ToLower(strings.Join(words, " "))) {
			out = append(out, c)
		}
	}
	return out
}

func firstN(s []string, n int) []string {
	if s == nil {
		return []string{}
	}
	if len(s) > n {
		return s[:n]
	}
	return s
}

// Summary 供提示词使用的上下文摘要
func Summary(mc *payload.MarketContext) string {
	if mc == nil {
		return ""
	}
	return fmt.Sprintf("Nigerian Market Relevance: %.0f%%. Local Keywords: %s. Market Insights: %s.",
		mc.RelevanceScore*100,
		strings.Join(mc.Keywords, ", "),
		strings.Join(mc.MarketInsights, "; "))
}
