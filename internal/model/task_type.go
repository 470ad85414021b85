package model

// 任务类型。Source 的 name 同时也是它派生任务的 task_type。
const (
	TaskTypeFetchXTrends     = "FETCH_X_TRENDS"
	TaskTypeScrapeRSSFeed    = "SCRAPE_RSS_FEED"
	TaskTypeCrawlWebPage     = "CRAWL_WEB_PAGE"
	TaskTypeGenerateInsights = "GENERATE_INSIGHTS"
)

// TaskTypes 返回所有内置任务类型
func TaskTypes() []string {
	return []string{
		TaskTypeFetchXTrends,
		TaskTypeScrapeRSSFeed,
		TaskTypeCrawlWebPage,
		TaskTypeGenerateInsights,
	}
}

// Task origins，用于指标标签
const (
	OriginOrchestrator = "orchestrator"
	OriginFollowUp     = "follow_up"
	OriginOperator     = "operator"
)
