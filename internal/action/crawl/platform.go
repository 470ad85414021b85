package crawl

import (
	"math/rand/v2"
	"net/url"
	"strings"
	"time"
)

// PlatformUnknown 无法识别的平台
const PlatformUnknown = "unknown"

var platformDomains = []struct {
	name    string
	domains []string
}{
	{"twitter", []string{"twitter.com", "x.com", "t.co"}},
	{"instagram", []string{"instagram.com"}},
	{"facebook", []string{"facebook.com", "fb.com"}},
	{"linkedin", []string{"linkedin.com"}},
	{"tiktok", []string{"tiktok.com"}},
	{"youtube", []string{"youtube.com", "youtu.be"}},
}

// Platforms 支持识别的平台
func Platforms() []string {
	out := make([]string, 0, len(platformDomains))
	for _, p := range platformDomains {
		out = append(out, p.name)
	}
	return out
}

// DetectPlatform 按主机名识别社交平台。只匹配域名本身或其子域名。
func DetectPlatform(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return PlatformUnknown
	}
	host := strings.ToLower(u.Hostname())
	for _, p := range platformDomains {
		for _, d := range p.domains {
			if host == d || strings.HasSuffix(host, "."+d) {
				return p.name
			}
		}
	}
	return PlatformUnknown
}

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_1_2 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1.2 Mobile/15E148 Safari/604.1",
}

var browserHeaders = map[string]string{
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
	"Accept-Language":           "en-US,en;q=0.5",
	"Accept-Encoding":           "gzip, deflate, br",
	"DNT":                       "1",
	"Connection":                "keep-alive",
	"Upgrade-Insecure-Requests": "1",
	"Sec-Fetch-Dest":            "document",
	"Sec-Fetch-Mode":            "navigate",
	"Sec-Fetch-Site":            "none",
	"Cache-Control":             "max-age=0",
}

const (
	minDelay = 2 * time.Second
	maxDelay = 5 * time.Second
)

func randomUserAgent() string {
	return userAgents[rand.IntN(len(userAgents))]
}

// randomDelay 抓取服务在页面加载后等待的时间
func randomDelay() time.Duration {
	return minDelay + rand.N(maxDelay-minDelay)
}
