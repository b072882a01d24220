package referrers

import "strings"

// Canonical hostnames mapped to friendly display names
var knownReferrers = map[string]string{
	// Search engines
	"google.com":     "Google",
	"bing.com":       "Bing",
	"duckduckgo.com": "DuckDuckGo",
	"yahoo.com":      "Yahoo",
	"baidu.com":      "Baidu",
	"yandex.ru":      "Yandex",
	"ecosia.org":     "Ecosia",
	"kagi.com":       "Kagi",

	// Social media
	"twitter.com":     "X/Twitter",
	"facebook.com":    "Facebook",
	"instagram.com":   "Instagram",
	"linkedin.com":    "LinkedIn",
	"tiktok.com":      "TikTok",
	"pinterest.com":   "Pinterest",
	"reddit.com":      "Reddit",
	"threads.net":     "Threads",
	"bsky.app":        "Bluesky",
	"mastodon.social": "Mastodon",
	"youtube.com":     "YouTube",
	"messenger.com":   "Messenger",

	// Tech communities
	"news.ycombinator.com": "Hacker News",
	"producthunt.com":      "Product Hunt",
	"github.com":           "GitHub",
	"medium.com":           "Medium",
	"substack.com":         "Substack",

	// Email
	"gmail.com":          "Gmail",
	"outlook.live.com":   "Outlook",
	"outlook.office.com": "Outlook",
	"mail.yahoo.com":     "Yahoo Mail",
}

// DisplayName returns a human-friendly name for a canonical source.
// Unknown hosts are returned with their first letter capitalized.
func DisplayName(source string) string {
	if source == DirectSource {
		return "Direct / Unknown"
	}
	host := strings.ToLower(source)
	if name, ok := knownReferrers[host]; ok {
		return name
	}
	for domain, name := range knownReferrers {
		if strings.HasSuffix(host, "."+domain) {
			return name
		}
	}
	return capitalizeFirst(host)
}

// capitalizeFirst capitalizes the first letter of a string
func capitalizeFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
