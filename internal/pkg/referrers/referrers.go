// Package referrers turns raw referrer and source strings reported by either
// analytics provider into a stable (source, medium) pair.
package referrers

import (
	"strings"
)

const (
	DirectSource   = "(direct)"
	MediumNone     = "none"
	MediumReferral = "referral"
	MediumSocial   = "social"
	MediumOrganic  = "organic"
	MediumEmail    = "email"
)

// Referrer is a canonical traffic source.
type Referrer struct {
	Source string `json:"source"`
	Medium string `json:"medium"`
}

// schemes stripped from raw referrers before host extraction.
var schemes = []string{"https://", "http://", "android-app://", "ios-app://"}

// directMarkers are raw values both providers use for "no referrer".
var directMarkers = map[string]bool{
	"(direct)": true,
	"direct":   true,
	"(none)":   true,
}

// hostAliases maps redirect, shortener and mobile-app hosts to the content host.
var hostAliases = map[string]string{
	// Shorteners and redirectors
	"t.co":               "twitter.com",
	"x.com":              "twitter.com",
	"mobile.twitter.com": "twitter.com",
	"lnkd.in":            "linkedin.com",
	"l.facebook.com":     "facebook.com",
	"lm.facebook.com":    "facebook.com",
	"m.facebook.com":     "facebook.com",
	"fb.me":              "facebook.com",
	"l.instagram.com":    "instagram.com",
	"youtu.be":           "youtube.com",
	"m.youtube.com":      "youtube.com",
	"old.reddit.com":     "reddit.com",
	"out.reddit.com":     "reddit.com",
	"mail.google.com":    "gmail.com",
	"l.messenger.com":    "messenger.com",
	"pin.it":             "pinterest.com",
	"away.vk.com":        "vk.com",

	// Android app referrers
	"com.facebook.katana":                     "facebook.com",
	"com.instagram.android":                   "instagram.com",
	"com.google.android.youtube":              "youtube.com",
	"com.linkedin.android":                    "linkedin.com",
	"com.reddit.frontpage":                    "reddit.com",
	"com.google.android.gm":                   "gmail.com",
	"com.google.android.googlequicksearchbox": "google.com",
}

// Keyword lists are checked in order: social, search, mail. A keyword with a
// dot must match the host or one of its parent domains; a bare keyword must
// equal one of the host's labels.
var (
	socialKeywords = []string{
		"facebook", "twitter", "instagram", "linkedin", "pinterest", "reddit",
		"tiktok", "youtube", "threads.net", "bsky.app", "mastodon.social",
		"snapchat", "messenger", "whatsapp", "vk", "tumblr", "quora",
	}
	searchKeywords = []string{
		"google", "bing", "yahoo", "duckduckgo", "baidu", "yandex", "ecosia",
		"kagi", "ask", "aol", "naver", "search.brave.com",
	}
	mailKeywords = []string{
		"gmail", "outlook", "mail", "protonmail", "proton.me", "mailchimp",
		"substack", "hotmail", "newsletter",
	}
)

// Canonicalize cleans a raw source with no accompanying medium.
func Canonicalize(raw string) Referrer {
	return CanonicalizeWithMedium(raw, "")
}

// CanonicalizeWithMedium cleans a raw source. An explicit medium is kept;
// an empty or "(not set)" medium is inferred from the host.
func CanonicalizeWithMedium(raw, medium string) Referrer {
	host := Hostname(raw)
	if host == "" {
		return Referrer{Source: DirectSource, Medium: MediumNone}
	}

	medium = strings.ToLower(strings.TrimSpace(medium))
	switch medium {
	case "", "(not set)":
		medium = InferMedium(host)
	case "(none)":
		medium = MediumNone
	}
	return Referrer{Source: host, Medium: medium}
}

// Hostname reduces a raw referrer to its aliased bare hostname.
// It returns "" for empty input and for direct-traffic markers.
func Hostname(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" || directMarkers[s] {
		return ""
	}

	for _, scheme := range schemes {
		if strings.HasPrefix(s, scheme) {
			s = s[len(scheme):]
			break
		}
	}
	s = strings.TrimPrefix(s, "www.")

	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.LastIndex(s, ":"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSuffix(s, ".")

	if alias, ok := hostAliases[s]; ok {
		s = alias
	}
	return s
}

// InferMedium classifies a bare hostname.
func InferMedium(host string) string {
	switch {
	case matchesAny(host, socialKeywords):
		return MediumSocial
	case matchesAny(host, searchKeywords):
		return MediumOrganic
	case matchesAny(host, mailKeywords):
		return MediumEmail
	default:
		return MediumReferral
	}
}

func matchesAny(host string, keywords []string) bool {
	for _, kw := range keywords {
		if matchesHost(host, kw) {
			return true
		}
	}
	return false
}

func matchesHost(host, keyword string) bool {
	if strings.Contains(keyword, ".") {
		return host == keyword || strings.HasSuffix(host, "."+keyword)
	}
	for _, label := range strings.Split(host, ".") {
		if label == keyword {
			return true
		}
	}
	return false
}
