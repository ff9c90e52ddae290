package narrative

import (
	"regexp"
	"strings"
)

var (
	// fabricatedDetailLink matches "자세히 보기" links the model invents
	// despite being told not to; the real post link replaces them.
	fabricatedDetailLink = regexp.MustCompile(`(?:👉\s*)?\[자세히 보기\]\([^\)]*\)`)

	markdownLink     = regexp.MustCompile(`\[([^\]]*)\]\((https?://[^\)]+)\)`)
	labeledBareURL   = regexp.MustCompile(`\((?:링크|Link|URL):\s*(https?://[^\)]+)\)`)
	standaloneURL    = regexp.MustCompile(`(?m)^(https?://\S+)\s*$`)
	excessBlankLines = regexp.MustCompile(`\n{4,}`)
)

// SanitizeExternalLinks strips every URL that does not point at the canonical
// site. Markdown links keep their text, labeled and standalone URLs vanish.
// Runs after the review pass; generated text routinely smuggles in invented
// kakao/naver/shortener URLs and none of them may reach subscribers.
func SanitizeExternalLinks(digest, siteURL string) string {
	domain := canonicalDomain(siteURL)

	out := markdownLink.ReplaceAllStringFunc(digest, func(m string) string {
		sub := markdownLink.FindStringSubmatch(m)
		if sameDomain(sub[2], domain) {
			return m
		}
		return sub[1]
	})

	out = labeledBareURL.ReplaceAllStringFunc(out, func(m string) string {
		sub := labeledBareURL.FindStringSubmatch(m)
		if sameDomain(sub[1], domain) {
			return m
		}
		return ""
	})

	out = standaloneURL.ReplaceAllStringFunc(out, func(m string) string {
		if sameDomain(strings.TrimSpace(m), domain) {
			return m
		}
		return ""
	})

	out = excessBlankLines.ReplaceAllString(out, "\n\n\n")
	return strings.TrimSpace(out)
}

// canonicalDomain reduces a site URL to its bare host, "botmadang.org" for
// the production site.
func canonicalDomain(siteURL string) string {
	host := siteURL
	host = strings.TrimPrefix(host, "https://")
	host = strings.TrimPrefix(host, "http://")
	host = strings.TrimPrefix(host, "www.")
	if i := strings.IndexAny(host, "/?#"); i >= 0 {
		host = host[:i]
	}
	return host
}

// sameDomain reports whether url points at domain or one of its subdomains.
func sameDomain(url, domain string) bool {
	host := canonicalDomain(url)
	return host == domain || strings.HasSuffix(host, "."+domain)
}
