// Package urlpolicy decides whether a user-supplied URL may be passed to
// the extractor. It is pattern-only: no DNS resolution, no network I/O.
// The extractor is the only component in this system that actually dials
// out, so a pattern blocklist is judged sufficient defense-in-depth here
// against SSRF-prone hosts.
package urlpolicy

import (
	"net/url"
	"regexp"
	"strings"
)

const maxURLLength = 2048

var blockedHostPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^localhost$`),
	regexp.MustCompile(`^127\.`),
	regexp.MustCompile(`^192\.168\.`),
	regexp.MustCompile(`^10\.`),
	regexp.MustCompile(`^172\.(1[6-9]|2\d|3[01])\.`),
	regexp.MustCompile(`^0\.0\.0\.0$`),
	regexp.MustCompile(`^::1$`),
}

// Allowed reports whether raw may be handed to the extractor. Callers must
// not surface the reason a URL failed — only a generic InvalidURL — to
// avoid leaking blocklist details to callers.
func Allowed(raw string) bool {
	if len(raw) == 0 || len(raw) > maxURLLength {
		return false
	}

	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() {
		return false
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}

	host := u.Hostname()
	if host == "" {
		return false
	}

	host = strings.ToLower(host)
	for _, pattern := range blockedHostPatterns {
		if pattern.MatchString(host) {
			return false
		}
	}

	return true
}
