// Package device derives a short device summary from a User-Agent header for
// audit enrichment.
package device

import (
	"strings"

	"github.com/mssola/useragent"
)

// Describe returns a compact "browser/os/form" summary, e.g. "Chrome 120.0 / Windows 10 / desktop".
// An empty user agent yields "".
func Describe(userAgent string) string {
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		return ""
	}
	ua := useragent.New(userAgent)
	if ua.Bot() {
		name, _ := ua.Browser()
		if name == "" {
			return "bot"
		}
		return name + " / bot"
	}

	parts := make([]string, 0, 3)
	if name, version := ua.Browser(); name != "" {
		if version != "" {
			name += " " + version
		}
		parts = append(parts, name)
	}
	if os := ua.OS(); os != "" {
		parts = append(parts, os)
	}
	if ua.Mobile() {
		parts = append(parts, "mobile")
	} else {
		parts = append(parts, "desktop")
	}
	return strings.Join(parts, " / ")
}
