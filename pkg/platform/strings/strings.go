// Package strings holds small list helpers shared by config parsing and the
// matching engine.
package strings

import "strings"

// Unique drops empty and repeated values after trimming, keeping first-seen order.
//
//	Unique([]string{" SPAMCO", "acme", "SPAMCO ", ""}) // []string{"SPAMCO", "acme"}
func Unique(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// SplitList flattens comma-separated items so YAML lists and env values like
// "a,b" parse the same way, then applies Unique.
func SplitList(values []string) []string {
	var parts []string
	for _, v := range values {
		parts = append(parts, strings.Split(v, ",")...)
	}
	return Unique(parts)
}
