package thesis

import "strings"

var placeholderReasons = map[string]bool{
	"":        true,
	"unknown": true,
	"n/a":     true,
	"none":    true,
}

// FilterReasons drops empty and placeholder reasons ("unknown", "n/a", "none")
// regardless of case. Order of the survivors is kept.
func FilterReasons(reasons []string) []string {
	out := make([]string, 0, len(reasons))
	for _, r := range reasons {
		r = strings.TrimSpace(r)
		if placeholderReasons[strings.ToLower(r)] {
			continue
		}
		out = append(out, r)
	}
	return out
}
