package thesis

import (
	"regexp"
	"strings"
)

// tickerPattern matches bare 2-5 letter all-caps words and $-prefixed 1-5 letter cashtags.
var tickerPattern = regexp.MustCompile(`\b[A-Z]{2,5}\b|\$[A-Z]{1,5}\b`)

const maxTickerLen = 5

// ExtractTickers recovers plausible symbols from free text. It is a low-precision
// fallback: ordinary all-caps acronyms come back too.
func ExtractTickers(text string) []string {
	matches := tickerPattern.FindAllString(text, -1)
	seen := make(map[string]bool, len(matches))
	tickers := make([]string, 0, len(matches))
	for _, m := range matches {
		t := strings.TrimPrefix(m, "$")
		if t == "" || len(t) > maxTickerLen || seen[t] {
			continue
		}
		seen[t] = true
		tickers = append(tickers, t)
	}
	return tickers
}

// NormalizeTickers upper-cases candidates from model output, strips a leading $,
// drops anything that is not 1-5 ASCII letters and removes duplicates.
func NormalizeTickers(candidates []string) []string {
	seen := make(map[string]bool, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		t := strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(c), "$"))
		if !validTicker(t) || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func validTicker(t string) bool {
	if len(t) == 0 || len(t) > maxTickerLen {
		return false
	}
	for i := 0; i < len(t); i++ {
		if t[i] < 'A' || t[i] > 'Z' {
			return false
		}
	}
	return true
}
