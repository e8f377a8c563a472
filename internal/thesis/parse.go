package thesis

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"crowdalpha/internal/types"
)

var (
	ErrNoJSONObject  = errors.New("no balanced JSON object in model output")
	ErrMalformedJSON = errors.New("malformed JSON object in model output")
)

// ParseErrorReason is the only reason on a result whose model output could not be parsed.
const ParseErrorReason = "parse error"

// ParseFailureResult is substituted whenever ParseResponse fails.
func ParseFailureResult() types.ThesisResult {
	return types.ThesisResult{
		Tickers:   []string{},
		Sentiment: types.Neutral,
		Reasons:   []string{ParseErrorReason},
	}
}

// ParseResponse locates the first balanced {...} in text (models like to wrap JSON
// in prose or code fences) and decodes it field by field. Field types are coerced
// rather than trusted; reasons come back unfiltered.
func ParseResponse(text string) (types.ThesisResult, error) {
	obj, ok := firstBalancedObject(text)
	if !ok {
		return types.ThesisResult{}, ErrNoJSONObject
	}
	return DecodeResult([]byte(obj))
}

// DecodeResult coerces one JSON object into a ThesisResult. It is shared by the
// response parser and the cache loader so both enforce the same invariants.
func DecodeResult(data []byte) (types.ThesisResult, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return types.ThesisResult{}, fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}
	if fields == nil {
		return types.ThesisResult{}, fmt.Errorf("%w: not an object", ErrMalformedJSON)
	}

	result := types.ThesisResult{
		Tickers:   NormalizeTickers(stringList(pick(fields, "ticker", "tickers"), true)),
		Sentiment: types.Neutral,
		Reasons:   trimAll(stringList(pick(fields, "reason", "reasons"), false)),
	}

	var s string
	if raw, ok := fields["sentiment"]; ok && json.Unmarshal(raw, &s) == nil {
		result.Sentiment = types.ParseSentiment(s)
	}

	return result, nil
}

func pick(fields map[string]json.RawMessage, keys ...string) json.RawMessage {
	for _, k := range keys {
		if raw, ok := fields[k]; ok {
			return raw
		}
	}
	return nil
}

// stringList accepts an array (non-string elements are dropped) or a single string.
// With split set, a single string is treated as a comma/space separated list.
func stringList(raw json.RawMessage, split bool) []string {
	if len(raw) == 0 {
		return nil
	}

	var items []any
	if err := json.Unmarshal(raw, &items); err == nil {
		out := make([]string, 0, len(items))
		for _, it := range items {
			if s, ok := it.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if !split {
			return []string{s}
		}
		return strings.FieldsFunc(s, func(r rune) bool {
			return r == ',' || r == ' ' || r == ';' || r == '\t' || r == '\n'
		})
	}

	return nil
}

func trimAll(items []string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, strings.TrimSpace(it))
	}
	return out
}

// firstBalancedObject returns the first {...} substring whose braces balance,
// ignoring braces that appear inside JSON string literals.
func firstBalancedObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
