package llm

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoJSON is returned when a model response contains no parseable JSON
// block. Callers treat this as a parse failure and fall back to their
// heuristic parser.
var ErrNoJSON = errors.New("no JSON block in response")

// stripFences removes Markdown code fences around a model response. Models
// frequently wrap JSON in ```json ... ``` despite instructions not to.
func stripFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}

// ExtractJSONObject locates the first brace-delimited JSON object in a model
// response, tolerating code fences and surrounding prose.
func ExtractJSONObject(text string) (string, bool) {
	cleaned := stripFences(text)
	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end <= start {
		return "", false
	}
	candidate := cleaned[start : end+1]
	if !json.Valid([]byte(candidate)) {
		return "", false
	}
	return candidate, true
}

// ExtractJSONArray is ExtractJSONObject for bracket-delimited arrays.
func ExtractJSONArray(text string) (string, bool) {
	cleaned := stripFences(text)
	start := strings.Index(cleaned, "[")
	end := strings.LastIndex(cleaned, "]")
	if start < 0 || end <= start {
		return "", false
	}
	candidate := cleaned[start : end+1]
	if !json.Valid([]byte(candidate)) {
		return "", false
	}
	return candidate, true
}

// DecodeObject extracts and unmarshals the first JSON object in a model
// response into v. Returns ErrNoJSON when no valid object is present.
func DecodeObject(text string, v any) error {
	block, ok := ExtractJSONObject(text)
	if !ok {
		return ErrNoJSON
	}
	return json.Unmarshal([]byte(block), v)
}
