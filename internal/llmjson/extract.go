// Package llmjson extracts JSON objects from model completions that may be
// wrapped in prose or markdown fences. It is the single boundary where
// loosely structured provider output becomes typed data; callers must
// handle the malformed case explicitly.
package llmjson

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoObject signals that the completion contains no JSON object at all.
var ErrNoObject = errors.New("llmjson: no JSON object in completion")

// Extract returns the raw bytes spanning the first '{' to the last '}' of
// the input, tolerant of leading and trailing prose. The span must be valid
// JSON or an error is returned.
func Extract(raw string) ([]byte, error) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end < start {
		return nil, ErrNoObject
	}

	candidate := []byte(raw[start : end+1])
	if !json.Valid(candidate) {
		return nil, fmt.Errorf("llmjson: extracted span is not valid JSON")
	}
	return candidate, nil
}

// Unmarshal extracts the embedded object and decodes it into v.
func Unmarshal(raw string, v any) error {
	data, err := Extract(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("llmjson: decode object: %w", err)
	}
	return nil
}
