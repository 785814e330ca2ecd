package jsonutil

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Pretty reindents raw JSON for log output. Invalid input comes back
// unchanged so callers can dump whatever a model produced.
func Pretty(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return trimmed
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(trimmed), "", "  "); err != nil {
		return trimmed
	}
	return buf.String()
}
