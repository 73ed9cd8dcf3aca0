package portal

import (
	"bytes"
	"encoding/json"
	"strings"
)

// rawPayload carries tool output that could not be parsed as JSON.
type rawPayload struct {
	Raw string `json:"raw"`
}

// statusPayload turns the status subcommand's stdout into the response
// payload. Any well-formed JSON value passes through untouched; empty
// output becomes an empty object; anything else degrades to raw text.
func statusPayload(stdout, stderr string) any {
	trimmed := strings.TrimSpace(stdout)
	if trimmed == "" {
		return json.RawMessage(`{}`)
	}
	var data json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &data); err != nil {
		return rawPayload{Raw: firstNonEmpty(stdout, stderr)}
	}
	return data
}

// decodeRecords extracts a list payload from the tool's stdout. The tool
// emits either a bare JSON array or an object keyed by name, e.g.
// {"jobs": [...]}. Empty output and an object missing the key both mean
// an empty list. The second return value reports whether stdout was
// usable at all.
func decodeRecords(stdout, key string) ([]json.RawMessage, bool) {
	trimmed := strings.TrimSpace(stdout)
	if trimmed == "" {
		return []json.RawMessage{}, true
	}
	if list, ok := decodeList([]byte(trimmed)); ok {
		return list, true
	}
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &wrapper); err != nil || wrapper == nil {
		return nil, false
	}
	inner, ok := wrapper[key]
	if !ok {
		return []json.RawMessage{}, true
	}
	return decodeList(inner)
}

// decodeList rejects a literal null, which json.Unmarshal would silently
// map onto a nil slice.
func decodeList(data []byte) ([]json.RawMessage, bool) {
	if string(bytes.TrimSpace(data)) == "null" {
		return nil, false
	}
	var list []json.RawMessage
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, false
	}
	return list, true
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
