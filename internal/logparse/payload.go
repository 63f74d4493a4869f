package logparse

import (
	"encoding/json"
	"strings"
)

// splitPayload detaches a trailing JSON value from message. A trailing quoted
// string counts only when its content is itself JSON.
func splitPayload(message string) (string, json.RawMessage) {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return trimmed, nil
	}
	var opener byte
	switch trimmed[len(trimmed)-1] {
	case '}':
		opener = '{'
	case ']':
		opener = '['
	case '"':
		opener = '"'
	default:
		return trimmed, nil
	}

	for i := 0; i < len(trimmed); i++ {
		if trimmed[i] != opener {
			continue
		}
		candidate := trimmed[i:]
		if !json.Valid([]byte(candidate)) {
			continue
		}
		if opener == '"' {
			var inner string
			if err := json.Unmarshal([]byte(candidate), &inner); err != nil || !json.Valid([]byte(inner)) {
				continue
			}
			candidate = inner
		}
		return strings.TrimRight(trimmed[:i], " \t"), json.RawMessage(candidate)
	}
	return trimmed, nil
}
