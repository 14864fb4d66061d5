package session

import (
	"encoding/json"
	"strings"
)

// fallbackReply is returned when the platform produced no extractable text.
const fallbackReply = "Не удалось получить ответ. Попробуйте переформулировать вопрос."

// normalizeResult extracts plain text from the heterogeneous result shapes
// the platform produces: a bare string, {"text": ...}, {"content": ...},
// {"parts": [...]}, or a {"message": {...}} wrapper around any of those.
func normalizeResult(raw json.RawMessage) string {
	if len(raw) == 0 {
		return fallbackReply
	}

	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		// Not JSON at all; use the raw bytes as-is.
		if s := strings.TrimSpace(string(raw)); s != "" {
			return s
		}
		return fallbackReply
	}

	if text := strings.TrimSpace(extractText(value)); text != "" {
		return text
	}
	return fallbackReply
}

func extractText(value any) string {
	switch v := value.(type) {
	case string:
		return v

	case []any:
		var parts []string
		for _, item := range v {
			if text := strings.TrimSpace(extractText(item)); text != "" {
				parts = append(parts, text)
			}
		}
		return strings.Join(parts, "\n")

	case map[string]any:
		// Unwrap known containers in order of specificity.
		for _, key := range []string{"message", "parts", "text", "content"} {
			if inner, ok := v[key]; ok {
				if text := strings.TrimSpace(extractText(inner)); text != "" {
					return text
				}
			}
		}
		return ""

	default:
		return ""
	}
}
