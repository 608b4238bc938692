package provider

import (
	"encoding/json"
	"strings"
)

// extractContentFromChoices reads an OpenAI-style choices[0].message.content
// and returns the first JSON object found inside it.
func extractContentFromChoices(body []byte) string {
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return ""
	}

	choices, ok := obj["choices"].([]any)
	if !ok || len(choices) == 0 {
		return ""
	}
	c0, _ := choices[0].(map[string]any)
	if c0 == nil {
		return ""
	}
	msg, _ := c0["message"].(map[string]any)
	if msg == nil {
		return ""
	}
	content, _ := msg["content"].(string)
	return extractJSON(content)
}

// extractJSON finds the first balanced JSON object in a string and returns it.
// Common markdown fences are stripped first since models love emitting them.
func extractJSON(s string) string {
	if s == "" {
		return ""
	}

	s = strings.ReplaceAll(s, "\r\n", "\n")
	for _, r := range []string{"```json", "```yaml", "```text", "```", "`json", "`"} {
		s = strings.ReplaceAll(s, r, "")
	}

	start := strings.Index(s, "{")
	if start == -1 {
		return ""
	}

	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				candidate := strings.TrimSpace(s[start : i+1])
				var tmp any
				if json.Unmarshal([]byte(candidate), &tmp) == nil {
					return candidate
				}
				// best effort even when invalid; caller falls back on
				// unmarshal failure
				return candidate
			}
		}
	}

	return ""
}
