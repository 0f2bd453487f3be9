package selfquery

import (
	"encoding/json"
	"fmt"
	"strings"
)

// extractJSON returns the JSON object in a model response. It accepts a bare
// object, one wrapped in a markdown code block, or one embedded in prose.
func extractJSON(response string) (string, error) {
	response = stripCodeFence(response)

	if json.Valid([]byte(response)) {
		return response, nil
	}

	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start != -1 && end > start {
		candidate := response[start : end+1]
		if json.Valid([]byte(candidate)) {
			return candidate, nil
		}
	}

	preview := response
	if len(preview) > 100 {
		preview = preview[:100] + "..."
	}
	return "", fmt.Errorf("no valid JSON object in response: %q", preview)
}

func stripCodeFence(response string) string {
	trimmed := strings.TrimSpace(response)
	if i := strings.Index(trimmed, "```"); i >= 0 {
		rest := trimmed[i+3:]
		rest = strings.TrimPrefix(rest, "json")
		if j := strings.Index(rest, "```"); j >= 0 {
			rest = rest[:j]
		}
		return strings.TrimSpace(rest)
	}
	return trimmed
}
