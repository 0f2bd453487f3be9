package conversations

import (
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/cyber-bartender/server/internal/agent/model"
)

const (
	humanPrefix  = "Human"
	aiPrefix     = "AI"
	systemPrefix = "System"
)

// EstimateTokens approximates the token count of s at four characters per
// token, rounded up.
func EstimateTokens(s string) int {
	return (len(s) + 3) / 4
}

func formatLine(m *schema.Message) string {
	switch m.Role {
	case schema.User:
		return humanPrefix + ": " + m.Content
	case schema.Assistant:
		return aiPrefix + ": " + m.Content
	case schema.System:
		return systemPrefix + ": " + m.Content
	}
	return string(m.Role) + ": " + m.Content
}

func formatLines(msgs []*schema.Message) string {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m != nil {
			lines = append(lines, formatLine(m))
		}
	}
	return strings.Join(lines, "\n")
}

func bufferTokens(msgs []*schema.Message) int {
	n := 0
	for _, m := range msgs {
		if m != nil {
			n += EstimateTokens(formatLine(m))
		}
	}
	return n
}

// MemoryTokens is the budgeted size of a memory state.
func MemoryTokens(mem *model.MemoryState) int {
	if mem == nil {
		return 0
	}
	return EstimateTokens(mem.Summary) + bufferTokens(mem.Buffer)
}

// RenderMemory lays the memory out as prompt history: the summary as a
// System line followed by the buffered turns.
func RenderMemory(mem *model.MemoryState) string {
	if mem == nil {
		return ""
	}
	var parts []string
	if s := strings.TrimSpace(mem.Summary); s != "" {
		parts = append(parts, systemPrefix+": "+s)
	}
	if lines := formatLines(mem.Buffer); lines != "" {
		parts = append(parts, lines)
	}
	return strings.Join(parts, "\n")
}

// clampSummary keeps the most recent part of s that fits in maxTokens.
func clampSummary(s string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	if EstimateTokens(s) <= maxTokens {
		return s
	}
	s = s[len(s)-maxTokens*4:]
	// do not start mid-rune
	for len(s) > 0 && !isRuneStart(s[0]) {
		s = s[1:]
	}
	return strings.TrimSpace(s)
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
