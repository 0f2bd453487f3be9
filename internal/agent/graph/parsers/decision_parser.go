package parsers

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/cyber-bartender/server/internal/agent/model"
	errx "github.com/cyber-bartender/server/internal/core/error"
	logx "github.com/cyber-bartender/server/pkg/logger"
)

const (
	decisionMarker = "do i need to use a tool?"
	aiPrefix       = "AI:"
	observationTag = "Observation:"
)

// basic safety limits to avoid pathological inputs
const (
	maxContentLen = 64 * 1024 // 64KB
	maxErrSnippet = 200       // limit error snippet size
)

var (
	actionRe      = regexp.MustCompile(`(?mi)^[ \t]*Action[ \t]*:[ \t]*(.*)$`)
	actionInputRe = regexp.MustCompile(`(?si)Action[ \t]*Input[ \t]*:(.*)`)
)

// ParseDecision reads one decision-model response. It returns a DecisionTool
// or a DecisionFinal; anything else is an error wrapping errx.ErrDecisionParse.
func ParseDecision(content string) (decision model.Decision, err error) {
	// panic safety
	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("component", "decision_parser").Msgf("panic recovered: %v", r)
			err = errx.New(fmt.Errorf("%w: parser panic", errx.ErrDecisionParse), http.StatusInternalServerError, errx.SystemErrorMessage)
			decision = nil
		}
	}()

	// content length guard
	if len(content) > maxContentLen {
		logx.Warn().
			Str("component", "decision_parser").
			Int("max_len", maxContentLen).
			Int("orig_len", len(content)).
			Msg("content truncated due to size limit")
		content = truncateRunes(content, maxContentLen)
	}

	text := dropHallucinatedObservation(content)
	lower := strings.ToLower(text)

	idx := strings.Index(lower, decisionMarker)
	if idx < 0 {
		return nil, errx.DecisionParse("missing \"Do I need to use a tool?\" marker")
	}
	rest := text[idx+len(decisionMarker):]

	switch firstWord(rest) {
	case "yes":
		return parseToolDecision(text, rest)
	case "no":
		return parseFinalDecision(text, rest)
	default:
		return nil, errx.DecisionParse(fmt.Sprintf("expected Yes or No after marker, got %q", safeSnippet(firstLine(rest))))
	}
}

func parseToolDecision(text, rest string) (model.Decision, error) {
	am := actionRe.FindStringSubmatchIndex(rest)
	if am == nil {
		return nil, errx.DecisionParse("missing Action line")
	}
	name := strings.TrimSpace(rest[am[2]:am[3]])
	if name == "" {
		return nil, errx.DecisionParse("empty Action")
	}

	im := actionInputRe.FindStringSubmatch(rest[am[1]:])
	if im == nil {
		return nil, errx.DecisionParse("missing Action Input line")
	}
	input := strings.Trim(strings.TrimSpace(im[1]), `"`)
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, errx.DecisionParse("empty Action Input")
	}

	return model.DecisionTool{
		Tool:  name,
		Input: input,
		Log:   strings.TrimRight(text, " \t\r\n"),
	}, nil
}

func parseFinalDecision(text, rest string) (model.Decision, error) {
	i := strings.Index(rest, aiPrefix)
	if i < 0 {
		return nil, errx.DecisionParse("missing AI: line")
	}
	answer := strings.TrimSpace(rest[i+len(aiPrefix):])
	if answer == "" {
		return nil, errx.DecisionParse("empty AI response")
	}
	return model.DecisionFinal{Answer: answer, Log: strings.TrimSpace(text)}, nil
}

// dropHallucinatedObservation cuts the response where the model started to
// invent a tool result.
func dropHallucinatedObservation(s string) string {
	if strings.HasPrefix(strings.TrimSpace(s), observationTag) {
		return ""
	}
	if i := strings.Index(s, "\n"+observationTag); i >= 0 {
		return s[:i]
	}
	return s
}

func firstWord(s string) string {
	s = strings.TrimLeft(s, " \t")
	end := strings.IndexFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z')
	})
	if end < 0 {
		end = len(s)
	}
	return strings.ToLower(s[:end])
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// --- helpers ---

func safeSnippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxErrSnippet {
		return s
	}
	return s[:maxErrSnippet]
}

// truncateRunes cuts s to at most n bytes without splitting a rune.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
