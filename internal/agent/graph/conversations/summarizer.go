package conversations

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"

	"github.com/cyber-bartender/server/internal/agent/graph/prompts"
)

// Summarizer folds new conversation lines into a running summary.
type Summarizer interface {
	Summarize(ctx context.Context, summary, newLines string) (string, error)
}

// LLMSummarizer asks a chat model for a progressive summary.
type LLMSummarizer struct {
	chatModel model.BaseChatModel
}

func NewLLMSummarizer(chatModel model.BaseChatModel) *LLMSummarizer {
	return &LLMSummarizer{chatModel: chatModel}
}

func (s *LLMSummarizer) Summarize(ctx context.Context, summary, newLines string) (string, error) {
	msgs, err := prompts.RenderSummary(ctx, summary, newLines)
	if err != nil {
		return "", err
	}
	out, err := s.chatModel.Generate(ctx, msgs)
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	if out == nil || strings.TrimSpace(out.Content) == "" {
		return "", fmt.Errorf("summarize: empty response")
	}
	return strings.TrimSpace(out.Content), nil
}
