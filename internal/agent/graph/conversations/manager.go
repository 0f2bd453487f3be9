package conversations

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/cyber-bartender/server/internal/agent/model"
	logx "github.com/cyber-bartender/server/pkg/logger"
)

// DefaultMaxTokens is the summary buffer budget.
const DefaultMaxTokens = 4096

type MessagesManager struct {
	conversationRepo model.ConversationRepository
	summarizer       Summarizer
	maxTokens        int
}

func NewMessagesManager(conversationRepo model.ConversationRepository, summarizer Summarizer, config model.MemoryConfig) *MessagesManager {
	maxTokens := config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &MessagesManager{
		conversationRepo: conversationRepo,
		summarizer:       summarizer,
		maxTokens:        maxTokens,
	}
}

// LoadChatHistory renders the conversation memory for the decision prompt.
func (cm *MessagesManager) LoadChatHistory(ctx context.Context, conversationID string) (string, error) {
	mem, err := cm.conversationRepo.LoadMemory(ctx, conversationID)
	if err != nil {
		return "", fmt.Errorf("load memory: %w", err)
	}
	return RenderMemory(mem), nil
}

// SaveTurn records one exchange in the transcript and the memory. The memory
// is pruned so that summary plus buffer stays within the token budget.
func (cm *MessagesManager) SaveTurn(ctx context.Context, conversationID, input, answer string) error {
	mem, err := cm.conversationRepo.LoadMemory(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("load memory: %w", err)
	}

	userMsg := schema.UserMessage(input)
	aiMsg := schema.AssistantMessage(answer, nil)

	next := mem.Clone()
	next.Buffer = append(next.Buffer, userMsg, aiMsg)
	cm.prune(ctx, conversationID, next)

	if err := cm.conversationRepo.SaveTurn(ctx, conversationID, next, userMsg, aiMsg); err != nil {
		return fmt.Errorf("save turn: %w", err)
	}
	return nil
}

func (cm *MessagesManager) prune(ctx context.Context, conversationID string, mem *model.MemoryState) {
	summaryTokens := EstimateTokens(mem.Summary)
	var pruned []*schema.Message
	for len(mem.Buffer) > 0 && summaryTokens+bufferTokens(mem.Buffer) > cm.maxTokens {
		pruned = append(pruned, mem.Buffer[0])
		mem.Buffer = mem.Buffer[1:]
	}
	if len(pruned) == 0 {
		return
	}

	newLines := formatLines(pruned)
	summary, err := cm.summarizer.Summarize(ctx, mem.Summary, newLines)
	if err != nil {
		logx.Warn().
			Err(err).
			Str("conversation_id", conversationID).
			Int("pruned_messages", len(pruned)).
			Msg("Summarizer failed; keeping pruned lines verbatim")
		summary = strings.TrimSpace(mem.Summary + "\n" + newLines)
	}

	budget := cm.maxTokens - bufferTokens(mem.Buffer)
	mem.Summary = clampSummary(summary, budget)

	logx.Debug().
		Str("conversation_id", conversationID).
		Int("pruned_messages", len(pruned)).
		Int("buffer_messages", len(mem.Buffer)).
		Int("memory_tokens", MemoryTokens(mem)).
		Msg("Memory summarized")
}

// History returns the visible transcript.
func (cm *MessagesManager) History(ctx context.Context, conversationID string) ([]*schema.Message, error) {
	h, err := cm.conversationRepo.LoadHistory(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return h.Messages, nil
}

// IsEmpty reports whether the conversation has no recorded turns.
func (cm *MessagesManager) IsEmpty(ctx context.Context, conversationID string) (bool, error) {
	n, err := cm.conversationRepo.GetMessageCount(ctx, conversationID)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

// Reset drops transcript and memory.
func (cm *MessagesManager) Reset(ctx context.Context, conversationID string) error {
	return cm.conversationRepo.ClearHistory(ctx, conversationID)
}
