package model

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

// ConversationRepository persists the visible transcript and the summary
// buffer memory of each conversation.
type ConversationRepository interface {
	// SaveTurn appends messages to the transcript and replaces the memory
	// state in one write.
	SaveTurn(ctx context.Context, conversationID string, memory *MemoryState, messages ...*schema.Message) error

	// LoadHistory retrieves the transcript for a conversation
	LoadHistory(ctx context.Context, conversationID string) (*ConversationHistory, error)

	// LoadMemory returns the memory state, or an empty one for a new conversation
	LoadMemory(ctx context.Context, conversationID string) (*MemoryState, error)

	// ClearHistory removes transcript and memory for a conversation
	ClearHistory(ctx context.Context, conversationID string) error

	// GetMessageCount returns the number of messages in the transcript
	GetMessageCount(ctx context.Context, conversationID string) (int, error)
}

// ConversationHistory represents loaded conversation data with metadata.
type ConversationHistory struct {
	ConversationID string
	Messages       []*schema.Message
}

// MemoryState is the summary buffer: a running summary of pruned turns plus
// the most recent messages verbatim.
type MemoryState struct {
	Summary string            `json:"summary"`
	Buffer  []*schema.Message `json:"buffer"`
}

// Clone returns a copy whose buffer can be modified independently.
func (m *MemoryState) Clone() *MemoryState {
	if m == nil {
		return &MemoryState{}
	}
	buf := make([]*schema.Message, len(m.Buffer))
	copy(buf, m.Buffer)
	return &MemoryState{Summary: m.Summary, Buffer: buf}
}
