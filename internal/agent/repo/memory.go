package repo

import (
	"context"
	"sync"

	"github.com/cloudwego/eino/schema"

	"github.com/cyber-bartender/server/internal/agent/model"
)

type inMemoryConversation struct {
	messages []*schema.Message
	memory   *model.MemoryState
}

// InMemoryConversationRepository keeps conversations in process memory. It is
// used when no Redis URL is configured.
type InMemoryConversationRepository struct {
	mu    sync.RWMutex
	convs map[string]*inMemoryConversation
}

func NewInMemoryConversationRepository() *InMemoryConversationRepository {
	return &InMemoryConversationRepository{convs: make(map[string]*inMemoryConversation)}
}

func (r *InMemoryConversationRepository) SaveTurn(_ context.Context, conversationID string, memory *model.MemoryState, messages ...*schema.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.convs[conversationID]
	if !ok {
		c = &inMemoryConversation{}
		r.convs[conversationID] = c
	}
	for _, m := range messages {
		cp := *m
		c.messages = append(c.messages, &cp)
	}
	if memory != nil {
		c.memory = memory.Clone()
	}
	return nil
}

func (r *InMemoryConversationRepository) LoadHistory(_ context.Context, conversationID string) (*model.ConversationHistory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	msgs := []*schema.Message{}
	if c, ok := r.convs[conversationID]; ok {
		for _, m := range c.messages {
			cp := *m
			msgs = append(msgs, &cp)
		}
	}
	return &model.ConversationHistory{ConversationID: conversationID, Messages: msgs}, nil
}

func (r *InMemoryConversationRepository) LoadMemory(_ context.Context, conversationID string) (*model.MemoryState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.convs[conversationID]
	if !ok || c.memory == nil {
		return &model.MemoryState{}, nil
	}
	return c.memory.Clone(), nil
}

func (r *InMemoryConversationRepository) ClearHistory(_ context.Context, conversationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.convs, conversationID)
	return nil
}

func (r *InMemoryConversationRepository) GetMessageCount(_ context.Context, conversationID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.convs[conversationID]; ok {
		return len(c.messages), nil
	}
	return 0, nil
}

var _ model.ConversationRepository = (*InMemoryConversationRepository)(nil)
