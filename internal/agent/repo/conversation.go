package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/redis/go-redis/v9"

	"github.com/cyber-bartender/server/internal/agent/model"
	errx "github.com/cyber-bartender/server/internal/core/error"
	logx "github.com/cyber-bartender/server/pkg/logger"
)

type RedisConversationRepository struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisConversationRepository(rdb redis.Cmdable, ttl time.Duration) *RedisConversationRepository {
	return &RedisConversationRepository{rdb: rdb, ttl: ttl}
}

func (r *RedisConversationRepository) conversationKey(conversationID string) string {
	return fmt.Sprintf("conversation:%s:messages", conversationID)
}

func (r *RedisConversationRepository) memoryKey(conversationID string) string {
	return fmt.Sprintf("conversation:%s:memory", conversationID)
}

// SaveTurn appends the messages and replaces the memory state in a single
// MULTI/EXEC so a reader never sees one without the other.
func (r *RedisConversationRepository) SaveTurn(ctx context.Context, conversationID string, memory *model.MemoryState, messages ...*schema.Message) error {
	rows := make([]any, 0, len(messages))
	for _, m := range messages {
		b, err := json.Marshal(m)
		if err != nil {
			logx.Error().Err(err).Str("conversation_id", conversationID).Msg("failed to marshal message")
			return fmt.Errorf("marshal message: %w", err)
		}
		rows = append(rows, b)
	}
	var mem []byte
	if memory != nil {
		b, err := json.Marshal(memory)
		if err != nil {
			logx.Error().Err(err).Str("conversation_id", conversationID).Msg("failed to marshal memory")
			return fmt.Errorf("marshal memory: %w", err)
		}
		mem = b
	}

	msgKey, memKey := r.conversationKey(conversationID), r.memoryKey(conversationID)
	_, err := r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		if len(rows) > 0 {
			p.RPush(ctx, msgKey, rows...)
		}
		if mem != nil {
			p.Set(ctx, memKey, mem, 0)
		}
		// extend TTL on touch
		if r.ttl > 0 {
			p.Expire(ctx, msgKey, r.ttl)
			p.Expire(ctx, memKey, r.ttl)
		}
		return nil
	})
	if err != nil {
		logx.Error().Err(err).Str("key", msgKey).Msg("failed to save turn to redis")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisConversationRepository) LoadHistory(ctx context.Context, conversationID string) (*model.ConversationHistory, error) {
	key := r.conversationKey(conversationID)

	rows, err := r.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return &model.ConversationHistory{ConversationID: conversationID, Messages: []*schema.Message{}}, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load conversation history from redis")
		return nil, errx.WrapRedis(err)
	}

	msgs := make([]*schema.Message, 0, len(rows))
	for i, s := range rows {
		var m schema.Message
		if err := json.Unmarshal([]byte(s), &m); err != nil {
			logx.Error().Err(err).Str("conversation_id", conversationID).Int("index", i).Msg("failed to unmarshal message")
			return nil, fmt.Errorf("unmarshal message at index %d: %w", i, err)
		}
		msgs = append(msgs, &m)
	}
	return &model.ConversationHistory{ConversationID: conversationID, Messages: msgs}, nil
}

func (r *RedisConversationRepository) LoadMemory(ctx context.Context, conversationID string) (*model.MemoryState, error) {
	key := r.memoryKey(conversationID)

	raw, err := r.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return &model.MemoryState{}, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load memory from redis")
		return nil, errx.WrapRedis(err)
	}

	var mem model.MemoryState
	if err := json.Unmarshal(raw, &mem); err != nil {
		logx.Error().Err(err).Str("conversation_id", conversationID).Msg("failed to unmarshal memory")
		return nil, fmt.Errorf("unmarshal memory: %w", err)
	}
	return &mem, nil
}

func (r *RedisConversationRepository) ClearHistory(ctx context.Context, conversationID string) error {
	key := r.conversationKey(conversationID)
	if err := r.rdb.Del(ctx, key, r.memoryKey(conversationID)).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to delete conversation history from redis")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisConversationRepository) GetMessageCount(ctx context.Context, conversationID string) (int, error) {
	key := r.conversationKey(conversationID)
	n, err := r.rdb.LLen(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to get message count from redis")
		return 0, errx.WrapRedis(err)
	}
	return int(n), nil
}

var _ model.ConversationRepository = (*RedisConversationRepository)(nil)
