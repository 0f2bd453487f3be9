// Package qa answers a question from retrieved documents by stuffing them into
// a single prompt.
package qa

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"

	logx "github.com/cyber-bartender/server/pkg/logger"
)

const stuffPrompt = `Use the following pieces of context to answer the question at the end. If you don't know the answer, just say that you don't know, don't try to make up an answer.

{context}

Question: {question}
Helpful Answer:`

// Chain retrieves documents for a question and synthesizes one answer.
type Chain struct {
	retriever retriever.Retriever
	chatModel model.BaseChatModel
	template  prompt.ChatTemplate
}

// NewChain builds a stuff chain.
func NewChain(r retriever.Retriever, chatModel model.BaseChatModel) (*Chain, error) {
	if r == nil {
		return nil, fmt.Errorf("stuff chain: retriever is required")
	}
	if chatModel == nil {
		return nil, fmt.Errorf("stuff chain: chat model is required")
	}
	return &Chain{
		retriever: r,
		chatModel: chatModel,
		template:  prompt.FromMessages(schema.FString, schema.UserMessage(stuffPrompt)),
	}, nil
}

// Answer runs retrieval then synthesis. Synthesis runs even when nothing was
// retrieved.
func (c *Chain) Answer(ctx context.Context, question string) (string, error) {
	docs, err := c.retriever.Retrieve(ctx, question)
	if err != nil {
		return "", fmt.Errorf("stuff chain retrieve: %w", err)
	}

	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		if d != nil {
			parts = append(parts, d.Content)
		}
	}

	msgs, err := c.template.Format(ctx, map[string]any{
		"context":  strings.Join(parts, "\n\n"),
		"question": question,
	})
	if err != nil {
		return "", fmt.Errorf("stuff chain prompt render: %w", err)
	}

	out, err := c.chatModel.Generate(ctx, msgs)
	if err != nil {
		return "", fmt.Errorf("stuff chain generate: %w", err)
	}
	if out == nil {
		return "", fmt.Errorf("stuff chain generate: empty response")
	}

	logx.Debug().Str("question", question).Int("documents", len(parts)).Msg("Synthesized answer")
	return strings.TrimSpace(out.Content), nil
}
