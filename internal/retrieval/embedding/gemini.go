// Package embedding adapts the Gemini embeddings endpoint to the eino
// Embedder contract used by the vector store.
package embedding

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/embedding"
	"google.golang.org/genai"

	logx "github.com/cyber-bartender/server/pkg/logger"
)

// DefaultModel is the embedding model used when none is configured.
const DefaultModel = "text-embedding-004"

// Config for the Gemini embedder.
type Config struct {
	Model    string `envconfig:"RETRIEVAL_EMBEDDING_MODEL" default:"text-embedding-004"`
	TaskType string `envconfig:"RETRIEVAL_EMBEDDING_TASK" default:"RETRIEVAL_DOCUMENT"`
}

// GeminiEmbedder embeds text with a genai client.
type GeminiEmbedder struct {
	client *genai.Client
	cfg    Config
}

var _ embedding.Embedder = (*GeminiEmbedder)(nil)

// NewGeminiEmbedder wraps an existing genai client.
func NewGeminiEmbedder(client *genai.Client, cfg Config) (*GeminiEmbedder, error) {
	if client == nil {
		return nil, fmt.Errorf("gemini embedder: client is nil")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	return &GeminiEmbedder{client: client, cfg: cfg}, nil
}

func (e *GeminiEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	modelName := e.cfg.Model
	common := embedding.GetCommonOptions(&embedding.Options{Model: &modelName}, opts...)
	if common.Model != nil && *common.Model != "" {
		modelName = *common.Model
	}

	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}

	var cfg *genai.EmbedContentConfig
	if e.cfg.TaskType != "" {
		cfg = &genai.EmbedContentConfig{TaskType: e.cfg.TaskType}
	}

	resp, err := e.client.Models.EmbedContent(ctx, modelName, contents, cfg)
	if err != nil {
		logx.Error().Err(err).Str("model", modelName).Int("texts", len(texts)).Msg("Gemini embed failed")
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	if resp == nil || len(resp.Embeddings) != len(texts) {
		got := 0
		if resp != nil {
			got = len(resp.Embeddings)
		}
		return nil, fmt.Errorf("gemini embed: expected %d embeddings, got %d", len(texts), got)
	}

	out := make([][]float64, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if emb == nil {
			return nil, fmt.Errorf("gemini embed: empty embedding at %d", i)
		}
		v := make([]float64, len(emb.Values))
		for j, x := range emb.Values {
			v[j] = float64(x)
		}
		out[i] = v
	}
	return out, nil
}
