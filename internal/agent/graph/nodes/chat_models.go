package nodes

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"google.golang.org/genai"

	"github.com/cyber-bartender/server/internal/agent/model"
	logx "github.com/cyber-bartender/server/pkg/logger"
)

// ChatModelConfig holds the configuration for chat model creation
type ChatModelConfig struct {
	APIKey  string
	BaseURL string
	Agent   *model.AgentModelConfig
}

// ChatModels holds the Gemini client and the chat model shared by the agent,
// the query constructor, answer synthesis and the memory summarizer.
type ChatModels struct {
	Client         *genai.Client
	Agent          *gemini.ChatModel
	AgentModelName string
}

// NewChatModels creates the Gemini client and chat model with the given configuration
func NewChatModels(ctx context.Context, config ChatModelConfig) (*ChatModels, error) {
	if config.Agent == nil {
		return nil, fmt.Errorf("agent model config is nil")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = config.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	geminiCfg := &gemini.Config{
		Client:      client,
		Model:       config.Agent.Model,
		Temperature: &config.Agent.Temperature,
		MaxTokens:   &config.Agent.MaxTokens,
	}
	// the decision format is parsed from plain text, so thoughts stay out of the reply
	if config.Agent.ThinkingBudget >= 0 {
		geminiCfg.ThinkingConfig = &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  genai.Ptr(int32(config.Agent.ThinkingBudget)),
		}
	}

	agentModel, err := gemini.NewChatModel(ctx, geminiCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating agent model")
		return nil, fmt.Errorf("error creating agent model: %w", err)
	}

	return &ChatModels{
		Client:         client,
		Agent:          agentModel,
		AgentModelName: config.Agent.Model,
	}, nil
}
