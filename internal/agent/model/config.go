package model

import "time"

// ================ Config ================
type ConversationConfig struct {
	TTL       string `envconfig:"CONVERSATION_TTL" default:"24h"`
	DefaultID string `envconfig:"CONVERSATION_ID" default:"default"`
}

type MemoryConfig struct {
	MaxTokens int `envconfig:"MEMORY_MAX_TOKENS" default:"4096"`
}

type AgentModelConfig struct {
	Model       string  `envconfig:"AGENT_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"AGENT_MAX_TOKENS" default:"2000"`
	Temperature float32 `envconfig:"AGENT_TEMPERATURE" default:"0"`
	// ThinkingBudget < 0 leaves the provider default
	ThinkingBudget int `envconfig:"AGENT_THINKING_BUDGET" default:"0"`
}

type AgentLoopConfig struct {
	MaxIterations   int           `envconfig:"AGENT_MAX_ITERATIONS" default:"5"`
	MaxParseRetries int           `envconfig:"AGENT_MAX_PARSE_RETRIES" default:"1"`
	TurnTimeout     time.Duration `envconfig:"AGENT_TURN_TIMEOUT" default:"90s"`
	ToolTimeout     time.Duration `envconfig:"AGENT_TOOL_TIMEOUT" default:"30s"`
}

type RetrievalConfig struct {
	CorpusPath string `envconfig:"RETRIEVAL_CORPUS_PATH" default:"data/beers.jsonl"`
	TopK       int    `envconfig:"RETRIEVAL_TOP_K" default:"4"`
	Persist    bool   `envconfig:"RETRIEVAL_PERSIST" default:"false"`
}

// ParseTTL returns the conversation TTL; an empty value disables expiry.
func (c ConversationConfig) ParseTTL() (time.Duration, error) {
	if c.TTL == "" {
		return 0, nil
	}
	return time.ParseDuration(c.TTL)
}
