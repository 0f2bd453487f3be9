package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/cyber-bartender/server/internal/agent/model"
)

//go:embed template/agent_prompt.txt
var agentPrompt string

// AgentPromptInput holds everything the decision prompt is rendered from.
type AgentPromptInput struct {
	Tools       string // "> name: description" lines
	ToolNames   string // comma separated
	ChatHistory string
	Input       string
	Scratchpad  []model.ScratchpadStep
	Correction  *model.Correction
}

var agentTemplate = prompt.FromMessages(
	schema.GoTemplate,
	schema.UserMessage(agentPrompt),
	schema.MessagesPlaceholder("correction", true),
)

// RenderAgent renders the decision prompt via Eino prompt component so prompt
// callbacks fire.
func RenderAgent(ctx context.Context, in AgentPromptInput) ([]*schema.Message, error) {
	ctx = callbacks.ReuseHandlers(ctx, &callbacks.RunInfo{
		Name:      "AgentPrompt",
		Type:      "Default",
		Component: components.ComponentOfPrompt,
	})
	msgs, err := agentTemplate.Format(ctx, map[string]any{
		"Tools":       in.Tools,
		"ToolNames":   in.ToolNames,
		"ChatHistory": in.ChatHistory,
		"Input":       in.Input,
		"Scratchpad":  FormatScratchpad(in.Scratchpad),
		"correction":  correctionMessages(in.Correction),
	})
	if err != nil {
		return nil, fmt.Errorf("agent prompt render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return nil, fmt.Errorf("agent prompt render: empty result")
	}
	return msgs, nil
}

// FormatScratchpad lays out previous steps so the model continues after a
// trailing "Thought: ".
func FormatScratchpad(steps []model.ScratchpadStep) string {
	var b strings.Builder
	for _, s := range steps {
		b.WriteString(s.Log)
		b.WriteString("\nObservation: ")
		b.WriteString(s.Observation)
		b.WriteString("\nThought: ")
	}
	return b.String()
}

// CorrectionInstruction is sent after a response that broke the decision format.
func CorrectionInstruction(reason string) string {
	return "Your previous response could not be parsed (" + reason + "). " +
		"Respond again using exactly one of the two formats: either " +
		"\"Thought: Do I need to use a tool? Yes\" followed by \"Action:\" and \"Action Input:\" lines, " +
		"or \"Thought: Do I need to use a tool? No\" followed by an \"AI:\" line."
}

func correctionMessages(c *model.Correction) []*schema.Message {
	if c == nil {
		return nil
	}
	return []*schema.Message{
		schema.AssistantMessage(c.Response, nil),
		schema.UserMessage(CorrectionInstruction(c.Reason)),
	}
}
