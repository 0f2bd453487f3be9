package prompts

import (
	"context"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyber-bartender/server/internal/agent/model"
)

func TestRenderAgent(t *testing.T) {
	msgs, err := RenderAgent(context.Background(), AgentPromptInput{
		Tools:       "> Beer Search: finds beers\n> Cocktail Recipe Finder: finds recipes",
		ToolNames:   "Beer Search, Cocktail Recipe Finder",
		ChatHistory: "Human: Hello\nAI: Hi there!",
		Input:       "How do I make a Margarita?",
	})
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	p := msgs[0].Content
	assert.Equal(t, schema.User, msgs[0].Role)
	assert.True(t, strings.HasPrefix(p, "You are an expert consultant on alcoholic beverages"))
	assert.Contains(t, p, "> Beer Search: finds beers\n> Cocktail Recipe Finder: finds recipes")
	assert.Contains(t, p, "should be one of [Beer Search, Cocktail Recipe Finder]")
	assert.Contains(t, p, "Previous conversation history:\nHuman: Hello\nAI: Hi there!")
	assert.True(t, strings.HasSuffix(p, "New input: How do I make a Margarita?\n"))
	assert.NotContains(t, p, "Observation: Name:")
}

func TestRenderAgentWithScratchpadAndCorrection(t *testing.T) {
	steps := []model.ScratchpadStep{{
		Tool:        "Cocktail Recipe Finder",
		Input:       "Margarita",
		Log:         "Thought: Do I need to use a tool? Yes\nAction: Cocktail Recipe Finder\nAction Input: Margarita",
		Observation: "Name: Margarita",
	}}
	msgs, err := RenderAgent(context.Background(), AgentPromptInput{
		Input:      "How do I make a Margarita?",
		Scratchpad: steps,
		Correction: &model.Correction{Response: "just do it", Reason: "missing decision marker"},
	})
	require.NoError(t, err)
	require.Len(t, msgs, 3)

	assert.True(t, strings.HasSuffix(msgs[0].Content,
		"New input: How do I make a Margarita?\nThought: Do I need to use a tool? Yes\nAction: Cocktail Recipe Finder\nAction Input: Margarita\nObservation: Name: Margarita\nThought: "))
	assert.Equal(t, schema.Assistant, msgs[1].Role)
	assert.Equal(t, "just do it", msgs[1].Content)
	assert.Equal(t, schema.User, msgs[2].Role)
	assert.Contains(t, msgs[2].Content, "missing decision marker")
}

func TestFormatScratchpad(t *testing.T) {
	assert.Equal(t, "", FormatScratchpad(nil))
	got := FormatScratchpad([]model.ScratchpadStep{
		{Log: "A", Observation: "one"},
		{Log: " B", Observation: "two"},
	})
	assert.Equal(t, "A\nObservation: one\nThought:  B\nObservation: two\nThought: ", got)
}

func TestRenderSummary(t *testing.T) {
	msgs, err := RenderSummary(context.Background(), "The human greets the AI.", "Human: I like stouts\nAI: Great choice")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Content, "Current summary:\nThe human greets the AI.\n\nNew lines of conversation:\nHuman: I like stouts\nAI: Great choice\n\nNew summary:")
}
