package prompts

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed template/summary_prompt.txt
var summaryPrompt string

var summaryTemplate = prompt.FromMessages(schema.GoTemplate, schema.UserMessage(summaryPrompt))

// RenderSummary renders the progressive summarization prompt.
func RenderSummary(ctx context.Context, summary, newLines string) ([]*schema.Message, error) {
	msgs, err := summaryTemplate.Format(ctx, map[string]any{
		"Summary":  summary,
		"NewLines": newLines,
	})
	if err != nil {
		return nil, fmt.Errorf("summary prompt render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return nil, fmt.Errorf("summary prompt render: empty result")
	}
	return msgs, nil
}
