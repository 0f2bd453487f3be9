package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// TextFunc is the body of a tool that takes one free-text argument.
type TextFunc func(ctx context.Context, input string) (string, error)

// TextInput is the JSON argument of a text tool.
type TextInput struct {
	Input string `json:"input"`
}

type textTool struct {
	info *schema.ToolInfo
	fn   TextFunc
}

// NewTextTool wraps fn as an eino InvokableTool with a single string parameter.
func NewTextTool(name, desc string, fn TextFunc) tool.InvokableTool {
	return &textTool{
		info: &schema.ToolInfo{
			Name: name,
			Desc: desc,
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"input": {
					Type:     "string",
					Desc:     "The action input, as free text.",
					Required: true,
				},
			}),
		},
		fn: fn,
	}
}

func (t *textTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return t.info, nil
}

// InvokableRun accepts {"input": "..."}; anything that is not such an object
// is taken as the input verbatim.
func (t *textTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	input := argumentsInJSON
	var in TextInput
	if strings.HasPrefix(strings.TrimSpace(argumentsInJSON), "{") {
		if err := json.Unmarshal([]byte(argumentsInJSON), &in); err == nil {
			input = in.Input
		}
	}
	if strings.TrimSpace(input) == "" {
		return "", fmt.Errorf("%s: input is required", t.info.Name)
	}
	return t.fn(ctx, input)
}

// EncodeInput builds the JSON arguments for a text tool.
func EncodeInput(input string) (string, error) {
	b, err := json.Marshal(TextInput{Input: input})
	if err != nil {
		return "", err
	}
	return string(b), nil
}
