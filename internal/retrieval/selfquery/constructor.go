package selfquery

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	logx "github.com/cyber-bartender/server/pkg/logger"
)

//go:embed template/query_constructor.txt
var queryConstructorPrompt string

// StructuredQuery is a natural-language question split into a semantic query
// and a metadata filter.
type StructuredQuery struct {
	Query  string
	Filter Filter // nil when nothing constrains the metadata
}

// Constructor asks a chat model to translate a question into a StructuredQuery.
type Constructor struct {
	chatModel model.BaseChatModel
	content   string
	attrs     []AttributeInfo
	schema    Schema
	template  prompt.ChatTemplate
}

// NewConstructor creates a query constructor over the given attribute set.
func NewConstructor(chatModel model.BaseChatModel, content string, attrs []AttributeInfo) (*Constructor, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("query constructor: chat model is required")
	}
	if len(attrs) == 0 {
		return nil, fmt.Errorf("query constructor: at least one attribute is required")
	}
	return &Constructor{
		chatModel: chatModel,
		content:   content,
		attrs:     attrs,
		schema:    NewSchema(attrs),
		template:  prompt.FromMessages(schema.GoTemplate, schema.UserMessage(queryConstructorPrompt)),
	}, nil
}

type structuredRequest struct {
	Query  string `json:"query"`
	Filter string `json:"filter"`
}

// Construct produces the structured query for question. Range comparisons on
// attributes with a sentinel are guarded so the sentinel never matches.
func (c *Constructor) Construct(ctx context.Context, question string) (StructuredQuery, error) {
	msgs, err := c.template.Format(ctx, map[string]any{
		"Content":    c.content,
		"Attributes": describeAttributes(c.attrs),
		"Query":      question,
	})
	if err != nil {
		return StructuredQuery{}, fmt.Errorf("query constructor prompt render: %w", err)
	}

	out, err := c.chatModel.Generate(ctx, msgs)
	if err != nil {
		return StructuredQuery{}, fmt.Errorf("query constructor generate: %w", err)
	}
	if out == nil {
		return StructuredQuery{}, fmt.Errorf("query constructor generate: empty response")
	}

	raw, err := extractJSON(out.Content)
	if err != nil {
		return StructuredQuery{}, fmt.Errorf("query constructor output: %w", err)
	}
	var req structuredRequest
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		return StructuredQuery{}, fmt.Errorf("query constructor output: %w", err)
	}

	filter, err := ParseFilter(req.Filter, c.schema)
	if err != nil {
		return StructuredQuery{}, fmt.Errorf("query constructor filter: %w", err)
	}
	filter = GuardSentinels(filter, c.schema)

	query := strings.TrimSpace(req.Query)
	if query == "" {
		query = question
	}

	sq := StructuredQuery{Query: query, Filter: filter}
	logx.Debug().
		Str("question", question).
		Str("query", sq.Query).
		Str("filter", sq.FilterString()).
		Msg("Constructed structured query")
	return sq, nil
}

// FilterString renders the filter, or NO_FILTER when there is none.
func (q StructuredQuery) FilterString() string {
	if q.Filter == nil {
		return NoFilter
	}
	return q.Filter.String()
}
