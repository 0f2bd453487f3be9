package selfquery

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyber-bartender/server/internal/retrieval/vectorstore"
)

type scriptedModel struct {
	reply   string
	err     error
	prompts []string
}

func (m *scriptedModel) Generate(_ context.Context, in []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	for _, msg := range in {
		m.prompts = append(m.prompts, msg.Content)
	}
	if m.err != nil {
		return nil, m.err
	}
	return schema.AssistantMessage(m.reply, nil), nil
}

func (m *scriptedModel) Stream(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	out, err := m.Generate(ctx, in, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{out}), nil
}

type flatEmbedder struct{}

func (flatEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = []float64{1, 0}
	}
	return out, nil
}

func beerSchema() Schema { return NewSchema(BeerAttributes) }

func TestParseFilter(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`lt("abv", 4)`, `lt("abv", 4)`},
		{`and(gt("abv", 6.8), lt('ibu', 33))`, `and(gt("abv", 6.8), lt("ibu", 33))`},
		{`or(eq(srm, "5"), not(gte("ibu", 55)))`, `or(eq("srm", 5), not(gte("ibu", 55)))`},
		{`  AND( lt("abv",4) )  `, `and(lt("abv", 4))`},
	}
	for _, tc := range cases {
		f, err := ParseFilter(tc.in, beerSchema())
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, f.String(), tc.in)
	}
}

func TestParseFilterNoFilter(t *testing.T) {
	for _, in := range []string{"", "NO_FILTER", `"NO_FILTER"`, "no_filter"} {
		f, err := ParseFilter(in, beerSchema())
		require.NoError(t, err)
		assert.Nil(t, f, in)
	}
}

func TestParseFilterErrors(t *testing.T) {
	for _, in := range []string{
		`lt("color", 4)`,
		`between("abv", 4)`,
		`lt("abv", 4`,
		`not(lt("abv", 4), gt("abv", 1))`,
		`lt("abv", 4) extra`,
		`lt("abv, 4)`,
		`lt("abv", )`,
	} {
		_, err := ParseFilter(in, beerSchema())
		assert.Error(t, err, in)
	}
}

func TestComparisonMatch(t *testing.T) {
	meta := map[string]any{"abv": 3.5, "srm": 7}
	assert.True(t, (&Comparison{Comparator: Lt, Attribute: "abv", Value: 4.0}).Match(meta))
	assert.False(t, (&Comparison{Comparator: Gt, Attribute: "abv", Value: 4.0}).Match(meta))
	assert.True(t, (&Comparison{Comparator: Eq, Attribute: "srm", Value: 7.0}).Match(meta))
	assert.False(t, (&Comparison{Comparator: Lt, Attribute: "ibu", Value: 100.0}).Match(meta))
}

func TestGuardSentinels(t *testing.T) {
	f, err := ParseFilter(`lt("abv", 4)`, beerSchema())
	require.NoError(t, err)
	g := GuardSentinels(f, beerSchema())
	assert.Equal(t, `and(lt("abv", 4), ne("abv", -1))`, g.String())

	assert.False(t, g.Match(map[string]any{"abv": -1.0}))
	assert.True(t, g.Match(map[string]any{"abv": 3.5}))
	assert.False(t, g.Match(map[string]any{"abv": 5.0}))
}

func TestGuardSentinelsUnderNegation(t *testing.T) {
	f, err := ParseFilter(`not(gte("ibu", 30))`, beerSchema())
	require.NoError(t, err)
	g := GuardSentinels(f, beerSchema())
	assert.Equal(t, `not(or(gte("ibu", 30), eq("ibu", -1)))`, g.String())

	assert.False(t, g.Match(map[string]any{"ibu": -1.0}))
	assert.True(t, g.Match(map[string]any{"ibu": 20.0}))
	assert.False(t, g.Match(map[string]any{"ibu": 40.0}))
}

func TestGuardSentinelsLeavesEquality(t *testing.T) {
	f, err := ParseFilter(`eq("srm", 5)`, beerSchema())
	require.NoError(t, err)
	assert.Equal(t, `eq("srm", 5)`, GuardSentinels(f, beerSchema()).String())
	assert.Nil(t, GuardSentinels(nil, beerSchema()))
}

func TestExtractJSON(t *testing.T) {
	for _, in := range []string{
		"```json\n{\"query\": \"x\", \"filter\": \"NO_FILTER\"}\n```",
		"{\"query\": \"x\", \"filter\": \"NO_FILTER\"}",
		"Sure! {\"query\": \"x\", \"filter\": \"NO_FILTER\"} hope that helps",
	} {
		raw, err := extractJSON(in)
		require.NoError(t, err, in)
		assert.Contains(t, raw, `"query"`)
	}
	_, err := extractJSON("no json here")
	assert.Error(t, err)
}

func TestConstructLowABV(t *testing.T) {
	cm := &scriptedModel{reply: "```json\n{\n    \"query\": \"beer\",\n    \"filter\": \"lt(\\\"abv\\\", 4)\"\n}\n```"}
	c, err := NewConstructor(cm, DocumentContentDescription, BeerAttributes)
	require.NoError(t, err)

	sq, err := c.Construct(context.Background(), "Which beers have ABV under 4?")
	require.NoError(t, err)
	assert.Equal(t, "beer", sq.Query)
	assert.Equal(t, `and(lt("abv", 4), ne("abv", -1))`, sq.FilterString())

	require.NotEmpty(t, cm.prompts)
	last := cm.prompts[len(cm.prompts)-1]
	assert.Contains(t, last, "Which beers have ABV under 4?")
	assert.Contains(t, last, "The value is set to -1 if the ABV is not available.")
	assert.Contains(t, last, `"content": "Description of a beer"`)
}

func TestConstructEmptyQueryFallsBack(t *testing.T) {
	cm := &scriptedModel{reply: `{"query": " ", "filter": "NO_FILTER"}`}
	c, err := NewConstructor(cm, DocumentContentDescription, BeerAttributes)
	require.NoError(t, err)

	sq, err := c.Construct(context.Background(), "Tell me about porters")
	require.NoError(t, err)
	assert.Equal(t, "Tell me about porters", sq.Query)
	assert.Nil(t, sq.Filter)
	assert.Equal(t, NoFilter, sq.FilterString())
}

func TestConstructErrors(t *testing.T) {
	_, err := NewConstructor(nil, DocumentContentDescription, BeerAttributes)
	assert.Error(t, err)

	cases := []*scriptedModel{
		{err: errors.New("quota")},
		{reply: "I cannot help with that"},
		{reply: `{"query": "x", "filter": "lt(\"color\", 3)"}`},
	}
	for _, cm := range cases {
		c, err := NewConstructor(cm, DocumentContentDescription, BeerAttributes)
		require.NoError(t, err)
		_, err = c.Construct(context.Background(), "anything")
		assert.Error(t, err)
	}
}

func TestRetrieverAppliesGuardedFilter(t *testing.T) {
	docs := []*schema.Document{
		{ID: "unknown", Content: "Mystery ale", MetaData: map[string]any{"abv": -1.0}},
		{ID: "light", Content: "Table beer", MetaData: map[string]any{"abv": 3.5}},
		{ID: "strong", Content: "Barleywine", MetaData: map[string]any{"abv": 11.0}},
	}
	vectors := [][]float64{{1, 0}, {1, 0}, {1, 0}}
	store, err := vectorstore.New(flatEmbedder{}, docs, vectors)
	require.NoError(t, err)

	cm := &scriptedModel{reply: `{"query": "beer", "filter": "lt(\"abv\", 4)"}`}
	c, err := NewConstructor(cm, DocumentContentDescription, BeerAttributes)
	require.NoError(t, err)

	got, err := NewRetriever(c, store, 4).Retrieve(context.Background(), "Which beers have ABV under 4?")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "light", got[0].ID)
}

func TestRetrieverWithoutFilter(t *testing.T) {
	docs := []*schema.Document{
		{ID: "a", Content: "one", MetaData: map[string]any{"abv": 5.0}},
		{ID: "b", Content: "two", MetaData: map[string]any{"abv": -1.0}},
	}
	store, err := vectorstore.New(flatEmbedder{}, docs, [][]float64{{1, 0}, {1, 0}})
	require.NoError(t, err)

	cm := &scriptedModel{reply: `{"query": "anything", "filter": "NO_FILTER"}`}
	c, err := NewConstructor(cm, DocumentContentDescription, BeerAttributes)
	require.NoError(t, err)

	got, err := NewRetriever(c, store, 0).Retrieve(context.Background(), "anything")
	require.NoError(t, err)
	ids := make([]string, len(got))
	for i, d := range got {
		ids[i] = d.ID
	}
	assert.Equal(t, "a,b", strings.Join(ids, ","))
}
