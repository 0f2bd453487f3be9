package graph

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyber-bartender/server/internal/agent/graph/conversations"
	"github.com/cyber-bartender/server/internal/agent/graph/nodes"
	"github.com/cyber-bartender/server/internal/agent/graph/tools"
	"github.com/cyber-bartender/server/internal/agent/model"
	"github.com/cyber-bartender/server/internal/agent/repo"
	errx "github.com/cyber-bartender/server/internal/core/error"
	"github.com/cyber-bartender/server/pkg/cocktaildb"
)

const (
	callCocktail = "Thought: Do I need to use a tool? Yes\nAction: Cocktail Recipe Finder\nAction Input: Margarita"
	callBeer     = "Thought: Do I need to use a tool? Yes\nAction: Beer Search\nAction Input: Which beers are Porter beers?"
)

func finalReply(answer string) string {
	return "Thought: Do I need to use a tool? No\nAI: " + answer
}

// scriptedModel replays canned replies and records every prompt it receives.
// The last reply repeats once the script runs out.
type scriptedModel struct {
	mu      sync.Mutex
	replies []string
	prompts [][]*schema.Message
	stops   [][]string
	delay   time.Duration
}

func (m *scriptedModel) Generate(ctx context.Context, in []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, in)
	m.stops = append(m.stops, einomodel.GetCommonOptions(nil, opts...).Stop)
	i := len(m.prompts) - 1
	m.mu.Unlock()

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if i >= len(m.replies) {
		i = len(m.replies) - 1
	}
	msg := schema.AssistantMessage(m.replies[i], nil)
	msg.ResponseMeta = &schema.ResponseMeta{
		Usage: &schema.TokenUsage{PromptTokens: 200, CompletionTokens: 20, TotalTokens: 220},
	}
	return msg, nil
}

func (m *scriptedModel) Stream(ctx context.Context, in []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	out, err := m.Generate(ctx, in, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{out}), nil
}

func (m *scriptedModel) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

func (m *scriptedModel) prompt(i int) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prompts[i][0].Content
}

type countingAnswerer struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (a *countingAnswerer) Answer(_ context.Context, q string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, q)
	if a.err != nil {
		return "", a.err
	}
	return "Porters: Black Butte Porter, Founders Porter", nil
}

func (a *countingAnswerer) questions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.calls...)
}

type staticSummarizer struct{}

func (staticSummarizer) Summarize(_ context.Context, summary, _ string) (string, error) {
	return summary, nil
}

type fixture struct {
	runner  *Runner
	model   *scriptedModel
	beers   *countingAnswerer
	recipes *atomic.Int32
	repo    *repo.InMemoryConversationRepository
}

func newFixture(t *testing.T, m *scriptedModel, beers *countingAnswerer, loop model.AgentLoopConfig) *fixture {
	t.Helper()

	recipeCalls := &atomic.Int32{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recipeCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("s") != "Margarita" {
			_, _ = w.Write([]byte(`{"drinks": null}`))
			return
		}
		_, _ = w.Write([]byte(`{"drinks":[{"strDrink":"Margarita","strInstructions":"Shake with ice.",` +
			`"strIngredient1":"Tequila","strMeasure1":"1 1/2 oz ","strIngredient2":"Lime juice","strMeasure2":"1/2 oz"}]}`))
	}))
	t.Cleanup(srv.Close)

	ctx := context.Background()
	registry, err := tools.NewRegistry(ctx, tools.GetAgentTools(beers, cocktaildb.NewClient(cocktaildb.Config{URL: srv.URL}, srv.Client()))...)
	require.NoError(t, err)

	r := repo.NewInMemoryConversationRepository()
	mm := conversations.NewMessagesManager(r, staticSummarizer{}, model.MemoryConfig{MaxTokens: 4096})

	runner, err := NewRunner(ctx, &GraphConfig{
		ChatModel:       m,
		ModelName:       "gemini-2.5-flash",
		MessagesManager: mm,
		Registry:        registry,
		Loop:            loop,
	})
	require.NoError(t, err)

	return &fixture{runner: runner, model: m, beers: beers, recipes: recipeCalls, repo: r}
}

func defaultLoop() model.AgentLoopConfig {
	return model.AgentLoopConfig{MaxIterations: 5, MaxParseRetries: 1, TurnTimeout: 5 * time.Second, ToolTimeout: time.Second}
}

func turn(t *testing.T, f *fixture, query string) string {
	t.Helper()
	out, err := f.runner.Turn(context.Background(), model.QueryInput{ConversationID: "c1", Query: query})
	require.NoError(t, err)
	return out
}

func TestTurnRecipeQuestionUsesCocktailToolOnce(t *testing.T) {
	m := &scriptedModel{replies: []string{callCocktail, finalReply("Here you go: tequila, lime juice, shake with ice.")}}
	f := newFixture(t, m, &countingAnswerer{}, defaultLoop())

	out := turn(t, f, "How do I make a Margarita?")
	assert.Equal(t, "Here you go: tequila, lime juice, shake with ice.", out)

	assert.Equal(t, 2, m.calls())
	assert.Equal(t, int32(1), f.recipes.Load())
	assert.Empty(t, f.beers.questions())

	second := m.prompt(1)
	// one in the format instructions, one tool result
	assert.Equal(t, 2, strings.Count(second, "\nObservation: "))
	assert.Equal(t, 1, strings.Count(second, "Observation: Name: Margarita"))
	assert.Contains(t, second, "- Tequila: 1 1/2 oz\n- Lime juice: 1/2 oz")
	assert.True(t, strings.HasSuffix(second, "\nThought: "))
	assert.NotContains(t, m.prompt(0), "Observation: Name:")
}

func TestTurnSavesTranscriptAndMemory(t *testing.T) {
	m := &scriptedModel{replies: []string{finalReply("Hi! Are you in the mood for beer or a cocktail?"), finalReply("Sure.")}}
	f := newFixture(t, m, &countingAnswerer{}, defaultLoop())
	ctx := context.Background()

	empty, err := f.runner.IsEmpty(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, empty)

	assert.Equal(t, "Hi! Are you in the mood for beer or a cocktail?", turn(t, f, "Hello"))
	turn(t, f, "Beer please")

	history, err := f.runner.History(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, schema.User, history[0].Role)
	assert.Equal(t, "Hello", history[0].Content)
	assert.Equal(t, schema.Assistant, history[1].Role)

	assert.Contains(t, m.prompt(1), "Previous conversation history:\nHuman: Hello\nAI: Hi! Are you in the mood for beer or a cocktail?\n")
	assert.Contains(t, m.prompt(1), "New input: Beer please")

	require.NoError(t, f.runner.Reset(ctx, "c1"))
	history, err = f.runner.History(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestTurnStopsAtIterationBound(t *testing.T) {
	loop := defaultLoop()
	loop.MaxIterations = 2
	m := &scriptedModel{replies: []string{callBeer}}
	beers := &countingAnswerer{}
	f := newFixture(t, m, beers, loop)

	out := turn(t, f, "Porters?")
	assert.Equal(t, nodes.LoopBoundMessage, out)
	assert.Len(t, beers.questions(), 2)
	assert.Equal(t, 3, m.calls())

	history, err := f.runner.History(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, nodes.LoopBoundMessage, history[1].Content)
}

func TestTurnParseFailureRetriesOnceThenApologizes(t *testing.T) {
	m := &scriptedModel{replies: []string{"I think you would like a stout.", "Still no format."}}
	f := newFixture(t, m, &countingAnswerer{}, defaultLoop())

	out := turn(t, f, "Recommend something")
	assert.Equal(t, nodes.ParseFailureMessage, out)
	assert.Equal(t, 2, m.calls())

	m.mu.Lock()
	retry := m.prompts[1]
	m.mu.Unlock()
	require.Len(t, retry, 3)
	assert.Equal(t, schema.Assistant, retry[1].Role)
	assert.Equal(t, "I think you would like a stout.", retry[1].Content)
	assert.Contains(t, retry[2].Content, "could not be parsed")
}

func TestTurnParseFailureRecoversAfterCorrection(t *testing.T) {
	m := &scriptedModel{replies: []string{"I think you would like a stout.", finalReply("Try an oatmeal stout.")}}
	f := newFixture(t, m, &countingAnswerer{}, defaultLoop())

	assert.Equal(t, "Try an oatmeal stout.", turn(t, f, "Recommend something"))
}

func TestTurnUnknownToolIsNeverDispatched(t *testing.T) {
	unknown := "Thought: Do I need to use a tool? Yes\nAction: Wine Search\nAction Input: merlot"
	m := &scriptedModel{replies: []string{unknown, finalReply("I only know beer and cocktails.")}}
	beers := &countingAnswerer{}
	f := newFixture(t, m, beers, defaultLoop())

	assert.Equal(t, "I only know beer and cocktails.", turn(t, f, "Any merlot?"))
	assert.Empty(t, beers.questions())
	assert.Zero(t, f.recipes.Load())

	m.mu.Lock()
	retry := m.prompts[1]
	m.mu.Unlock()
	require.Len(t, retry, 3)
	assert.Contains(t, retry[2].Content, "unknown tool")
	assert.Contains(t, retry[2].Content, "Wine Search")
}

func TestTurnToolFailureBecomesObservation(t *testing.T) {
	m := &scriptedModel{replies: []string{callBeer, finalReply("Sorry, the beer list is unavailable right now.")}}
	f := newFixture(t, m, &countingAnswerer{err: errors.New("index offline")}, defaultLoop())

	assert.Equal(t, "Sorry, the beer list is unavailable right now.", turn(t, f, "Porters?"))
	assert.Contains(t, m.prompt(1), `Observation: Tool "Beer Search" failed: index offline`)
}

type panickingAnswerer struct{}

func (panickingAnswerer) Answer(context.Context, string) (string, error) {
	panic("index nil")
}

func TestTurnToolPanicBecomesObservation(t *testing.T) {
	m := &scriptedModel{replies: []string{callBeer, finalReply("ok")}}
	f := newFixture(t, m, &countingAnswerer{}, defaultLoop())

	registry, err := tools.NewRegistry(context.Background(), tools.BeerSearch(panickingAnswerer{}))
	require.NoError(t, err)
	mm := conversations.NewMessagesManager(f.repo, staticSummarizer{}, model.MemoryConfig{})
	runner, err := NewRunner(context.Background(), &GraphConfig{
		ChatModel:       m,
		ModelName:       "gemini-2.5-flash",
		MessagesManager: mm,
		Registry:        registry,
		Loop:            defaultLoop(),
	})
	require.NoError(t, err)

	out, err := runner.Turn(context.Background(), model.QueryInput{ConversationID: "c1", Query: "Porters?"})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 2, m.calls())
	assert.Contains(t, m.prompt(1), `Observation: Tool "Beer Search" failed: panic: index nil`)

	history, err := runner.History(context.Background(), "c1")
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestTurnTimeoutLeavesMemoryUntouched(t *testing.T) {
	loop := defaultLoop()
	loop.TurnTimeout = 50 * time.Millisecond
	m := &scriptedModel{replies: []string{finalReply("too late")}, delay: time.Second}
	f := newFixture(t, m, &countingAnswerer{}, loop)
	ctx := context.Background()

	_, err := f.runner.Turn(ctx, model.QueryInput{ConversationID: "c1", Query: "Hello"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errx.ErrTurnTimeout))

	n, err := f.repo.GetMessageCount(ctx, "c1")
	require.NoError(t, err)
	assert.Zero(t, n)
	mem, err := f.repo.LoadMemory(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, mem.Buffer)
}

func TestTurnPassesObservationStop(t *testing.T) {
	m := &scriptedModel{replies: []string{finalReply("Cheers.")}}
	f := newFixture(t, m, &countingAnswerer{}, defaultLoop())

	turn(t, f, "Hello")
	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Equal(t, []string{nodes.ObservationStop}, m.stops[0])
}

func TestBuildGraphValidation(t *testing.T) {
	ctx := context.Background()
	_, err := BuildGraph(ctx, nil)
	assert.Error(t, err)

	_, err = BuildGraph(ctx, &GraphConfig{})
	assert.ErrorContains(t, err, "chat model")

	mm := conversations.NewMessagesManager(repo.NewInMemoryConversationRepository(), staticSummarizer{}, model.MemoryConfig{})
	_, err = BuildGraph(ctx, &GraphConfig{ChatModel: &scriptedModel{}, MessagesManager: mm})
	assert.ErrorContains(t, err, "registry")
}
