package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	einocb "github.com/cloudwego/eino/callbacks"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/cyber-bartender/server/internal/agent/graph/conversations"
	"github.com/cyber-bartender/server/internal/agent/graph/nodes"
	"github.com/cyber-bartender/server/internal/agent/graph/observers"
	"github.com/cyber-bartender/server/internal/agent/graph/tools"
	"github.com/cyber-bartender/server/internal/agent/model"
	errx "github.com/cyber-bartender/server/internal/core/error"
	logx "github.com/cyber-bartender/server/pkg/logger"
)

// GraphConfig holds all configuration needed to build the graph
type GraphConfig struct {
	ChatModel       einomodel.BaseChatModel
	ModelName       string
	MessagesManager *conversations.MessagesManager
	Registry        *tools.Registry
	Loop            model.AgentLoopConfig
}

// GraphBuilder handles the construction of the agent conversation graph
type GraphBuilder struct {
	config *GraphConfig
	graph  *compose.Graph[model.QueryInput, string]
}

// Runner executes one conversation turn at a time and exposes the transcript.
type Runner struct {
	runnable    compose.Runnable[model.QueryInput, string]
	mm          *conversations.MessagesManager
	turnTimeout time.Duration
	handlers    []einocb.Handler
}

// Turn resolves one user input into one answer. A turn that runs out of time
// returns an error wrapping errx.ErrTurnTimeout and leaves memory untouched.
func (r *Runner) Turn(ctx context.Context, in model.QueryInput) (string, error) {
	if r.turnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.turnTimeout)
		defer cancel()
	}

	start := time.Now()
	out, err := r.runnable.Invoke(ctx, in,
		compose.WithCallbacks(r.handlers...),
		compose.WithChatModelOption(einomodel.WithStop([]string{nodes.ObservationStop})),
	)
	if err != nil {
		if errors.Is(err, errx.ErrTurnTimeout) {
			return "", err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			logx.Warn().Err(err).Str("conversation_id", in.ConversationID).Msg("Turn timed out")
			return "", errx.TurnTimeout(ctxErr)
		}
		logx.Error().Err(err).Str("conversation_id", in.ConversationID).Msg("Turn failed")
		return "", fmt.Errorf("agent turn: %w", err)
	}

	logx.Info().
		Str("conversation_id", in.ConversationID).
		Dur("elapsed", time.Since(start)).
		Msg("Turn completed")
	return out, nil
}

// History returns the visible transcript of a conversation.
func (r *Runner) History(ctx context.Context, conversationID string) ([]*schema.Message, error) {
	return r.mm.History(ctx, conversationID)
}

// IsEmpty reports whether the conversation has no turns yet.
func (r *Runner) IsEmpty(ctx context.Context, conversationID string) (bool, error) {
	return r.mm.IsEmpty(ctx, conversationID)
}

// Reset clears transcript and memory of a conversation.
func (r *Runner) Reset(ctx context.Context, conversationID string) error {
	return r.mm.Reset(ctx, conversationID)
}

// NewRunner compiles the agent graph and wraps it with the turn timeout.
func NewRunner(ctx context.Context, config *GraphConfig) (*Runner, error) {
	runnable, err := BuildGraph(ctx, config)
	if err != nil {
		return nil, err
	}
	logx.Debug().Msg("Agent graph built successfully")
	return &Runner{
		runnable:    runnable,
		mm:          config.MessagesManager,
		turnTimeout: config.Loop.TurnTimeout,
		handlers:    []einocb.Handler{observers.NewAllCallbacks()},
	}, nil
}

// BuildGraph constructs and returns the compiled agent graph
func BuildGraph(ctx context.Context, config *GraphConfig) (compose.Runnable[model.QueryInput, string], error) {
	// Basic config validation
	if config == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	if config.ChatModel == nil {
		return nil, fmt.Errorf("chat model is nil")
	}
	if config.MessagesManager == nil {
		return nil, fmt.Errorf("messages manager is nil")
	}
	if config.Registry == nil || len(config.Registry.Names()) == 0 {
		return nil, fmt.Errorf("tool registry is empty")
	}

	builder := &GraphBuilder{
		config: config,
		graph: compose.NewGraph[model.QueryInput, string](
			compose.WithGenLocalState(func(ctx context.Context) *model.AppState {
				return &model.AppState{}
			}),
		),
	}

	if err := builder.addNodes(); err != nil {
		return nil, err
	}
	if err := builder.addEdges(); err != nil {
		return nil, err
	}
	if err := builder.addBranches(); err != nil {
		return nil, err
	}

	return builder.compile(ctx)
}

// addNodes adds all processing nodes to the graph
func (b *GraphBuilder) addNodes() error {
	cfg := b.config
	steps := []struct {
		name string
		add  func() error
	}{
		{nodes.NodeInputConverter, func() error {
			return b.graph.AddLambdaNode(nodes.NodeInputConverter,
				nodes.NewInputConverterNode(cfg.MessagesManager, cfg.Registry),
				compose.WithStatePreHandler(nodes.NewInputConverterPreHandler()),
			)
		}},
		{nodes.NodeDecisionModel, func() error {
			return b.graph.AddChatModelNode(nodes.NodeDecisionModel,
				cfg.ChatModel,
				compose.WithStatePostHandler(nodes.NewDecisionModelPostHandler(cfg.ModelName)),
			)
		}},
		{nodes.NodeDecisionParser, func() error {
			return b.graph.AddLambdaNode(nodes.NodeDecisionParser,
				nodes.NewDecisionParserNode(cfg.Registry),
				compose.WithStatePostHandler(nodes.NewDecisionParserPostHandler()),
			)
		}},
		{nodes.NodeToolDispatcher, func() error {
			return b.graph.AddLambdaNode(nodes.NodeToolDispatcher,
				nodes.NewToolDispatcherNode(cfg.Registry, cfg.Loop.ToolTimeout),
			)
		}},
		{nodes.NodeCorrector, func() error {
			return b.graph.AddLambdaNode(nodes.NodeCorrector, nodes.NewCorrectorNode(cfg.Registry))
		}},
		{nodes.NodeFinalizer, func() error {
			return b.graph.AddLambdaNode(nodes.NodeFinalizer, nodes.NewFinalizerNode(cfg.MessagesManager))
		}},
	}

	for _, s := range steps {
		if err := s.add(); err != nil {
			logx.Error().Err(err).Str("node", s.name).Msg("Error adding node")
			return fmt.Errorf("error adding node %s: %w", s.name, err)
		}
	}
	return nil
}

// addEdges creates the main flow connections between nodes
func (b *GraphBuilder) addEdges() error {
	edges := [][2]string{
		{compose.START, nodes.NodeInputConverter},
		{nodes.NodeInputConverter, nodes.NodeDecisionModel},
		{nodes.NodeDecisionModel, nodes.NodeDecisionParser},
		{nodes.NodeToolDispatcher, nodes.NodeDecisionModel},
		{nodes.NodeCorrector, nodes.NodeDecisionModel},
		{nodes.NodeFinalizer, compose.END},
	}

	for _, edge := range edges {
		if err := b.graph.AddEdge(edge[0], edge[1]); err != nil {
			logx.Error().Err(err).Str("from", edge[0]).Str("to", edge[1]).Msg("Error adding edge")
			return fmt.Errorf("error adding edge %s -> %s: %w", edge[0], edge[1], err)
		}
	}
	return nil
}

// addBranches creates conditional routing branches
func (b *GraphBuilder) addBranches() error {
	decisionBranch := compose.NewGraphBranch(
		nodes.NewDecisionCondition(b.config.Loop),
		map[string]bool{
			nodes.NodeToolDispatcher: true,
			nodes.NodeCorrector:      true,
			nodes.NodeFinalizer:      true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeDecisionParser, decisionBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding decision branch")
		return fmt.Errorf("error adding decision branch: %w", err)
	}
	return nil
}

// compile finalizes and compiles the graph
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[model.QueryInput, string], error) {
	maxSteps := nodes.MaxRunSteps(b.config.Loop.MaxIterations, b.config.Loop.MaxParseRetries)

	runnable, err := b.graph.Compile(ctx,
		compose.WithGraphName("CyberBartender"),
		compose.WithMaxRunSteps(maxSteps),
	)
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}

	logx.Debug().Int("max_run_steps", maxSteps).Msg("Graph compiled successfully")
	return runnable, nil
}
