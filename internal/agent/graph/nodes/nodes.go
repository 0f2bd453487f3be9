package nodes

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/cyber-bartender/server/internal/agent/graph/conversations"
	"github.com/cyber-bartender/server/internal/agent/graph/parsers"
	"github.com/cyber-bartender/server/internal/agent/graph/prompts"
	"github.com/cyber-bartender/server/internal/agent/graph/tools"
	"github.com/cyber-bartender/server/internal/agent/model"
	errx "github.com/cyber-bartender/server/internal/core/error"
	logx "github.com/cyber-bartender/server/pkg/logger"
)

// NewInputConverterPreHandler creates the pre-handler for InputConverter node
func NewInputConverterPreHandler() func(context.Context, model.QueryInput, *model.AppState) (model.QueryInput, error) {
	return func(ctx context.Context, in model.QueryInput, s *model.AppState) (model.QueryInput, error) {
		s.ConversationID = in.ConversationID
		s.Input = in.Query
		// Reset the loop for each new query
		s.ChatHistory = ""
		s.Scratchpad = nil
		s.Iterations = 0
		s.ParseRetries = 0
		s.Correction = nil
		// Reset accumulated total cost for each new query
		s.TotalCostUSD = 0
		return in, nil
	}
}

// NewInputConverterNode loads the conversation memory and renders the first
// decision prompt of the turn.
func NewInputConverterNode(mm *conversations.MessagesManager, registry *tools.Registry) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, input model.QueryInput) ([]*schema.Message, error) {
		history, err := mm.LoadChatHistory(ctx, input.ConversationID)
		if err != nil {
			return nil, fmt.Errorf("error getting conversation context: %w", err)
		}

		err = compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
			state.ChatHistory = history
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		return renderDecisionPrompt(ctx, registry)
	})
}

// NewDecisionModelPostHandler computes and logs usage cost for the decision model.
func NewDecisionModelPostHandler(modelName string) func(context.Context, *schema.Message, *model.AppState) (*schema.Message, error) {
	return func(ctx context.Context, out *schema.Message, state *model.AppState) (*schema.Message, error) {
		if out == nil {
			return nil, fmt.Errorf("decision model returned no message")
		}
		cost, ok := model.MessageCost(modelName, out)
		if !ok {
			return out, nil
		}
		state.TotalCostUSD += cost.TotalCost

		if out.Extra == nil {
			out.Extra = map[string]any{}
		}
		out.Extra["usage_cost"] = cost
		out.Extra["usage_cost_total_usd"] = state.TotalCostUSD

		logx.Debug().
			Str("conversation_id", state.ConversationID).
			Str("node", NodeDecisionModel).
			Str("model", modelName).
			Int("iteration", state.Iterations).
			Int("prompt_tokens", cost.PromptTokens).
			Int("completion_tokens", cost.CompletionTokens).
			Int("total_tokens", cost.TotalTokens).
			Float64("total_cost_usd", cost.TotalCost).
			Float64("turn_cost_usd", state.TotalCostUSD).
			Msg("LLM usage")
		return out, nil
	}
}

// NewDecisionParserNode turns the model response into a Decision. Format
// errors and unknown tool names become DecisionParseFailure.
func NewDecisionParserNode(registry *tools.Registry) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, resp *schema.Message) (model.Decision, error) {
		d, err := parsers.ParseDecision(resp.Content)
		if err != nil {
			return model.DecisionParseFailure{Reason: err.Error(), Response: resp.Content}, nil
		}
		if call, ok := d.(model.DecisionTool); ok {
			if _, known := registry.Lookup(call.Tool); !known {
				reason := fmt.Errorf("%w: %q is not one of [%s]", errx.ErrUnknownTool, call.Tool, strings.Join(registry.Names(), ", "))
				return model.DecisionParseFailure{Reason: reason.Error(), Response: resp.Content}, nil
			}
		}
		return d, nil
	})
}

// NewDecisionParserPostHandler clears a pending correction once the model
// answers in format again.
func NewDecisionParserPostHandler() func(context.Context, model.Decision, *model.AppState) (model.Decision, error) {
	return func(ctx context.Context, out model.Decision, state *model.AppState) (model.Decision, error) {
		switch d := out.(type) {
		case model.DecisionParseFailure:
			logx.Warn().
				Str("conversation_id", state.ConversationID).
				Str("reason", d.Reason).
				Int("parse_retries", state.ParseRetries).
				Msg("Decision parse failure")
		case model.DecisionTool:
			state.Correction = nil
			logx.Debug().
				Str("conversation_id", state.ConversationID).
				Str("tool", d.Tool).
				Str("input", d.Input).
				Int("iteration", state.Iterations).
				Msg("Tool requested")
		case model.DecisionFinal:
			state.Correction = nil
			logx.Debug().Str("conversation_id", state.ConversationID).Msg("Final answer ready")
		}
		return out, nil
	}
}

// NewDecisionCondition routes a decision to the dispatcher, the corrector or
// the finalizer, enforcing the iteration and retry bounds.
func NewDecisionCondition(loop model.AgentLoopConfig) func(context.Context, model.Decision) (string, error) {
	maxIterations := normalizeMaxIterations(loop.MaxIterations)
	maxRetries := normalizeMaxParseRetries(loop.MaxParseRetries)

	return func(ctx context.Context, d model.Decision) (string, error) {
		var iterations, retries int
		err := compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
			iterations = state.Iterations
			retries = state.ParseRetries
			return nil
		})
		if err != nil {
			return "", fmt.Errorf("failed to access state: %w", err)
		}

		switch d.(type) {
		case model.DecisionTool:
			if iterations >= maxIterations {
				logx.Warn().Int("iterations", iterations).Msg("Iteration limit reached - routing to finalizer")
				return NodeFinalizer, nil
			}
			return NodeToolDispatcher, nil
		case model.DecisionParseFailure:
			if retries < maxRetries {
				return NodeCorrector, nil
			}
			return NodeFinalizer, nil
		case model.DecisionFinal:
			return NodeFinalizer, nil
		}
		return "", fmt.Errorf("unexpected decision %T", d)
	}
}

// NewToolDispatcherNode invokes the requested tool, records the observation
// and renders the next decision prompt. A failing tool becomes an observation;
// only an expired turn aborts.
func NewToolDispatcherNode(registry *tools.Registry, toolTimeout time.Duration) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, d model.Decision) ([]*schema.Message, error) {
		call, ok := d.(model.DecisionTool)
		if !ok {
			return nil, fmt.Errorf("tool dispatcher got %T", d)
		}

		tctx := ctx
		if toolTimeout > 0 {
			var cancel context.CancelFunc
			tctx, cancel = context.WithTimeout(ctx, toolTimeout)
			defer cancel()
		}

		start := time.Now()
		observation, err := registry.Invoke(tctx, call.Tool, call.Input)
		if ctx.Err() != nil {
			return nil, errx.TurnTimeout(ctx.Err())
		}
		failed := err != nil
		if failed {
			observation = tools.FailureObservation(call.Tool, err)
		}

		err = compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
			state.Iterations++
			state.Scratchpad = append(state.Scratchpad, model.ScratchpadStep{
				Tool:        call.Tool,
				Input:       call.Input,
				Log:         call.Log,
				Observation: observation,
			})
			logx.Debug().
				Str("conversation_id", state.ConversationID).
				Str("tool", call.Tool).
				Int("iteration", state.Iterations).
				Bool("failed", failed).
				Dur("elapsed", time.Since(start)).
				Msg("Tool observation recorded")
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		return renderDecisionPrompt(ctx, registry)
	})
}

// NewCorrectorNode re-prompts once with an instruction to restate the
// response in the decision format.
func NewCorrectorNode(registry *tools.Registry) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, d model.Decision) ([]*schema.Message, error) {
		failure, ok := d.(model.DecisionParseFailure)
		if !ok {
			return nil, fmt.Errorf("corrector got %T", d)
		}
		err := compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
			state.ParseRetries++
			state.Correction = &model.Correction{Response: failure.Response, Reason: failure.Reason}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}
		return renderDecisionPrompt(ctx, registry)
	})
}

// NewFinalizerNode picks the user-visible answer and records the turn.
func NewFinalizerNode(mm *conversations.MessagesManager) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, d model.Decision) (string, error) {
		answer := finalAnswer(d)

		var conversationID, input string
		var cost float64
		err := compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
			conversationID = state.ConversationID
			input = state.Input
			cost = state.TotalCostUSD
			return nil
		})
		if err != nil {
			return "", fmt.Errorf("failed to access state: %w", err)
		}

		if err := mm.SaveTurn(ctx, conversationID, input, answer); err != nil {
			logx.Error().Err(err).Str("conversation_id", conversationID).Msg("Error saving turn")
			return "", fmt.Errorf("save turn: %w", err)
		}

		logx.Debug().
			Str("conversation_id", conversationID).
			Str("outcome", fmt.Sprintf("%T", d)).
			Float64("turn_cost_usd", cost).
			Msg("Turn finished")
		return answer, nil
	})
}

func finalAnswer(d model.Decision) string {
	switch v := d.(type) {
	case model.DecisionFinal:
		return v.Answer
	case model.DecisionTool:
		// routed here only when the iteration limit was hit
		logx.Warn().Err(errx.ErrLoopBound).Str("tool", v.Tool).Msg("Agent loop bound exceeded")
		return LoopBoundMessage
	default:
		return ParseFailureMessage
	}
}

func renderDecisionPrompt(ctx context.Context, registry *tools.Registry) ([]*schema.Message, error) {
	var in prompts.AgentPromptInput
	err := compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
		in = prompts.AgentPromptInput{
			Tools:       registry.Describe(),
			ToolNames:   strings.Join(registry.Names(), ", "),
			ChatHistory: state.ChatHistory,
			Input:       state.Input,
			Scratchpad:  append([]model.ScratchpadStep(nil), state.Scratchpad...),
			Correction:  state.Correction,
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access state: %w", err)
	}
	return prompts.RenderAgent(ctx, in)
}
