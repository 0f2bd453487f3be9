package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	errx "github.com/cyber-bartender/server/internal/core/error"
	logx "github.com/cyber-bartender/server/pkg/logger"
)

// Tool is the contract every agent tool satisfies.
type Tool = tool.InvokableTool

type registered struct {
	info *schema.ToolInfo
	tool Tool
}

// Registry is the fixed, ordered set of tools the agent may call.
type Registry struct {
	tools  []registered
	byName map[string]int
}

// NewRegistry resolves tool metadata once. Names must be non-empty and unique.
func NewRegistry(ctx context.Context, tools ...Tool) (*Registry, error) {
	r := &Registry{byName: make(map[string]int, len(tools))}
	for i, t := range tools {
		if t == nil {
			return nil, fmt.Errorf("tool %d is nil", i)
		}
		info, err := t.Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("tool %d info: %w", i, err)
		}
		if info == nil || strings.TrimSpace(info.Name) == "" {
			return nil, fmt.Errorf("tool %d has no name", i)
		}
		if _, dup := r.byName[info.Name]; dup {
			return nil, fmt.Errorf("duplicate tool name %q", info.Name)
		}
		r.byName[info.Name] = len(r.tools)
		r.tools = append(r.tools, registered{info: info, tool: t})
	}
	return r, nil
}

// Lookup finds a tool by exact, case-sensitive name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	i, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	return r.tools[i].tool, true
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.tools))
	for i, t := range r.tools {
		out[i] = t.info.Name
	}
	return out
}

// Describe renders one "> name: description" line per tool.
func (r *Registry) Describe() string {
	lines := make([]string, len(r.tools))
	for i, t := range r.tools {
		lines[i] = fmt.Sprintf("> %s: %s", t.info.Name, t.info.Desc)
	}
	return strings.Join(lines, "\n")
}

// Invoke runs the named tool with a free-text input. Unknown names wrap
// errx.ErrUnknownTool; tool failures wrap errx.ErrToolInvocation.
func (r *Registry) Invoke(ctx context.Context, name, input string) (string, error) {
	t, ok := r.Lookup(name)
	if !ok {
		return "", fmt.Errorf("%w: %q", errx.ErrUnknownTool, name)
	}
	args, err := EncodeInput(input)
	if err != nil {
		return "", errx.WrapTool(name, err)
	}

	ctx = callbacks.ReuseHandlers(ctx, &callbacks.RunInfo{
		Name:      name,
		Type:      "TextTool",
		Component: components.ComponentOfTool,
	})
	ctx = callbacks.OnStart(ctx, &tool.CallbackInput{ArgumentsInJSON: args})
	out, err := runTool(ctx, t, args)
	if err != nil {
		callbacks.OnError(ctx, err)
		logx.Warn().Err(err).Str("tool", name).Msg("Tool invocation failed")
		return "", errx.WrapTool(name, err)
	}
	callbacks.OnEnd(ctx, &tool.CallbackOutput{Response: out})
	return out, nil
}

// runTool turns a panicking tool into an ordinary failure.
func runTool(ctx context.Context, t Tool, args string) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = "", fmt.Errorf("panic: %v", r)
		}
	}()
	return t.InvokableRun(ctx, args)
}

// FailureObservation is what the agent sees when a tool call fails.
func FailureObservation(name string, err error) string {
	var toolErr *errx.ToolError
	if errors.As(err, &toolErr) {
		return fmt.Sprintf("Tool %q failed: %v", toolErr.Name, toolErr.Err)
	}
	return fmt.Sprintf("Tool %q failed: %v", name, err)
}
