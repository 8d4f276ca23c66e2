package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/drsullivan13/weather-server/internal/common"
	"github.com/drsullivan13/weather-server/internal/config"
)

// ToolHandler executes a tool with arguments that already satisfy the
// tool's input schema.
type ToolHandler func(ctx context.Context, args map[string]any) (map[string]any, error)

// ToolDefinition describes one remotely callable tool.
type ToolDefinition struct {
	Name         string
	Title        string
	Description  string
	InputSchema  Schema
	OutputSchema Schema
	Handler      ToolHandler
}

// CodedError is a tool failure with its own JSON-RPC error code.
type CodedError interface {
	error
	RPCCode() int
	RPCData() any
}

// InvalidArgumentError reports tool arguments that do not match the input
// schema.
type InvalidArgumentError struct {
	Tool   string
	Issues []string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid arguments for tool %s: %s", e.Tool, strings.Join(e.Issues, "; "))
}

func (e *InvalidArgumentError) RPCCode() int { return mcp.INVALID_PARAMS }

func (e *InvalidArgumentError) RPCData() any {
	return map[string]any{"issues": e.Issues}
}

// Registry holds the tool definitions and the MCP server that exposes them.
// Registration happens once at startup; afterwards the registry is only read.
type Registry struct {
	server *mcpserver.MCPServer
	tools  map[string]ToolDefinition
	logger *common.Logger
}

// NewRegistry creates an empty registry advertised under name and version.
func NewRegistry(name, version string, logger *common.Logger) *Registry {
	srv := mcpserver.NewMCPServer(
		name,
		version,
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithRecovery(),
		mcpserver.WithToolHandlerMiddleware(recordCodedErrors),
	)
	return &Registry{
		server: srv,
		tools:  make(map[string]ToolDefinition),
		logger: logger,
	}
}

// Register adds def to the registry. A second definition with the same name
// is rejected with a *config.ConfigurationError; the first one stays.
func (r *Registry) Register(def ToolDefinition) error {
	if def.Name == "" {
		return &config.ConfigurationError{Issues: []string{"tool name must not be empty"}}
	}
	if _, exists := r.tools[def.Name]; exists {
		return &config.ConfigurationError{Issues: []string{fmt.Sprintf("tool %q is already registered", def.Name)}}
	}
	if def.Handler == nil {
		return &config.ConfigurationError{Issues: []string{fmt.Sprintf("tool %q has no handler", def.Name)}}
	}
	if err := def.InputSchema.check(); err != nil {
		return &config.ConfigurationError{Issues: []string{fmt.Sprintf("tool %q input schema: %v", def.Name, err)}}
	}
	if err := def.OutputSchema.check(); err != nil {
		return &config.ConfigurationError{Issues: []string{fmt.Sprintf("tool %q output schema: %v", def.Name, err)}}
	}

	r.tools[def.Name] = def
	r.server.AddTool(buildTool(def), r.dispatch(def))

	r.logger.Info().Str("tool", def.Name).Msg("tool registered")
	return nil
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	return len(r.tools)
}

// Server returns the MCP server backing the registry.
func (r *Registry) Server() *mcpserver.MCPServer {
	return r.server
}

// buildTool converts a ToolDefinition into an mcp.Tool.
func buildTool(def ToolDefinition) mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(def.Description)}
	opts = append(opts, def.InputSchema.inputOptions()...)
	if def.Title != "" {
		opts = append(opts, mcp.WithTitleAnnotation(def.Title))
	}
	if len(def.OutputSchema) > 0 {
		opts = append(opts, withOutputSchema(def.OutputSchema))
	}
	return mcp.NewTool(def.Name, opts...)
}

// dispatch validates arguments, runs the handler and validates its output
// before wrapping it as text and structured content.
func (r *Registry) dispatch(def ToolDefinition) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		if issues := def.InputSchema.Validate(args); len(issues) > 0 {
			return nil, &InvalidArgumentError{Tool: def.Name, Issues: issues}
		}

		start := time.Now()
		out, err := def.Handler(ctx, args)
		duration := time.Since(start)
		if err != nil {
			var invalid *InvalidArgumentError
			if errors.As(err, &invalid) && invalid.Tool == "" {
				invalid.Tool = def.Name
			}
			r.logger.Warn().Str("tool", def.Name).Int64("duration_ms", duration.Milliseconds()).Str("error", err.Error()).Msg("tool call failed")
			return nil, err
		}

		if issues := def.OutputSchema.Validate(out); len(issues) > 0 {
			return nil, fmt.Errorf("tool %s produced invalid output: %s", def.Name, strings.Join(issues, "; "))
		}

		text, err := json.Marshal(out)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal output of tool %s: %w", def.Name, err)
		}

		r.logger.Debug().Str("tool", def.Name).Int64("duration_ms", duration.Milliseconds()).Msg("tool call completed")

		return &mcp.CallToolResult{
			Content:           []mcp.Content{mcp.NewTextContent(string(text))},
			StructuredContent: out,
		}, nil
	}
}

// recordCodedErrors remembers coded tool failures on the request's
// Transport so the response envelope can carry their code.
func recordCodedErrors(next mcpserver.ToolHandlerFunc) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result, err := next(ctx, req)
		if err != nil {
			var coded CodedError
			if errors.As(err, &coded) {
				if t, ok := TransportFromContext(ctx); ok {
					t.recordFailure(coded)
				}
			}
		}
		return result, err
	}
}

// Typed adapts a function over concrete request and response structs to a
// ToolHandler. Arguments are bound through their JSON representation.
func Typed[In, Out any](fn func(ctx context.Context, in In) (Out, error)) ToolHandler {
	return func(ctx context.Context, args map[string]any) (map[string]any, error) {
		var in In
		raw, err := json.Marshal(args)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal arguments: %w", err)
		}
		if err := json.Unmarshal(raw, &in); err != nil {
			return nil, &InvalidArgumentError{Issues: []string{err.Error()}}
		}

		out, err := fn(ctx, in)
		if err != nil {
			return nil, err
		}

		raw, err = json.Marshal(out)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal result: %w", err)
		}
		var result map[string]any
		if err := json.Unmarshal(raw, &result); err != nil {
			return nil, fmt.Errorf("result is not an object: %w", err)
		}
		return result, nil
	}
}
