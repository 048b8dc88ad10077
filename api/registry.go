package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"gatewatch/core"
	"gatewatch/metrics"
)

// Outcome is what a tool handler produces. Count is attached to the
// response meta when non-negative.
type Outcome struct {
	Data  interface{}
	Count int
}

// HandlerFunc executes one tool call against already schema-validated
// arguments.
type HandlerFunc func(ctx context.Context, args json.RawMessage) (*Outcome, error)

// Tool is one registered tool: name, human description, JSON schema for
// its argument object, and the handler.
type Tool struct {
	Name        string
	Description string
	Schema      string
	Handler     HandlerFunc

	compiled *gojsonschema.Schema
}

// Registry holds the tool table and dispatches calls with envelope
// encoding and error mapping.
type Registry struct {
	tools  map[string]*Tool
	logger *zap.SugaredLogger
}

// NewRegistry creates an empty tool registry.
func NewRegistry(logger *zap.SugaredLogger) *Registry {
	return &Registry{
		tools:  make(map[string]*Tool),
		logger: logger,
	}
}

// Register adds a tool. The argument schema is compiled once here.
func (r *Registry) Register(tool *Tool) error {
	if tool.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if _, exists := r.tools[tool.Name]; exists {
		return fmt.Errorf("tool %s already registered", tool.Name)
	}
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(tool.Schema))
	if err != nil {
		return fmt.Errorf("invalid schema for tool %s: %w", tool.Name, err)
	}
	tool.compiled = compiled
	r.tools[tool.Name] = tool
	return nil
}

// List returns the registered tools sorted by name.
func (r *Registry) List() []*Tool {
	out := make([]*Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Call dispatches one tool invocation. Arguments are validated against the
// tool's schema before the handler runs; handler errors are mapped to the
// stable error taxonomy.
func (r *Registry) Call(ctx context.Context, name string, args json.RawMessage) ToolResponse {
	started := time.Now()

	tool, ok := r.tools[name]
	if !ok {
		metrics.ToolRequests.WithLabelValues(name, "unknown").Inc()
		return errorResponse(name, started, "unknown_tool",
			fmt.Sprintf("unknown tool: %s", name), nil)
	}

	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	result, err := tool.compiled.Validate(gojsonschema.NewBytesLoader(args))
	if err != nil {
		metrics.ToolRequests.WithLabelValues(name, "validation_error").Inc()
		return errorResponse(name, started, "validation_error",
			"arguments are not a valid JSON object", []string{err.Error()})
	}
	if !result.Valid() {
		violations := make([]string, 0, len(result.Errors()))
		for _, resErr := range result.Errors() {
			violations = append(violations, resErr.String())
		}
		metrics.ToolRequests.WithLabelValues(name, "validation_error").Inc()
		return errorResponse(name, started, "validation_error",
			"invalid tool arguments", violations)
	}

	outcome, err := tool.Handler(ctx, args)
	if err != nil {
		errType, violations := classifyError(err)
		metrics.ToolRequests.WithLabelValues(name, errType).Inc()
		r.logger.Warnw("tool call failed",
			"tool", name,
			"error_type", errType,
			"error", err.Error(),
		)
		return errorResponse(name, started, errType, err.Error(), violations)
	}

	metrics.ToolRequests.WithLabelValues(name, "success").Inc()
	var count *int
	if outcome.Count >= 0 {
		count = &outcome.Count
	}
	return successResponse(name, started, outcome.Data, count)
}

// classifyError maps the error taxonomy to stable errorType strings.
func classifyError(err error) (string, []string) {
	var ve *core.ValidationError
	if errors.As(err, &ve) {
		return "validation_error", ve.Violations
	}
	var ae *core.APIError
	if errors.As(err, &ae) {
		return "api_error", nil
	}
	if errors.Is(err, core.ErrBudgetExhausted) || errors.Is(err, context.DeadlineExceeded) {
		return "timeout_error", nil
	}
	return "internal_error", nil
}
