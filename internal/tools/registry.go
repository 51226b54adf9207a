// Package tools holds the task-management tools the language model can
// invoke, and the registry that advertises and dispatches them.
package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// ErrToolNotFound is returned by Execute for a tool name that was never
// registered. This is a programming or configuration error, not user input.
var ErrToolNotFound = errors.New("tool not found")

// Handler executes one tool call. The userID comes from the authenticated
// session and is injected by the orchestrator; model-supplied arguments can
// never set it. Handlers report their outcome in the result envelope rather
// than through Go errors, so the model can read failures too.
type Handler func(ctx context.Context, userID int64, args map[string]any) map[string]any

// Registry maps tool names to handlers and their function-calling schemas.
// It is built explicitly at process start and passed by reference; there is
// no global registration.
type Registry struct {
	order    []string
	handlers map[string]Handler
	schemas  map[string]openai.Tool
}

func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
		schemas:  make(map[string]openai.Tool),
	}
}

func (r *Registry) Register(name string, handler Handler, schema openai.Tool) {
	if _, exists := r.handlers[name]; !exists {
		r.order = append(r.order, name)
	}
	r.handlers[name] = handler
	r.schemas[name] = schema
}

// Schemas returns all tool schemas in registration order, for advertisement
// to the language model.
func (r *Registry) Schemas() []openai.Tool {
	schemas := make([]openai.Tool, 0, len(r.order))
	for _, name := range r.order {
		schemas = append(schemas, r.schemas[name])
	}
	return schemas
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Execute dispatches one tool call with the server-resolved owner id.
func (r *Registry) Execute(ctx context.Context, name string, userID int64, args map[string]any) (map[string]any, error) {
	handler, ok := r.handlers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return handler(ctx, userID, args), nil
}
