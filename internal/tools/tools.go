// Package tools holds the executor contract and the built-in tool set the
// cognition loop exposes to the reasoning backend. Executors never perform
// side effects directly; they compile intents for the caller to apply.
package tools

import (
	"sort"
	"sync"

	"github.com/wisp-agent/wisp/internal/backend"
	"github.com/wisp-agent/wisp/internal/types"
)

// Result is the outcome of one tool execution. OK=false carries a
// structured failure back to the model; it never aborts the session.
type Result struct {
	OK      bool
	Text    string         // what the model sees as the tool output
	Intents []types.Intent // compiled side effects for the caller
	Thought string         // set by record_thought
}

// Failure builds a structured failure result
func Failure(msg string) Result {
	return Result{OK: false, Text: "error: " + msg}
}

// Tool is one callable exposed to the model
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any
	Execute(args map[string]any) Result
}

// Registry is the central tool inventory
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool, replacing any existing one with the same name
func (r *Registry) Register(tools ...Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range tools {
		r.tools[t.Name()] = t
	}
}

// Get retrieves a tool by name
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Schemas returns backend schemas for every registered tool not in the
// excluded set, sorted by name for stable request building
func (r *Registry) Schemas(exclude map[string]bool) []backend.ToolSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]backend.ToolSchema, 0, len(r.tools))
	for name, t := range r.tools {
		if exclude[name] {
			continue
		}
		out = append(out, backend.ToolSchema{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// funcTool wraps a plain function as a Tool
type funcTool struct {
	name        string
	description string
	parameters  map[string]any
	execute     func(args map[string]any) Result
}

func (t *funcTool) Name() string                       { return t.name }
func (t *funcTool) Description() string                { return t.description }
func (t *funcTool) Parameters() map[string]any         { return t.parameters }
func (t *funcTool) Execute(args map[string]any) Result { return t.execute(args) }

// New wraps a function as a Tool
func New(name, description string, parameters map[string]any, execute func(args map[string]any) Result) Tool {
	return &funcTool{name: name, description: description, parameters: parameters, execute: execute}
}

// objectSchema builds a JSON schema for an object with the given
// properties, marking the listed ones required
func objectSchema(properties map[string]any, required ...string) map[string]any {
	if required == nil {
		required = []string{}
	}
	return map[string]any{
		"type":                 "object",
		"properties":           properties,
		"required":             required,
		"additionalProperties": false,
	}
}
