// Package backend defines the reasoning-service boundary: ordered messages
// plus tool schemas in, text or tool calls out. The cognition loop only
// sees this interface; the openai adapter is one implementation.
package backend

import (
	"context"
	"strings"
)

// Role of a message in the running history
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is one function invocation requested by the model
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // raw JSON
}

// Message is one entry in the ordered request history. Assistant messages
// may carry tool calls; tool messages must reference the call they answer.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolSchema describes one callable tool to the model
type ToolSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// OutputSchema forces structured terminal output
type OutputSchema struct {
	Name   string         `json:"name"`
	Schema map[string]any `json:"schema"`
}

// ToolChoice controls whether the model may call tools this round
type ToolChoice string

const (
	ToolChoiceAuto ToolChoice = "auto"
	ToolChoiceNone ToolChoice = "none" // force a final response
)

// Request is one round against the reasoning service. Parallel tool calls
// are always disabled by the adapter; ordering stays deterministic.
type Request struct {
	Messages   []Message
	Tools      []ToolSchema
	Output     *OutputSchema
	ToolChoice ToolChoice
}

// FinishReason reports why the model stopped
type FinishReason string

const (
	FinishStop      FinishReason = "stop"
	FinishToolCalls FinishReason = "tool_calls"
	FinishLength    FinishReason = "length"
	FinishError     FinishReason = "error"
)

// Response is the model's answer to one request
type Response struct {
	Text         string
	ToolCalls    []ToolCall
	FinishReason FinishReason
}

// Backend is an opaque tool-calling reasoning service
type Backend interface {
	Complete(ctx context.Context, req Request) (Response, error)
	Model() string
}

// IsTransient reports whether a backend error is worth retrying. Network
// hiccups and server-side 5xx are; auth and bad-request errors are not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())

	if strings.Contains(msg, "context deadline exceeded") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "timeout") {
		return true
	}

	if strings.Contains(msg, "500 internal") ||
		strings.Contains(msg, "502 bad gateway") ||
		strings.Contains(msg, "503 service unavailable") ||
		strings.Contains(msg, "429") ||
		strings.Contains(msg, "overloaded") {
		return true
	}

	return false
}
