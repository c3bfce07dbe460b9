package backend

import (
	"context"
	"fmt"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"

	"github.com/wisp-agent/wisp/internal/logging"
)

// OpenAIClient adapts the Responses API to the Backend interface. Works
// against the hosted API or any compatible endpoint via base URL.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient builds an adapter for one model
func NewOpenAIClient(apiKey, baseURL, model string) (*OpenAIClient, error) {
	if model == "" {
		return nil, fmt.Errorf("model is required")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return &OpenAIClient{client: &client, model: model}, nil
}

func (c *OpenAIClient) Model() string {
	return c.model
}

// Complete runs one non-streaming round. Parallel tool calls are disabled
// on every request so tool execution order stays deterministic.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (Response, error) {
	params := responses.ResponseNewParams{
		Model: c.model,
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: convertMessages(req.Messages),
		},
	}
	if tools := convertTools(req.Tools); len(tools) > 0 {
		params.Tools = tools
	}

	opts := []option.RequestOption{
		option.WithJSONSet("parallel_tool_calls", false),
	}
	if req.ToolChoice == ToolChoiceNone {
		opts = append(opts, option.WithJSONSet("tool_choice", "none"))
	}
	if req.Output != nil {
		opts = append(opts, option.WithJSONSet("text.format", map[string]any{
			"type":   "json_schema",
			"name":   req.Output.Name,
			"schema": req.Output.Schema,
			"strict": true,
		}))
	}

	resp, err := c.client.Responses.New(ctx, params, opts...)
	if err != nil {
		return Response{FinishReason: FinishError}, fmt.Errorf("responses call failed: %w", err)
	}

	out := Response{Text: resp.OutputText()}
	for _, item := range resp.Output {
		if item.Type != "function_call" {
			continue
		}
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        item.CallID,
			Name:      item.Name,
			Arguments: item.Arguments,
		})
	}

	switch {
	case len(out.ToolCalls) > 0:
		out.FinishReason = FinishToolCalls
	case resp.Status == responses.ResponseStatusIncomplete:
		out.FinishReason = FinishLength
	case resp.Status == responses.ResponseStatusFailed:
		out.FinishReason = FinishError
	default:
		out.FinishReason = FinishStop
	}

	logging.Debug("backend", "%s finished %s, %d tool calls, text %q",
		c.model, out.FinishReason, len(out.ToolCalls), logging.Truncate(out.Text, 80))
	return out, nil
}

func convertMessages(messages []Message) []responses.ResponseInputItemUnionParam {
	items := make([]responses.ResponseInputItemUnionParam, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			items = append(items, responses.ResponseInputItemParamOfMessage(
				m.Content, responses.EasyInputMessageRoleSystem))
		case RoleUser:
			items = append(items, responses.ResponseInputItemParamOfMessage(
				m.Content, responses.EasyInputMessageRoleUser))
		case RoleAssistant:
			if m.Content != "" {
				items = append(items, responses.ResponseInputItemParamOfMessage(
					m.Content, responses.EasyInputMessageRoleAssistant))
			}
			for _, tc := range m.ToolCalls {
				items = append(items, responses.ResponseInputItemParamOfFunctionCall(
					tc.Arguments, tc.ID, tc.Name))
			}
		case RoleTool:
			items = append(items, responses.ResponseInputItemParamOfFunctionCallOutput(
				m.ToolCallID, m.Content))
		}
	}
	return items
}

func convertTools(tools []ToolSchema) []responses.ToolUnionParam {
	var out []responses.ToolUnionParam
	for _, t := range tools {
		out = append(out, responses.ToolUnionParam{
			OfFunction: &responses.FunctionToolParam{
				Name:        t.Name,
				Description: openai.String(t.Description),
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}
