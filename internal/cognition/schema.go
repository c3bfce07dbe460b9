package cognition

import (
	"encoding/json"

	"github.com/wisp-agent/wisp/internal/backend"
)

// terminalSchema is the structured-output contract for every request: a
// response string (empty = nothing to send), an optional status, and an
// urgency flag.
var terminalSchema = backend.OutputSchema{
	Name: "wisp_terminal",
	Schema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"response": map[string]any{
				"type":        "string",
				"description": "Final message to the user; empty string if there is nothing to send",
			},
			"status": map[string]any{
				"type": "string",
				"enum": []string{"ok", "defer", "done"},
			},
			"urgent": map[string]any{
				"type": "boolean",
			},
		},
		"required":             []string{"response"},
		"additionalProperties": false,
	},
}

func decodeArgs(raw string) (map[string]any, error) {
	if raw == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, err
	}
	return args, nil
}
