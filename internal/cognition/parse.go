package cognition

import (
	"encoding/json"
	"strings"
)

// Terminal is the parsed structured final output of a session. Malformed
// means the caller should treat the session as retryable, never as
// intentional silence; an empty Response is valid and means "nothing to
// send".
type Terminal struct {
	Response  string
	Status    string // ok | defer | done, unknown values kept as-is
	Urgent    bool
	Malformed bool
	Reason    string // why parsing failed, when Malformed
}

// ParseTerminal unwraps an optional code fence and parses the terminal
// schema. Missing, null, or non-string response and truncated JSON all
// read as malformed.
func ParseTerminal(raw string) Terminal {
	text := unwrapFence(strings.TrimSpace(raw))
	if text == "" {
		return Terminal{Malformed: true, Reason: "empty terminal output"}
	}

	var payload struct {
		Response *string `json:"response"`
		Status   string  `json:"status"`
		Urgent   bool    `json:"urgent"`
	}
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return Terminal{Malformed: true, Reason: "invalid terminal JSON: " + err.Error()}
	}
	if payload.Response == nil {
		return Terminal{Malformed: true, Reason: "terminal output missing response field"}
	}
	return Terminal{
		Response: *payload.Response,
		Status:   payload.Status,
		Urgent:   payload.Urgent,
	}
}

// unwrapFence strips a surrounding markdown code fence, with or without a
// language tag. Anything else passes through untouched.
func unwrapFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	body := s[3:]
	// drop the language tag line (e.g. "json")
	if idx := strings.IndexByte(body, '\n'); idx >= 0 {
		first := strings.TrimSpace(body[:idx])
		if !strings.HasPrefix(first, "{") {
			body = body[idx+1:]
		} else {
			body = strings.TrimSpace(body)
		}
	}
	body = strings.TrimSuffix(strings.TrimSpace(body), "```")
	return strings.TrimSpace(body)
}
