package tools

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wisp-agent/wisp/internal/types"
)

// EscalateName is the sentinel tool. The orchestrator intercepts calls to
// it before dispatch; the executor below only runs if that interception is
// broken, and refuses.
const EscalateName = "escalate"

// State keys the update_state tool accepts
var stateKeys = map[string]bool{
	"energy":                true,
	"social_debt":           true,
	"task_pressure":         true,
	"curiosity":             true,
	"acquaintance_pressure": true,
	"thought_pressure":      true,
}

// Deps are the read-only lookups some built-ins need. All optional; a
// missing dep turns the tool's output into a polite empty answer.
type Deps struct {
	DefaultChannel string
	Recipient      string
	RecentMessages func(n int) []string // formatted "author: text" lines
	AgendaItems    func() []string      // formatted open agenda lines
}

// Builtins returns the full built-in tool set
func Builtins(deps Deps) []Tool {
	return []Tool{
		sendMessage(deps),
		recordThought(),
		updateState(),
		scheduleEvent(),
		cancelEvent(),
		recallRecent(deps),
		reviewAgenda(deps),
		escalate(),
	}
}

func sendMessage(deps Deps) Tool {
	return New("send_message",
		"Send a chat message to the user. Use for anything you want the user to read before your final response.",
		objectSchema(map[string]any{
			"message":    map[string]any{"type": "string", "description": "The message text"},
			"channel_id": map[string]any{"type": "string", "description": "Target channel; defaults to the active conversation"},
		}, "message"),
		func(args map[string]any) Result {
			message, ok := args["message"].(string)
			if !ok || strings.TrimSpace(message) == "" {
				return Failure("message is required")
			}
			channelID, _ := args["channel_id"].(string)
			if channelID == "" {
				channelID = deps.DefaultChannel
			}
			if channelID == "" {
				return Failure("no channel available")
			}
			return Result{
				OK:   true,
				Text: "message queued for delivery",
				Intents: []types.Intent{{
					Kind:      types.IntentSendMessage,
					ChannelID: channelID,
					Recipient: deps.Recipient,
					Message:   message,
				}},
			}
		})
}

func recordThought() Tool {
	return New("record_thought",
		"Record an internal thought to revisit later. Not visible to the user.",
		objectSchema(map[string]any{
			"thought": map[string]any{"type": "string", "description": "The thought to keep"},
		}, "thought"),
		func(args map[string]any) Result {
			thought, ok := args["thought"].(string)
			if !ok || strings.TrimSpace(thought) == "" {
				return Failure("thought is required")
			}
			return Result{
				OK:      true,
				Text:    "thought recorded",
				Thought: thought,
				Intents: []types.Intent{{Kind: types.IntentLog, Note: "thought: " + thought}},
			}
		})
}

func updateState() Tool {
	return New("update_state",
		"Adjust one internal drive by a delta in [-1,1]. Valid keys: energy, social_debt, task_pressure, curiosity, acquaintance_pressure, thought_pressure.",
		objectSchema(map[string]any{
			"key":   map[string]any{"type": "string", "description": "Drive to adjust"},
			"delta": map[string]any{"type": "number", "description": "Signed adjustment, clamped to [-1,1]"},
		}, "key", "delta"),
		func(args map[string]any) Result {
			key, _ := args["key"].(string)
			if !stateKeys[key] {
				return Failure(fmt.Sprintf("unknown state key %q", key))
			}
			delta, ok := args["delta"].(float64)
			if !ok {
				return Failure("delta must be a number")
			}
			if delta < -1 || delta > 1 {
				return Failure("delta out of range [-1,1]")
			}
			return Result{
				OK:      true,
				Text:    fmt.Sprintf("%s adjusted by %+.2f", key, delta),
				Intents: []types.Intent{{Kind: types.IntentUpdateState, StateKey: key, Delta: delta}},
			}
		})
}

func scheduleEvent() Tool {
	return New("schedule_event",
		"Schedule a follow-up event to fire after a delay, e.g. to check back on something.",
		objectSchema(map[string]any{
			"event":      map[string]any{"type": "string", "description": "What should happen"},
			"in_minutes": map[string]any{"type": "number", "description": "Minutes from now"},
		}, "event", "in_minutes"),
		func(args map[string]any) Result {
			event, _ := args["event"].(string)
			if strings.TrimSpace(event) == "" {
				return Failure("event is required")
			}
			minutes, ok := args["in_minutes"].(float64)
			if !ok || minutes <= 0 {
				return Failure("in_minutes must be a positive number")
			}
			id := uuid.NewString()
			at := time.Now().Add(time.Duration(minutes * float64(time.Minute)))
			return Result{
				OK:   true,
				Text: fmt.Sprintf("event %s scheduled for %s", id, at.Format(time.RFC3339)),
				Intents: []types.Intent{{
					Kind:    types.IntentScheduleEvent,
					EventID: id,
					Event:   event,
					At:      at,
				}},
			}
		})
}

func cancelEvent() Tool {
	return New("cancel_event",
		"Cancel a previously scheduled event by id.",
		objectSchema(map[string]any{
			"event_id": map[string]any{"type": "string", "description": "Id returned by schedule_event"},
		}, "event_id"),
		func(args map[string]any) Result {
			id, _ := args["event_id"].(string)
			if id == "" {
				return Failure("event_id is required")
			}
			return Result{
				OK:      true,
				Text:    "event " + id + " cancelled",
				Intents: []types.Intent{{Kind: types.IntentCancelEvent, EventID: id}},
			}
		})
}

func recallRecent(deps Deps) Tool {
	return New("recall_recent",
		"Recall the most recent conversation messages.",
		objectSchema(map[string]any{
			"count": map[string]any{"type": "number", "description": "How many messages, default 10"},
		}),
		func(args map[string]any) Result {
			n := 10
			if c, ok := args["count"].(float64); ok && c > 0 {
				n = int(c)
			}
			if deps.RecentMessages == nil {
				return Result{OK: true, Text: "no conversation history available"}
			}
			lines := deps.RecentMessages(n)
			if len(lines) == 0 {
				return Result{OK: true, Text: "no recent messages"}
			}
			return Result{OK: true, Text: strings.Join(lines, "\n")}
		})
}

func reviewAgenda(deps Deps) Tool {
	return New("review_agenda",
		"List the currently scheduled follow-ups and reminders.",
		objectSchema(map[string]any{}),
		func(args map[string]any) Result {
			if deps.AgendaItems == nil {
				return Result{OK: true, Text: "agenda unavailable"}
			}
			items := deps.AgendaItems()
			if len(items) == 0 {
				return Result{OK: true, Text: "agenda is empty"}
			}
			return Result{OK: true, Text: strings.Join(items, "\n")}
		})
}

func escalate() Tool {
	return New(EscalateName,
		"Escalate this session to the higher-capability model when the task needs deeper reasoning than you can provide. Explain why.",
		objectSchema(map[string]any{
			"reason": map[string]any{"type": "string", "description": "Why escalation is needed"},
		}, "reason"),
		func(args map[string]any) Result {
			// Interception happens upstream; reaching this executor means
			// the orchestrator's dispatch guard is broken.
			return Failure("escalate must be intercepted by the orchestrator, not executed")
		})
}
