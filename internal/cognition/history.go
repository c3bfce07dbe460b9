package cognition

import (
	"fmt"
	"strings"
	"time"

	"github.com/wisp-agent/wisp/internal/backend"
	"github.com/wisp-agent/wisp/internal/logging"
	"github.com/wisp-agent/wisp/internal/types"
)

// buildMessages reconstructs the full request history for one iteration:
// system prompt, prior conversation, the trigger prompt, then synthetic
// assistant/tool pairs for every tool already executed so results are
// never recomputed. On an escalated attempt the retry note comes last.
func buildMessages(lc LoopContext, state *loopState, prev *previousAttempt) []backend.Message {
	msgs := []backend.Message{{Role: backend.RoleSystem, Content: systemPrompt(lc)}}
	msgs = append(msgs, lc.History...)
	msgs = append(msgs, backend.Message{Role: backend.RoleUser, Content: triggerPrompt(lc)})

	for _, et := range state.executed {
		msgs = append(msgs,
			backend.Message{Role: backend.RoleAssistant, ToolCalls: []backend.ToolCall{et.Call}},
			backend.Message{Role: backend.RoleTool, ToolCallID: et.Call.ID, Content: et.Result.Text},
		)
	}

	if prev != nil {
		msgs = append(msgs, backend.Message{Role: backend.RoleUser, Content: retryNote(prev.draft)})
	}
	return msgs
}

// dropOrphans removes tool-result messages whose reference id has no
// matching tool-call earlier in the sequence. Orphans are a structural
// defect from upstream history truncation; they are repaired locally and
// logged, never surfaced as a fatal error.
func dropOrphans(msgs []backend.Message) []backend.Message {
	seen := make(map[string]bool)
	out := msgs[:0]
	for _, m := range msgs {
		if m.Role == backend.RoleAssistant {
			for _, tc := range m.ToolCalls {
				seen[tc.ID] = true
			}
		}
		if m.Role == backend.RoleTool && !seen[m.ToolCallID] {
			logging.Warn("cognition", "dropping orphaned tool result %q (no matching tool call)", m.ToolCallID)
			continue
		}
		out = append(out, m)
	}
	return out
}

func systemPrompt(lc LoopContext) string {
	var b strings.Builder
	if lc.Identity != "" {
		b.WriteString(lc.Identity)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Current internal state: energy %.2f, social debt %.2f, task pressure %.2f, curiosity %.2f, thought pressure %.2f.\n",
		lc.State.Energy, lc.State.SocialDebt, lc.State.TaskPressure, lc.State.Curiosity, lc.State.ThoughtPressure)
	if lc.Conversation.Status != "" {
		fmt.Fprintf(&b, "Conversation is %s; last message %s ago.\n",
			lc.Conversation.Status, lc.Conversation.IdleFor.Round(time.Second))
	}
	b.WriteString("Respond with the required JSON object. An empty response string means you have nothing to send.")
	return b.String()
}

// triggerPrompt frames why this session was woken
func triggerPrompt(lc LoopContext) string {
	switch lc.Trigger {
	case types.TriggerUserMessage:
		author, _ := lc.Signal.Data["author_name"].(string)
		content, _ := lc.Signal.Data["content"].(string)
		if author == "" {
			author = "the user"
		}
		return fmt.Sprintf("%s says: %s", author, content)
	case types.TriggerThought:
		thought := signalText(lc.Signal)
		return fmt.Sprintf("An internal thought surfaced: %s\nProcess it. Decide whether anything needs doing or saying.", thought)
	case types.TriggerPatternBreak:
		pattern, _ := lc.Signal.Data["pattern"].(string)
		return fmt.Sprintf("A behavioral pattern broke: %s. Consider whether to check in with the user.", pattern)
	case types.TriggerThresholdCrossed:
		if lc.ProactiveType != "" {
			verb := "Start a conversation"
			if lc.ProactiveType == types.ProactiveFollowUp {
				verb = "Your last message went unanswered; follow up gently"
			}
			return fmt.Sprintf("%s with %s. It has been quiet for %s. Keep it light and genuine; do not manufacture urgency.",
				verb, lc.Recipient, lc.Conversation.IdleFor.Round(time.Second))
		}
		if lc.Signal != nil && lc.Signal.Type == types.SignalScheduledEvent {
			event, _ := lc.Signal.Data["event"].(string)
			return fmt.Sprintf("A scheduled event is due: %s", event)
		}
		return fmt.Sprintf("Internal pressure crossed its threshold (%s). Reflect and decide what, if anything, to do.", lc.Reason)
	}
	return "Decide what, if anything, needs doing."
}

func signalText(sig *types.Signal) string {
	if sig == nil {
		return ""
	}
	for _, key := range []string{"thought", "content", "text"} {
		if v, ok := sig.Data[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// retryNote tells the escalated attempt what the lower tier produced so it
// builds on the work instead of parroting it
func retryNote(draft string) string {
	if strings.TrimSpace(draft) == "" {
		return "The previous attempt on a smaller model could not complete this session. " +
			"Its tool results are above; continue from them and produce your own final response."
	}
	return fmt.Sprintf("The previous attempt on a smaller model escalated before finishing. Its draft response was:\n%s\n"+
		"Do not repeat this draft. Use the tool results above and produce your own, better final response.", draft)
}
