// Package cognition runs the bounded tool-calling session behind a wake
// decision. One loop per trigger: build request, await response, execute
// tools or parse the terminal output, escalating at most once to the
// higher-capability tier. The loop compiles intents; it never applies them.
package cognition

import (
	"context"
	"time"

	"github.com/wisp-agent/wisp/internal/backend"
	"github.com/wisp-agent/wisp/internal/logging"
	"github.com/wisp-agent/wisp/internal/tools"
	"github.com/wisp-agent/wisp/internal/types"
)

// Terminal states of a loop
const (
	TerminalCompleted = "completed"
	TerminalDeferred  = "deferred"
	TerminalMalformed = "malformed"
	TerminalFailed    = "failed"
)

// Config tunes the loop bounds
type Config struct {
	MaxIterations   int           `yaml:"max_iterations"`   // request/response cycles per attempt
	RetryDelay      time.Duration `yaml:"retry_delay"`      // pause before retrying a transient backend failure
	UserBudget      int           `yaml:"user_budget"`      // tool calls for user-message sessions
	ThoughtBudget   int           `yaml:"thought_budget"`   // tool calls for thought processing
	ProactiveBudget int           `yaml:"proactive_budget"` // tool calls for proactive contact
	EventBudget     int           `yaml:"event_budget"`     // tool calls for scheduled/plugin events
	DefaultBudget   int           `yaml:"default_budget"`
}

func DefaultConfig() Config {
	return Config{
		MaxIterations:   12,
		RetryDelay:      2 * time.Second,
		UserBudget:      6,
		ThoughtBudget:   3,
		ProactiveBudget: 4,
		EventBudget:     4,
		DefaultBudget:   4,
	}
}

// budgetFor keys the tool budget by trigger type. Called exactly once per
// loop; escalation carries the budget over instead of re-keying.
func (c Config) budgetFor(lc LoopContext) int {
	switch lc.Trigger {
	case types.TriggerUserMessage:
		return c.UserBudget
	case types.TriggerThought:
		return c.ThoughtBudget
	case types.TriggerThresholdCrossed:
		if lc.ProactiveType != "" {
			return c.ProactiveBudget
		}
		if lc.Signal != nil && lc.Signal.Type == types.SignalScheduledEvent {
			return c.EventBudget
		}
		return c.ThoughtBudget
	}
	return c.DefaultBudget
}

// LoopContext is the immutable bundle assembled once per invocation
type LoopContext struct {
	SessionID     string
	Trigger       types.Trigger
	ProactiveType types.ProactiveType
	Signal        *types.Signal // the wake decision's primary trigger signal
	Reason        string        // the wake decision's reason, for prompts and audit
	State         types.AgentState
	Conversation  types.ConversationSnapshot
	History       []backend.Message // prior conversation turns
	Identity      string            // system prompt prefix
	ChannelID     string
	Recipient     string
}

// LoopResult is what the caller gets back; intents transfer ownership here
type LoopResult struct {
	Success   bool
	Terminal  string
	Response  string
	Status    string
	Urgent    bool
	Intents   []types.Intent
	Thoughts  []string
	ToolCalls int
	Escalated bool
	Model     string
	Reason    string // failure or defer explanation
}

// executedTool pairs a tool call with its result so escalated attempts can
// rebuild history without re-running anything
type executedTool struct {
	Call   backend.ToolCall
	Result tools.Result
}

// loopState is the mutable accumulator owned by one loop execution
type loopState struct {
	executed  []executedTool
	budget    int
	budgetSet bool
}

// previousAttempt carries partial work across an escalation restart
type previousAttempt struct {
	executed []executedTool
	draft    string
	budget   int
}

// Orchestrator drives loops against the tier set and tool registry
type Orchestrator struct {
	cfg      Config
	tiers    *backend.TierSet
	registry *tools.Registry
}

func New(cfg Config, tiers *backend.TierSet, registry *tools.Registry) *Orchestrator {
	def := DefaultConfig()
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = def.MaxIterations
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = def.RetryDelay
	}
	if cfg.UserBudget <= 0 {
		cfg.UserBudget = def.UserBudget
	}
	if cfg.ThoughtBudget <= 0 {
		cfg.ThoughtBudget = def.ThoughtBudget
	}
	if cfg.ProactiveBudget <= 0 {
		cfg.ProactiveBudget = def.ProactiveBudget
	}
	if cfg.EventBudget <= 0 {
		cfg.EventBudget = def.EventBudget
	}
	if cfg.DefaultBudget <= 0 {
		cfg.DefaultBudget = def.DefaultBudget
	}
	return &Orchestrator{cfg: cfg, tiers: tiers, registry: registry}
}

// Run executes one cognition loop to a terminal state. Escalation restarts
// the attempt once on the higher tier, preserving executed tool results.
func (o *Orchestrator) Run(ctx context.Context, lc LoopContext) LoopResult {
	logging.Info("cognition", "session %s waking: trigger=%s reason=%s",
		lc.SessionID, lc.Trigger, logging.Truncate(lc.Reason, 80))

	result, esc := o.attempt(ctx, lc, backend.TierStandard, nil)
	if esc == nil {
		return result
	}

	logging.Info("cognition", "session %s escalating with %d tool results preserved",
		lc.SessionID, len(esc.executed))
	result, stillEsc := o.attempt(ctx, lc, backend.TierEscalated, esc)
	if stillEsc != nil {
		// The escalate tool is filtered out on the high tier; a second
		// request cannot normally be expressed. Degrade, never fabricate.
		result = LoopResult{
			Terminal: TerminalFailed,
			Reason:   "escalation requested twice",
		}
	}
	result.Escalated = true
	return result
}

// attempt runs the state machine on one tier. A non-nil previousAttempt
// means this is the escalated restart.
func (o *Orchestrator) attempt(ctx context.Context, lc LoopContext, tier backend.Tier, prev *previousAttempt) (LoopResult, *previousAttempt) {
	state := &loopState{}
	if prev != nil {
		state.executed = append(state.executed, prev.executed...)
		state.budget = prev.budget
		state.budgetSet = true
	}
	if !state.budgetSet {
		state.budget = o.cfg.budgetFor(lc)
		state.budgetSet = true
		logging.Debug("cognition", "session %s tool budget %d (trigger %s)", lc.SessionID, state.budget, lc.Trigger)
	}

	excluded := o.excludedTools(lc, tier)

	for iter := 0; iter < o.cfg.MaxIterations; iter++ {
		forceFinal := len(state.executed) >= state.budget

		req := backend.Request{
			Messages:   dropOrphans(buildMessages(lc, state, prev)),
			Output:     &terminalSchema,
			ToolChoice: backend.ToolChoiceAuto,
		}
		if forceFinal {
			req.ToolChoice = backend.ToolChoiceNone
		} else {
			req.Tools = o.registry.Schemas(excluded)
		}

		resp, err := o.completeWithRetry(ctx, tier, req)
		if err != nil {
			return LoopResult{
				Terminal:  TerminalFailed,
				Reason:    "backend failure: " + err.Error(),
				ToolCalls: len(state.executed),
				Model:     o.tiers.Model(tier),
			}, nil
		}

		if len(resp.ToolCalls) > 0 && !forceFinal {
			if esc := o.executeCalls(lc, state, tier, resp); esc != nil {
				esc.budget = state.budget
				return LoopResult{}, esc
			}
			continue
		}

		term := ParseTerminal(resp.Text)
		if term.Malformed {
			return o.compile(lc, state, tier, LoopResult{
				Terminal: TerminalMalformed,
				Reason:   term.Reason,
			}, Terminal{}), nil
		}
		return o.compile(lc, state, tier, LoopResult{Success: true}, term), nil
	}

	// Iteration cap is the backstop behind the tool budget; running into it
	// means the model kept calling tools without converging.
	return o.compile(lc, state, tier, LoopResult{
		Success:  true,
		Terminal: TerminalDeferred,
		Reason:   "iteration limit reached without a final response",
	}, Terminal{}), nil
}

// executeCalls dispatches the requested tool calls in order. Escalate is
// intercepted before dispatch and never reaches an executor; on the high
// tier a stray escalate call is answered with a failure result instead.
func (o *Orchestrator) executeCalls(lc LoopContext, state *loopState, tier backend.Tier, resp backend.Response) *previousAttempt {
	for _, tc := range resp.ToolCalls {
		if tc.Name == tools.EscalateName {
			if tier == backend.TierStandard {
				return &previousAttempt{executed: state.executed, draft: resp.Text}
			}
			state.executed = append(state.executed, executedTool{
				Call:   tc,
				Result: tools.Failure("already running on the escalated tier"),
			})
			continue
		}
		if len(state.executed) >= state.budget {
			state.executed = append(state.executed, executedTool{
				Call:   tc,
				Result: tools.Failure("tool budget exhausted; produce your final response"),
			})
			continue
		}
		state.executed = append(state.executed, executedTool{Call: tc, Result: o.executeOne(tc)})
	}
	return nil
}

func (o *Orchestrator) executeOne(tc backend.ToolCall) tools.Result {
	tool, ok := o.registry.Get(tc.Name)
	if !ok {
		return tools.Failure("unknown tool " + tc.Name)
	}
	args, err := decodeArgs(tc.Arguments)
	if err != nil {
		return tools.Failure("malformed arguments: " + err.Error())
	}
	res := tool.Execute(args)
	logging.Debug("cognition", "tool %s ok=%v: %s", tc.Name, res.OK, logging.Truncate(res.Text, 80))
	return res
}

// excludedTools builds the cumulative filter set for this session
func (o *Orchestrator) excludedTools(lc LoopContext, tier backend.Tier) map[string]bool {
	ex := make(map[string]bool)
	if tier == backend.TierEscalated {
		ex[tools.EscalateName] = true
	}
	// Thought-processing and reaction sessions must not be able to emit
	// further thoughts; that would be a feedback loop.
	switch {
	case lc.Trigger == types.TriggerThought,
		lc.Trigger == types.TriggerPatternBreak,
		lc.Trigger == types.TriggerThresholdCrossed && lc.ProactiveType == "" && lc.Signal != nil && lc.Signal.Type == types.SignalThoughtPressure:
		ex["record_thought"] = true
	}
	// Proactive sessions drop housekeeping to bound preparation time
	if lc.ProactiveType != "" {
		ex["recall_recent"] = true
		ex["review_agenda"] = true
	}
	return ex
}

// compile assembles the LoopResult: intents and thoughts gathered from
// every executed tool, plus the message intent for a non-empty terminal
// response. Thoughts are always rebuilt from tool results, which also
// covers the escalation restart.
func (o *Orchestrator) compile(lc LoopContext, state *loopState, tier backend.Tier, res LoopResult, term Terminal) LoopResult {
	for _, et := range state.executed {
		res.Intents = append(res.Intents, et.Result.Intents...)
		if et.Result.Thought != "" {
			res.Thoughts = append(res.Thoughts, et.Result.Thought)
		}
	}
	res.ToolCalls = len(state.executed)
	res.Model = o.tiers.Model(tier)

	if res.Terminal == "" {
		res.Terminal = TerminalCompleted
		if term.Status == "defer" {
			res.Terminal = TerminalDeferred
		}
	}
	res.Response = term.Response
	res.Status = term.Status
	res.Urgent = term.Urgent

	if res.Terminal == TerminalCompleted && term.Response != "" && lc.ChannelID != "" {
		res.Intents = append(res.Intents, types.Intent{
			Kind:      types.IntentSendMessage,
			ChannelID: lc.ChannelID,
			Recipient: lc.Recipient,
			Message:   term.Response,
			Urgent:    term.Urgent,
		})
	}

	logging.Info("cognition", "session %s terminal=%s tools=%d intents=%d",
		lc.SessionID, res.Terminal, res.ToolCalls, len(res.Intents))
	return res
}

// completeWithRetry runs one backend round, retrying a transient failure
// once after a delay. A timeout fails the call, not the session.
func (o *Orchestrator) completeWithRetry(ctx context.Context, tier backend.Tier, req backend.Request) (backend.Response, error) {
	resp, err := o.tiers.Complete(ctx, tier, req)
	if err == nil || !backend.IsTransient(err) {
		return resp, err
	}
	logging.Warn("cognition", "transient backend failure, retrying in %s: %v", o.cfg.RetryDelay, err)
	select {
	case <-ctx.Done():
		return backend.Response{}, ctx.Err()
	case <-time.After(o.cfg.RetryDelay):
	}
	return o.tiers.Complete(ctx, tier, req)
}
