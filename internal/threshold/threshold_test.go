package threshold

import (
	"testing"
	"time"

	"github.com/wisp-agent/wisp/internal/neuron"
	"github.com/wisp-agent/wisp/internal/types"
)

// fakeConv is a canned conversation snapshot provider
type fakeConv struct {
	snap types.ConversationSnapshot
}

func (f *fakeConv) Snapshot(_ time.Time) types.ConversationSnapshot {
	return f.snap
}

func signal(sigType string, value float64) *types.Signal {
	return &types.Signal{
		Type:      sigType,
		Source:    "test." + sigType,
		Metrics:   map[string]float64{types.MetricValue: value},
		Timestamp: time.Now(),
	}
}

func TestUserMessageAlwaysWakes(t *testing.T) {
	e := New(DefaultConfig(), nil)
	state := types.AgentState{Energy: 0} // fully drained

	d := e.Evaluate([]*types.Signal{signal(types.SignalUserMessage, 0.9)}, nil, state)
	if !d.ShouldWake {
		t.Fatalf("user message must wake even at zero energy: %s", d.Reason)
	}
	if d.Trigger != types.TriggerUserMessage {
		t.Errorf("trigger = %s, want user_message", d.Trigger)
	}
	if len(d.TriggerSignals) == 0 {
		t.Error("wake decision must carry trigger signal evidence")
	}
}

func TestEnergyGateSuppressesThoughtPressure(t *testing.T) {
	e := New(DefaultConfig(), nil)
	state := types.AgentState{Energy: 0.2} // under the 0.3 floor

	d := e.Evaluate([]*types.Signal{signal(types.SignalThoughtPressure, 0.95)}, nil, state)
	if d.ShouldWake {
		t.Fatal("thought_pressure must respect the low-energy gate")
	}
	if d.Reason == "" {
		t.Error("no-wake decision needs a diagnostic reason")
	}
	t.Logf("gated: %s", d.Reason)
}

func TestRawThoughtBypassesEnergyGate(t *testing.T) {
	e := New(DefaultConfig(), nil)
	state := types.AgentState{Energy: 0.2}

	d := e.Evaluate([]*types.Signal{signal(types.SignalThought, 0.5)}, nil, state)
	if !d.ShouldWake {
		t.Fatalf("raw thought signals bypass the gate: %s", d.Reason)
	}
	if d.Trigger != types.TriggerThought {
		t.Errorf("trigger = %s, want thought", d.Trigger)
	}
}

func TestThoughtPressureMaxAcrossBatch(t *testing.T) {
	e := New(DefaultConfig(), nil)
	state := types.AgentState{Energy: 0.8}

	d := e.Evaluate([]*types.Signal{
		signal(types.SignalThoughtPressure, 0.72),
		signal(types.SignalThoughtPressure, 0.88),
	}, nil, state)
	if !d.ShouldWake {
		t.Fatalf("expected wake: %s", d.Reason)
	}
	if d.Trigger != types.TriggerThresholdCrossed {
		t.Errorf("trigger = %s, want threshold_crossed", d.Trigger)
	}
	if d.Value != 0.88 {
		t.Errorf("recorded value = %.2f, want the batch maximum 0.88", d.Value)
	}
	if d.Threshold != 0.7 {
		t.Errorf("recorded threshold = %.2f, want 0.7", d.Threshold)
	}
}

func TestThoughtPressureBelowThresholdNoWake(t *testing.T) {
	e := New(DefaultConfig(), nil)
	state := types.AgentState{Energy: 0.8}

	d := e.Evaluate([]*types.Signal{signal(types.SignalThoughtPressure, 0.5)}, nil, state)
	if d.ShouldWake {
		t.Errorf("0.5 under 0.7 must not wake: %s", d.Reason)
	}
}

func TestPatternBreakCategories(t *testing.T) {
	e := New(DefaultConfig(), nil)
	state := types.AgentState{Energy: 0.8}

	noise := signal(types.SignalPatternBreak, 0.6)
	noise.Data = map[string]any{"pattern": "rate_spike", "category": neuron.PatternNoise}
	d := e.Evaluate([]*types.Signal{noise}, nil, state)
	if d.ShouldWake {
		t.Error("noise patterns must never wake")
	}

	behavioral := signal(types.SignalPatternBreak, 0.6)
	behavioral.Data = map[string]any{"pattern": "sudden_silence", "category": neuron.PatternBehavioral}
	d = e.Evaluate([]*types.Signal{behavioral}, nil, state)
	if !d.ShouldWake {
		t.Fatalf("behavioral patterns wake: %s", d.Reason)
	}
	if d.Trigger != types.TriggerPatternBreak {
		t.Errorf("trigger = %s, want pattern_break", d.Trigger)
	}
}

func TestUserMessageOutranksEverything(t *testing.T) {
	e := New(DefaultConfig(), nil)
	state := types.AgentState{Energy: 0.8}

	d := e.Evaluate([]*types.Signal{
		signal(types.SignalThoughtPressure, 0.95),
		signal(types.SignalThought, 0.5),
		signal(types.SignalUserMessage, 0.4),
	}, nil, state)
	if d.Trigger != types.TriggerUserMessage {
		t.Errorf("trigger = %s, want user_message (highest rank)", d.Trigger)
	}
}

func proactiveFixture(idle time.Duration, availability float64, awaiting bool) (*Engine, []types.SignalAggregate) {
	conv := &fakeConv{snap: types.ConversationSnapshot{
		Status:        types.ConversationIdle,
		ChannelID:     "chan-1",
		IdleFor:       idle,
		Availability:  availability,
		AwaitingReply: awaiting,
	}}
	e := New(DefaultConfig(), conv)
	e.SetPrimaryRecipient("user-42")
	aggs := []types.SignalAggregate{{
		Type:         types.SignalSocialDebt,
		Source:       "neuron.social_debt",
		CurrentValue: 0.75,
		Count:        4,
		LastUpdated:  time.Now(),
	}}
	return e, aggs
}

func TestProactiveInitiate(t *testing.T) {
	e, aggs := proactiveFixture(40*time.Minute, 0.8, false)
	state := types.AgentState{Energy: 0.7}

	d := e.Evaluate(nil, aggs, state)
	if !d.ShouldWake {
		t.Fatalf("expected proactive wake: %s", d.Reason)
	}
	if d.Trigger != types.TriggerThresholdCrossed {
		t.Errorf("trigger = %s, want threshold_crossed", d.Trigger)
	}
	if d.ProactiveType != types.ProactiveInitiate {
		t.Errorf("proactive type = %s, want initiate", d.ProactiveType)
	}
	if len(d.TriggerSignals) == 0 {
		t.Fatal("proactive wake must synthesize an evidence signal")
	}
	if got, _ := d.TriggerSignals[0].Data["recipient_id"].(string); got != "user-42" {
		t.Errorf("recipient on trigger signal = %q, want user-42", got)
	}
}

func TestProactiveFollowUp(t *testing.T) {
	e, aggs := proactiveFixture(40*time.Minute, 0.8, true)
	d := e.Evaluate(nil, aggs, types.AgentState{Energy: 0.7})
	if !d.ShouldWake {
		t.Fatalf("expected wake: %s", d.Reason)
	}
	if d.ProactiveType != types.ProactiveFollowUp {
		t.Errorf("proactive type = %s, want follow_up when a reply is outstanding", d.ProactiveType)
	}
}

func TestProactiveAdmissionChecks(t *testing.T) {
	state := types.AgentState{Energy: 0.7}

	// Not idle long enough
	e, aggs := proactiveFixture(10*time.Minute, 0.8, false)
	if d := e.Evaluate(nil, aggs, state); d.ShouldWake {
		t.Error("10 minutes idle is under the 30 minute delay")
	}

	// User believed unavailable
	e, aggs = proactiveFixture(40*time.Minute, 0.2, false)
	if d := e.Evaluate(nil, aggs, state); d.ShouldWake {
		t.Error("availability 0.2 is under the 0.5 minimum")
	}

	// No recipient configured
	e, aggs = proactiveFixture(40*time.Minute, 0.8, false)
	e.SetPrimaryRecipient("")
	if d := e.Evaluate(nil, aggs, state); d.ShouldWake {
		t.Error("no recipient means no proactive contact")
	}

	// Pressure under threshold
	e, aggs = proactiveFixture(40*time.Minute, 0.8, false)
	aggs[0].CurrentValue = 0.4
	d := e.Evaluate(nil, aggs, state)
	if d.ShouldWake {
		t.Error("contact pressure 0.4 is under the 0.6 threshold")
	}
	t.Logf("no-wake reason: %s", d.Reason)
}

func TestScheduledEventWakes(t *testing.T) {
	e := New(DefaultConfig(), nil)
	state := types.AgentState{Energy: 0.8}

	due := signal(types.SignalScheduledEvent, 1.0)
	due.Data = map[string]any{"event": "check on the deploy", "event_id": "ag-1"}
	d := e.Evaluate([]*types.Signal{due}, nil, state)
	if !d.ShouldWake {
		t.Fatalf("due agenda item must wake: %s", d.Reason)
	}
	if d.Trigger != types.TriggerThresholdCrossed {
		t.Errorf("trigger = %s, want threshold_crossed", d.Trigger)
	}
	t.Logf("reason: %s", d.Reason)

	// but not when the agent is drained
	d = e.Evaluate([]*types.Signal{due}, nil, types.AgentState{Energy: 0.1})
	if d.ShouldWake {
		t.Error("scheduled events respect the low-energy gate")
	}
}

func TestNoSignalsNoWake(t *testing.T) {
	e := New(DefaultConfig(), nil)
	d := e.Evaluate(nil, nil, types.AgentState{Energy: 0.9})
	if d.ShouldWake {
		t.Error("empty evaluation must not wake")
	}
	if d.Reason == "" {
		t.Error("expected a diagnostic reason")
	}
}
