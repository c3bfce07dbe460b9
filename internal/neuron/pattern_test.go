package neuron

import (
	"testing"
	"time"

	"github.com/wisp-agent/wisp/internal/types"
)

type fakeConv struct {
	snap types.ConversationSnapshot
}

func (f *fakeConv) Snapshot(time.Time) types.ConversationSnapshot { return f.snap }

func TestPatternWatchEmitsOnRisingEdgeOnly(t *testing.T) {
	active := false
	w := NewPatternWatch("edge_test", "edge_test", PatternBehavioral, types.PriorityNormal, 0,
		func(types.AgentState, time.Time) (bool, float64, map[string]any) {
			return active, 0.8, nil
		})

	if sig := w.Check(types.AgentState{}, 0, "t1"); sig != nil {
		t.Error("inactive condition should not emit")
	}

	active = true
	if sig := w.Check(types.AgentState{}, 0, "t2"); sig == nil {
		t.Fatal("rising edge should emit")
	}
	if sig := w.Check(types.AgentState{}, 0, "t3"); sig != nil {
		t.Error("condition staying on should not re-emit")
	}

	active = false
	if sig := w.Check(types.AgentState{}, 0, "t4"); sig != nil {
		t.Error("falling edge should not emit")
	}

	active = true
	if sig := w.Check(types.AgentState{}, 0, "t5"); sig == nil {
		t.Error("second rising edge should emit again")
	}
}

func TestSuddenSilenceNeedsAwaitedReplyInWindow(t *testing.T) {
	conv := &fakeConv{}
	w := SuddenSilence(conv, 3*time.Minute, 15*time.Minute, 0)

	// active conversation, agent awaiting reply, idle inside the window
	conv.snap = types.ConversationSnapshot{
		Status:        types.ConversationActive,
		ChannelID:     "chan-1",
		AwaitingReply: true,
		IdleFor:       5 * time.Minute,
	}
	sig := w.Check(types.AgentState{}, 0, "t1")
	if sig == nil {
		t.Fatal("mid-conversation silence should emit")
	}
	if sig.Type != types.SignalPatternBreak {
		t.Errorf("type = %s, want %s", sig.Type, types.SignalPatternBreak)
	}
	if sig.Data["category"] != PatternBehavioral {
		t.Errorf("category = %v, want behavioral", sig.Data["category"])
	}
	if sig.Data["channel_id"] != "chan-1" {
		t.Errorf("channel_id missing from data: %v", sig.Data)
	}

	// past the window: silence is just the conversation ending
	w.Reset()
	conv.snap.IdleFor = time.Hour
	if sig := w.Check(types.AgentState{}, 0, "t2"); sig != nil {
		t.Error("long-dead conversation should not count as sudden silence")
	}

	// user spoke last: nothing to chase
	w.Reset()
	conv.snap.IdleFor = 5 * time.Minute
	conv.snap.AwaitingReply = false
	if sig := w.Check(types.AgentState{}, 0, "t3"); sig != nil {
		t.Error("no awaited reply, should not emit")
	}
}

func TestRateSpikeIsNoiseCategory(t *testing.T) {
	current, baseline := 1.0, 1.0
	w := RateSpike(func() (float64, float64) { return current, baseline }, 0)

	if sig := w.Check(types.AgentState{}, 0, "t1"); sig != nil {
		t.Error("steady rate should not emit")
	}

	current = 8
	sig := w.Check(types.AgentState{}, 0, "t2")
	if sig == nil {
		t.Fatal("8x baseline should emit")
	}
	if sig.Data["category"] != PatternNoise {
		t.Errorf("category = %v, want noise", sig.Data["category"])
	}
	if sig.Priority != types.PriorityLow {
		t.Errorf("priority = %v, want low", sig.Priority)
	}
}
