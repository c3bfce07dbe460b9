package scheduler

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/wisp-agent/wisp/internal/agenda"
	"github.com/wisp-agent/wisp/internal/aggregate"
	"github.com/wisp-agent/wisp/internal/backend"
	"github.com/wisp-agent/wisp/internal/cognition"
	"github.com/wisp-agent/wisp/internal/conversation"
	"github.com/wisp-agent/wisp/internal/journal"
	"github.com/wisp-agent/wisp/internal/neuron"
	"github.com/wisp-agent/wisp/internal/store"
	"github.com/wisp-agent/wisp/internal/threshold"
	"github.com/wisp-agent/wisp/internal/tools"
	"github.com/wisp-agent/wisp/internal/types"
)

type terminalPayload struct {
	Response string `json:"response"`
	Status   string `json:"status"`
}

// scriptedBackend returns a fixed terminal response, optionally blocking
// on a gate channel first
type scriptedBackend struct {
	response string
	gate     chan struct{}
}

func (b *scriptedBackend) Complete(ctx context.Context, req backend.Request) (backend.Response, error) {
	if b.gate != nil {
		<-b.gate
	}
	payload, _ := json.Marshal(terminalPayload{Response: b.response, Status: "ok"})
	return backend.Response{Text: string(payload), FinishReason: backend.FinishStop}, nil
}

func (b *scriptedBackend) Model() string { return "fake" }

func newFakeTier(response string, gate chan struct{}) *backend.TierSet {
	b := &scriptedBackend{response: response, gate: gate}
	return backend.NewTierSetFrom(b, b, time.Minute, time.Minute)
}

func testScheduler(t *testing.T, cfg Config, tiers *backend.TierSet) (*Scheduler, *store.Store, *journal.Journal) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(dir)
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	conv := conversation.NewTracker()
	jrnl := journal.New(dir)
	neurons := neuron.NewEngine()
	agg := aggregate.New(aggregate.Config{})
	thresh := threshold.New(threshold.Config{}, conv)
	registry := tools.NewRegistry()
	registry.Register(tools.Builtins(tools.Deps{DefaultChannel: "chan-1"})...)
	orch := cognition.New(cognition.Config{}, tiers, registry)

	cfg.ChannelID = "chan-1"
	s := New(cfg, neurons, agg, thresh, orch, st, conv, agenda.New(st), jrnl, nil)
	return s, st, jrnl
}

func TestQuietTickRecordsNoWake(t *testing.T) {
	s, st, _ := testScheduler(t, Config{}, newFakeTier("", nil))

	s.Tick()

	wakes, err := st.RecentWakes(5)
	if err != nil {
		t.Fatalf("RecentWakes failed: %v", err)
	}
	if len(wakes) != 1 {
		t.Fatalf("expected 1 wake record, got %d", len(wakes))
	}
	if wakes[0].Decision.ShouldWake {
		t.Errorf("quiet tick must not wake: %+v", wakes[0].Decision)
	}
}

func TestUserMessageWakesAndDeliversIntent(t *testing.T) {
	s, st, _ := testScheduler(t, Config{}, newFakeTier("hey, on it", nil))

	sent := make(chan types.Intent, 1)
	s.OnIntent = func(i types.Intent) { sent <- i }

	s.Push(&types.Signal{
		Type:      types.SignalUserMessage,
		Source:    "sense.discord",
		Metrics:   map[string]float64{types.MetricValue: 0.9},
		Priority:  types.PriorityHigh,
		Timestamp: time.Now(),
		Data:      map[string]any{"channel_id": "chan-9", "author_id": "alex", "content": "you there?"},
	})
	s.Tick()

	select {
	case intent := <-sent:
		if intent.Kind != types.IntentSendMessage {
			t.Errorf("expected send_message, got %s", intent.Kind)
		}
		if intent.ChannelID != "chan-9" {
			t.Errorf("reply must target the trigger's channel, got %s", intent.ChannelID)
		}
		if intent.Message != "hey, on it" {
			t.Errorf("unexpected message: %q", intent.Message)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the send intent")
	}

	wakes, _ := st.RecentWakes(5)
	if len(wakes) != 1 || !wakes[0].Decision.ShouldWake {
		t.Fatalf("expected a positive wake record, got %+v", wakes)
	}
	if wakes[0].Decision.Trigger != types.TriggerUserMessage {
		t.Errorf("expected user_message trigger, got %s", wakes[0].Decision.Trigger)
	}
}

func TestInFlightGuardSkipsSecondWake(t *testing.T) {
	gate := make(chan struct{})
	s, _, jrnl := testScheduler(t, Config{}, newFakeTier("done", gate))
	s.OnIntent = func(types.Intent) {}

	push := func() {
		s.Push(&types.Signal{
			Type:      types.SignalUserMessage,
			Source:    "sense.discord",
			Metrics:   map[string]float64{types.MetricValue: 0.9},
			Timestamp: time.Now(),
			Data:      map[string]any{"content": "first"},
		})
	}

	push()
	s.Tick() // starts cognition, blocked on gate

	push()
	s.Tick() // must skip, cognition in flight

	close(gate)

	deadline := time.After(5 * time.Second)
	for {
		entries, _ := jrnl.Recent(50)
		skipped := false
		for _, e := range entries {
			if e.Type == journal.EntryNoWake && e.Reason == "cognition already in flight" {
				skipped = true
			}
		}
		if skipped {
			break
		}
		select {
		case <-deadline:
			t.Fatal("never saw the in-flight skip entry")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestCompletedSessionBurnsEnergy(t *testing.T) {
	s, st, _ := testScheduler(t, Config{WakeCost: 0.1}, newFakeTier("ack", nil))
	sent := make(chan types.Intent, 1)
	s.OnIntent = func(i types.Intent) { sent <- i }

	before, _ := st.Snapshot()

	s.Push(&types.Signal{
		Type:      types.SignalUserMessage,
		Source:    "sense.discord",
		Metrics:   map[string]float64{types.MetricValue: 0.9},
		Timestamp: time.Now(),
		Data:      map[string]any{"content": "hi"},
	})
	s.Tick()
	<-sent

	// energy write races the intent callback slightly; poll for it
	deadline := time.After(5 * time.Second)
	for {
		after, _ := st.Snapshot()
		if after.Energy < before.Energy {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("energy never dropped below %f", before.Energy)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestNormalizeIdle(t *testing.T) {
	if normalizeIdle(0) != 0 {
		t.Error("zero idle must normalize to 0")
	}
	if normalizeIdle(8*time.Hour) != 1 {
		t.Error("long idle must clamp to 1")
	}
	if v := normalizeIdle(2 * time.Hour); v <= 0.4 || v >= 0.6 {
		t.Errorf("2h should be near the middle, got %f", v)
	}
}
