package agenda

import (
	"testing"
	"time"

	"github.com/wisp-agent/wisp/internal/store"
	"github.com/wisp-agent/wisp/internal/types"
)

func testAgenda(t *testing.T) *Agenda {
	t.Helper()
	s, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return New(s)
}

func TestDueScanFiresOnce(t *testing.T) {
	a := testAgenda(t)
	now := time.Now()

	if err := a.Schedule(store.AgendaItem{
		ID:      "follow-up-1",
		Event:   "check in about the deploy",
		DueAt:   now.Add(-time.Minute),
		Payload: map[string]any{"channel_id": "chan-1"},
	}); err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}

	signals := a.DueScan(now, "corr-1")
	if len(signals) != 1 {
		t.Fatalf("expected 1 signal, got %d", len(signals))
	}
	sig := signals[0]
	if sig.Type != types.SignalScheduledEvent {
		t.Errorf("expected scheduled_event, got %s", sig.Type)
	}
	if sig.Data["event"] != "check in about the deploy" {
		t.Errorf("unexpected event payload: %v", sig.Data["event"])
	}
	if sig.Data["channel_id"] != "chan-1" {
		t.Errorf("expected payload to carry through, got %v", sig.Data["channel_id"])
	}
	if sig.CorrelationID != "corr-1" {
		t.Errorf("expected correlation id corr-1, got %s", sig.CorrelationID)
	}

	// a second scan must not re-fire the same item
	if again := a.DueScan(now.Add(time.Second), "corr-2"); len(again) != 0 {
		t.Errorf("expected no signals on rescan, got %d", len(again))
	}
}

func TestDueScanSkipsFutureItems(t *testing.T) {
	a := testAgenda(t)
	now := time.Now()

	a.Schedule(store.AgendaItem{ID: "later", Event: "weekly review", DueAt: now.Add(time.Hour)})

	if signals := a.DueScan(now, "corr-1"); len(signals) != 0 {
		t.Fatalf("expected no signals for future items, got %d", len(signals))
	}

	open, _ := a.Open()
	if len(open) != 1 {
		t.Errorf("expected the future item to stay open, got %d open", len(open))
	}
}

func TestCancelledItemNeverFires(t *testing.T) {
	a := testAgenda(t)
	now := time.Now()

	a.Schedule(store.AgendaItem{ID: "doomed", Event: "ping alex", DueAt: now.Add(-time.Minute)})
	if err := a.Cancel("doomed"); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	if signals := a.DueScan(now, "corr-1"); len(signals) != 0 {
		t.Errorf("expected cancelled item not to fire, got %d signals", len(signals))
	}
}

func TestSummaries(t *testing.T) {
	a := testAgenda(t)
	now := time.Now()

	a.Schedule(store.AgendaItem{ID: "s1", Event: "write the report", DueAt: now.Add(time.Hour)})

	lines := a.Summaries()
	if len(lines) != 1 {
		t.Fatalf("expected 1 summary line, got %d", len(lines))
	}
	t.Logf("summary: %s", lines[0])
}
