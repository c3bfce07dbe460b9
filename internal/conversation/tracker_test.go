package conversation

import (
	"testing"
	"time"

	"github.com/wisp-agent/wisp/internal/types"
)

func TestStatusTransitions(t *testing.T) {
	tr := NewTracker()
	base := time.Date(2026, 3, 5, 14, 0, 0, 0, time.UTC)

	tr.NoteUserMessage("chan-1", base)

	cases := []struct {
		name string
		at   time.Time
		want string
	}{
		{"just spoke", base.Add(time.Minute), types.ConversationActive},
		{"half hour quiet", base.Add(30 * time.Minute), types.ConversationIdle},
		{"overnight", base.Add(8 * time.Hour), types.ConversationDormant},
	}
	for _, tc := range cases {
		snap := tr.Snapshot(tc.at)
		if snap.Status != tc.want {
			t.Errorf("%s: expected status %s, got %s", tc.name, tc.want, snap.Status)
		}
	}
}

func TestFreshTrackerIsDormant(t *testing.T) {
	tr := NewTracker()
	snap := tr.Snapshot(time.Now())
	if snap.Status != types.ConversationDormant {
		t.Errorf("expected dormant before any message, got %s", snap.Status)
	}
	if snap.AwaitingReply {
		t.Error("expected no awaiting-reply before any message")
	}
}

func TestAwaitingReply(t *testing.T) {
	tr := NewTracker()
	base := time.Date(2026, 3, 5, 14, 0, 0, 0, time.UTC)

	tr.NoteUserMessage("chan-1", base)
	if tr.Snapshot(base.Add(time.Minute)).AwaitingReply {
		t.Error("user spoke last, should not be awaiting reply")
	}

	tr.NoteAgentMessage("chan-1", base.Add(2*time.Minute))
	snap := tr.Snapshot(base.Add(5 * time.Minute))
	if !snap.AwaitingReply {
		t.Error("agent spoke last, should be awaiting reply")
	}
	if snap.LastSpeaker != "agent" {
		t.Errorf("expected last speaker agent, got %s", snap.LastSpeaker)
	}
}

func TestAvailabilityFollowsHourCurve(t *testing.T) {
	tr := NewTracker()
	day := tr.Snapshot(time.Date(2026, 3, 5, 15, 0, 0, 0, time.UTC)).Availability
	night := tr.Snapshot(time.Date(2026, 3, 5, 3, 0, 0, 0, time.UTC)).Availability
	if night >= day {
		t.Errorf("expected night availability below day, got night=%.2f day=%.2f", night, day)
	}
	t.Logf("availability: day=%.2f night=%.2f", day, night)
}

func TestUnansweredSendsLowerResponsiveness(t *testing.T) {
	tr := NewTracker()
	base := time.Date(2026, 3, 5, 14, 0, 0, 0, time.UTC)

	tr.NoteUserMessage("chan-1", base)
	before := tr.Snapshot(base.Add(time.Minute)).Availability

	tr.NoteAgentMessage("chan-1", base.Add(2*time.Minute))
	tr.NoteAgentMessage("chan-1", base.Add(10*time.Minute))

	after := tr.Snapshot(base.Add(11 * time.Minute)).Availability
	if after >= before {
		t.Errorf("expected availability to drop after unanswered sends: before=%.2f after=%.2f", before, after)
	}
}

func TestUserMessageRaisesResponsiveness(t *testing.T) {
	tr := NewTracker()
	base := time.Date(2026, 3, 5, 14, 0, 0, 0, time.UTC)

	neutral := tr.Snapshot(base).Availability
	tr.NoteUserMessage("chan-1", base)
	boosted := tr.Snapshot(base.Add(time.Second)).Availability
	if boosted <= neutral {
		t.Errorf("expected a user message to raise availability: neutral=%.2f boosted=%.2f", neutral, boosted)
	}
}
