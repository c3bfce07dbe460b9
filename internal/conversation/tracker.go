// Package conversation tracks the primary conversation: who spoke last,
// how long the channel has been quiet, and a rough belief about whether
// the user is reachable right now. Senses and effectors feed it; the
// threshold engine and the cognition loop read snapshots.
package conversation

import (
	"math"
	"sync"
	"time"

	"github.com/wisp-agent/wisp/internal/types"
)

// Status boundaries. Under ActiveWindow the conversation counts as live,
// past DormantAfter it is considered over.
const (
	ActiveWindow = 10 * time.Minute
	DormantAfter = 6 * time.Hour
)

// responsiveness half-life: how quickly the recent-responsiveness belief
// decays back toward neutral when nothing is observed
const responsivenessHalfLife = 4 * time.Hour

// Tracker maintains the conversation model
type Tracker struct {
	mu sync.Mutex

	channelID     string
	lastMessageAt time.Time
	lastSpeaker   string // "user" or "agent"

	// responsiveness is the belief that the user answers when spoken to,
	// nudged up on every user message and down on unanswered agent sends
	responsiveness float64
	observedAt     time.Time
}

func NewTracker() *Tracker {
	return &Tracker{responsiveness: 0.5, observedAt: time.Now()}
}

// NoteUserMessage records an inbound user message
func (t *Tracker) NoteUserMessage(channelID string, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.channelID = channelID
	t.lastMessageAt = at
	t.lastSpeaker = "user"
	t.responsiveness = clamp01(t.decayedResponsiveness(at) + 0.2)
	t.observedAt = at
}

// NoteAgentMessage records an outbound send
func (t *Tracker) NoteAgentMessage(channelID string, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.lastSpeaker == "agent" && !t.lastMessageAt.IsZero() {
		// two sends with no answer in between reads as the user not being around
		t.responsiveness = clamp01(t.decayedResponsiveness(at) - 0.15)
		t.observedAt = at
	}
	t.channelID = channelID
	t.lastMessageAt = at
	t.lastSpeaker = "agent"
}

// Snapshot returns the read-only view at now
func (t *Tracker) Snapshot(now time.Time) types.ConversationSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := types.ConversationSnapshot{
		ChannelID:     t.channelID,
		LastMessageAt: t.lastMessageAt,
		LastSpeaker:   t.lastSpeaker,
		Availability:  hourCurve(now.Hour()) * t.decayedResponsiveness(now),
	}
	if t.lastMessageAt.IsZero() {
		snap.Status = types.ConversationDormant
		snap.IdleFor = DormantAfter
		return snap
	}
	snap.IdleFor = now.Sub(t.lastMessageAt)
	snap.AwaitingReply = t.lastSpeaker == "agent"
	switch {
	case snap.IdleFor < ActiveWindow:
		snap.Status = types.ConversationActive
	case snap.IdleFor < DormantAfter:
		snap.Status = types.ConversationIdle
	default:
		snap.Status = types.ConversationDormant
	}
	return snap
}

func (t *Tracker) decayedResponsiveness(now time.Time) float64 {
	elapsed := now.Sub(t.observedAt)
	if elapsed <= 0 {
		return t.responsiveness
	}
	// exponential decay toward the neutral 0.5
	halves := float64(elapsed) / float64(responsivenessHalfLife)
	return 0.5 + (t.responsiveness-0.5)*math.Pow(0.5, halves)
}

// hourCurve is the prior that the user is reachable at a given local hour:
// low overnight, ramping through the morning, full during the day and
// evening, tapering late.
func hourCurve(hour int) float64 {
	switch {
	case hour >= 1 && hour < 7:
		return 0.1
	case hour == 7 || hour == 8:
		return 0.5
	case hour >= 9 && hour < 22:
		return 1.0
	default: // 22, 23, 0
		return 0.6
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
