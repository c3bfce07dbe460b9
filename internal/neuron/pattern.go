package neuron

import (
	"time"

	"github.com/wisp-agent/wisp/internal/types"
)

// Pattern categories carried in signal data. The threshold engine lets
// behavioral patterns wake and filters noise patterns out.
const (
	PatternBehavioral = "behavioral"
	PatternNoise      = "noise"
)

// ConversationSource is the read-only conversation view pattern watchers
// consult
type ConversationSource interface {
	Snapshot(now time.Time) types.ConversationSnapshot
}

// PatternWatch emits a pattern_break signal on the rising edge of a watched
// condition. The predicate is re-checked every tick; wasActive advances on
// every call so a condition that stays on emits once, not every tick.
type PatternWatch struct {
	id         string
	pattern    string
	category   string
	priority   types.Priority
	refractory time.Duration
	predicate  func(state types.AgentState, now time.Time) (bool, float64, map[string]any)

	wasActive    bool
	lastEmission time.Time
}

// NewPatternWatch builds an edge-triggered pattern watcher
func NewPatternWatch(id, pattern, category string, priority types.Priority, refractory time.Duration, predicate func(types.AgentState, time.Time) (bool, float64, map[string]any)) *PatternWatch {
	return &PatternWatch{
		id:         id,
		pattern:    pattern,
		category:   category,
		priority:   priority,
		refractory: refractory,
		predicate:  predicate,
	}
}

func (p *PatternWatch) ID() string { return p.id }

func (p *PatternWatch) Check(state types.AgentState, alertness float64, correlationID string) *types.Signal {
	now := time.Now()
	active, value, extra := p.predicate(state, now)

	rising := active && !p.wasActive
	p.wasActive = active

	if !rising {
		return nil
	}
	if !p.lastEmission.IsZero() && now.Sub(p.lastEmission) < p.refractory {
		return nil
	}
	p.lastEmission = now

	data := map[string]any{
		"pattern":  p.pattern,
		"category": p.category,
	}
	for k, v := range extra {
		data[k] = v
	}
	return &types.Signal{
		Type:          types.SignalPatternBreak,
		Source:        "neuron." + p.id,
		Metrics:       map[string]float64{types.MetricValue: Clamp01(value), types.MetricConfidence: 0.7},
		Priority:      p.priority,
		CorrelationID: correlationID,
		Data:          data,
		Timestamp:     now,
	}
}

func (p *PatternWatch) Reset() {
	p.wasActive = false
	p.lastEmission = time.Time{}
}

// SuddenSilence fires when the user stops replying mid-conversation: the
// agent spoke last, the conversation was recently active, and the quiet gap
// has grown past minIdle but not so far that silence is just the
// conversation ending (maxIdle).
func SuddenSilence(conv ConversationSource, minIdle, maxIdle time.Duration, refractory time.Duration) *PatternWatch {
	return NewPatternWatch("sudden_silence", "sudden_silence", PatternBehavioral, types.PriorityNormal, refractory,
		func(_ types.AgentState, now time.Time) (bool, float64, map[string]any) {
			snap := conv.Snapshot(now)
			if snap.Status != types.ConversationActive || !snap.AwaitingReply {
				return false, 0, nil
			}
			if snap.IdleFor < minIdle || snap.IdleFor > maxIdle {
				return false, 0, nil
			}
			// scale 0..1 across the watch window
			v := float64(snap.IdleFor-minIdle) / float64(maxIdle-minIdle)
			return true, 0.5 + 0.5*v, map[string]any{"channel_id": snap.ChannelID, "idle_seconds": snap.IdleFor.Seconds()}
		})
}

// RateSpike fires when signal intake jumps well above its rolling baseline.
// Classified as noise: it informs aggregates but must never wake cognition.
func RateSpike(rates func() (current, baseline float64), refractory time.Duration) *PatternWatch {
	return NewPatternWatch("rate_spike", "rate_spike", PatternNoise, types.PriorityLow, refractory,
		func(_ types.AgentState, _ time.Time) (bool, float64, map[string]any) {
			current, baseline := rates()
			if baseline <= 0 || current < 1 {
				return false, 0, nil
			}
			ratio := current / baseline
			if ratio < 3 {
				return false, 0, nil
			}
			return true, ratio / 10, map[string]any{"rate": current, "baseline": baseline}
		})
}
