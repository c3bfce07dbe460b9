// Package threshold is the admission-control gate in front of cognition.
// Evaluate looks at one tick's signals, the rolling aggregates, and the
// agent state, and decides whether waking the reasoning stage is worth it.
// It never errors; "no wake" is an always-valid outcome.
package threshold

import (
	"fmt"
	"time"

	"github.com/wisp-agent/wisp/internal/logging"
	"github.com/wisp-agent/wisp/internal/neuron"
	"github.com/wisp-agent/wisp/internal/types"
)

// Config holds the wake-rule knobs
type Config struct {
	LowEnergyFloor           float64       `yaml:"low_energy_floor"`           // below this, most triggers are suppressed
	ThoughtPressureThreshold float64       `yaml:"thought_pressure_threshold"` // thought_pressure value that forces a wake
	ContactPressureThreshold float64       `yaml:"contact_pressure_threshold"` // social_debt aggregate level for proactive contact
	ProactiveIdleDelay       time.Duration `yaml:"proactive_idle_delay"`       // quiet time required before reaching out
	MinAvailability          float64       `yaml:"min_availability"`           // availability belief required for proactive contact
}

func DefaultConfig() Config {
	return Config{
		LowEnergyFloor:           0.3,
		ThoughtPressureThreshold: 0.7,
		ContactPressureThreshold: 0.6,
		ProactiveIdleDelay:       30 * time.Minute,
		MinAvailability:          0.5,
	}
}

// ConversationProvider is the read-only view of the primary conversation
// consulted by the proactive-contact rule
type ConversationProvider interface {
	Snapshot(now time.Time) types.ConversationSnapshot
}

// Engine evaluates wake rules. Pure over its three inputs; the injected
// conversation provider and the primary recipient may change between calls.
type Engine struct {
	cfg       Config
	conv      ConversationProvider
	recipient string
}

func New(cfg Config, conv ConversationProvider) *Engine {
	def := DefaultConfig()
	if cfg.LowEnergyFloor <= 0 {
		cfg.LowEnergyFloor = def.LowEnergyFloor
	}
	if cfg.ThoughtPressureThreshold <= 0 {
		cfg.ThoughtPressureThreshold = def.ThoughtPressureThreshold
	}
	if cfg.ContactPressureThreshold <= 0 {
		cfg.ContactPressureThreshold = def.ContactPressureThreshold
	}
	if cfg.ProactiveIdleDelay <= 0 {
		cfg.ProactiveIdleDelay = def.ProactiveIdleDelay
	}
	if cfg.MinAvailability <= 0 {
		cfg.MinAvailability = def.MinAvailability
	}
	return &Engine{cfg: cfg, conv: conv}
}

// SetPrimaryRecipient configures who proactive contact goes to. Empty
// disables the proactive rule entirely.
func (e *Engine) SetPrimaryRecipient(id string) {
	e.recipient = id
}

// Trigger ranks, lower fires first when several rules match in one batch
const (
	rankUserMessage = iota
	rankThought
	rankThoughtPressure
	rankPatternBreak
	rankScheduled
	rankProactive
)

type candidate struct {
	rank     int
	decision types.WakeDecision
}

// Evaluate runs every wake rule over the batch and returns the
// highest-ranked decision that fired, or a diagnostic no-wake.
func (e *Engine) Evaluate(signals []*types.Signal, aggregates []types.SignalAggregate, state types.AgentState) types.WakeDecision {
	var candidates []candidate
	lowEnergy := state.Energy < e.cfg.LowEnergyFloor

	// Rule 1: user messages always wake, bypassing every gate
	if sig := firstOfType(signals, types.SignalUserMessage); sig != nil {
		candidates = append(candidates, candidate{rankUserMessage, types.WakeDecision{
			ShouldWake:     true,
			Trigger:        types.TriggerUserMessage,
			Reason:         "user message received",
			Value:          sig.Value(),
			TriggerSignals: []*types.Signal{sig},
		}})
	}

	// Rule 3: raw thought signals bypass the energy gate
	if sig := firstOfType(signals, types.SignalThought); sig != nil {
		candidates = append(candidates, candidate{rankThought, types.WakeDecision{
			ShouldWake:     true,
			Trigger:        types.TriggerThought,
			Reason:         "thought signal present",
			Value:          sig.Value(),
			TriggerSignals: []*types.Signal{sig},
		}})
	}

	// Rule 2: the energy gate suppresses everything below here
	if lowEnergy {
		if len(candidates) == 0 {
			return types.WakeDecision{
				ShouldWake: false,
				Reason:     fmt.Sprintf("energy too low (%.2f < %.2f)", state.Energy, e.cfg.LowEnergyFloor),
				Value:      state.Energy,
				Threshold:  e.cfg.LowEnergyFloor,
			}
		}
		return pick(candidates)
	}

	// Rule 4: synthesized thought pressure, gated by energy above. The
	// strongest reading wins, whether it arrived raw in this batch or sits
	// in the rolling aggregate.
	sig, value := maxOfType(signals, types.SignalThoughtPressure)
	e.liftFromAggregates(aggregates, types.SignalThoughtPressure, &value, &sig)
	if sig != nil && value >= e.cfg.ThoughtPressureThreshold {
		candidates = append(candidates, candidate{rankThoughtPressure, types.WakeDecision{
			ShouldWake:     true,
			Trigger:        types.TriggerThresholdCrossed,
			Reason:         fmt.Sprintf("thought pressure %.2f crossed %.2f", value, e.cfg.ThoughtPressureThreshold),
			Value:          value,
			Threshold:      e.cfg.ThoughtPressureThreshold,
			TriggerSignals: []*types.Signal{sig},
		}})
	}

	// Rule 5: behavioral pattern breaks wake, noise patterns never do
	for _, sig := range signals {
		if sig.Type != types.SignalPatternBreak {
			continue
		}
		category, _ := sig.Data["category"].(string)
		if category == neuron.PatternNoise {
			logging.Debug("threshold", "ignoring noise pattern %v", sig.Data["pattern"])
			continue
		}
		pattern, _ := sig.Data["pattern"].(string)
		candidates = append(candidates, candidate{rankPatternBreak, types.WakeDecision{
			ShouldWake:     true,
			Trigger:        types.TriggerPatternBreak,
			Reason:         fmt.Sprintf("behavioral pattern break: %s", pattern),
			Value:          sig.Value(),
			TriggerSignals: []*types.Signal{sig},
		}})
		break
	}

	// Due agenda items wake like any other crossed threshold
	if sig := firstOfType(signals, types.SignalScheduledEvent); sig != nil {
		event, _ := sig.Data["event"].(string)
		candidates = append(candidates, candidate{rankScheduled, types.WakeDecision{
			ShouldWake:     true,
			Trigger:        types.TriggerThresholdCrossed,
			Reason:         fmt.Sprintf("scheduled event due: %s", event),
			Value:          sig.Value(),
			TriggerSignals: []*types.Signal{sig},
		}})
	}

	// Rule 6: proactive contact
	if c, ok := e.proactive(aggregates); ok {
		candidates = append(candidates, c)
	}

	if len(candidates) == 0 {
		return types.WakeDecision{ShouldWake: false, Reason: e.noWakeReason(aggregates)}
	}
	return pick(candidates)
}

// proactive checks the full admission list for reaching out unprompted:
// configured recipient, contact pressure over threshold, conversation idle
// long enough, and a believable chance the user is reachable.
func (e *Engine) proactive(aggregates []types.SignalAggregate) (candidate, bool) {
	if e.recipient == "" {
		return candidate{}, false
	}
	agg, ok := contactPressure(aggregates)
	if !ok || agg.CurrentValue < e.cfg.ContactPressureThreshold {
		return candidate{}, false
	}
	if e.conv == nil {
		return candidate{}, false
	}
	now := time.Now()
	snap := e.conv.Snapshot(now)
	if snap.IdleFor < e.cfg.ProactiveIdleDelay {
		return candidate{}, false
	}
	if snap.Availability < e.cfg.MinAvailability {
		return candidate{}, false
	}

	proactiveType := types.ProactiveInitiate
	if snap.AwaitingReply {
		proactiveType = types.ProactiveFollowUp
	}

	// Synthesize the evidence signal: the decision must always carry at
	// least one trigger signal, and proactive wakes have no raw one.
	sig := &types.Signal{
		Type:   types.SignalSocialDebt,
		Source: "threshold.proactive",
		Metrics: map[string]float64{
			types.MetricValue:      agg.CurrentValue,
			types.MetricConfidence: 0.8,
		},
		Priority: types.PriorityNormal,
		Data: map[string]any{
			"recipient_id":   e.recipient,
			"channel_id":     snap.ChannelID,
			"proactive_type": string(proactiveType),
			"idle_seconds":   snap.IdleFor.Seconds(),
		},
		Timestamp: now,
	}

	return candidate{rankProactive, types.WakeDecision{
		ShouldWake:     true,
		Trigger:        types.TriggerThresholdCrossed,
		Reason:         fmt.Sprintf("contact pressure %.2f over %.2f, idle %s", agg.CurrentValue, e.cfg.ContactPressureThreshold, snap.IdleFor.Round(time.Minute)),
		Value:          agg.CurrentValue,
		Threshold:      e.cfg.ContactPressureThreshold,
		TriggerSignals: []*types.Signal{sig},
		ProactiveType:  proactiveType,
	}}, true
}

// noWakeReason explains the most informative missing precondition
func (e *Engine) noWakeReason(aggregates []types.SignalAggregate) string {
	if e.recipient == "" {
		return "no trigger fired; no primary recipient configured"
	}
	agg, ok := contactPressure(aggregates)
	if !ok {
		return "no trigger fired; no contact pressure aggregate"
	}
	if agg.CurrentValue < e.cfg.ContactPressureThreshold {
		return fmt.Sprintf("no trigger fired; contact pressure %.2f under %.2f", agg.CurrentValue, e.cfg.ContactPressureThreshold)
	}
	return "no trigger fired"
}

func pick(candidates []candidate) types.WakeDecision {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.rank < best.rank {
			best = c
		}
	}
	return best.decision
}

func firstOfType(signals []*types.Signal, sigType string) *types.Signal {
	for _, sig := range signals {
		if sig.Type == sigType {
			return sig
		}
	}
	return nil
}

// maxOfType returns the strongest signal of the type in the batch
func maxOfType(signals []*types.Signal, sigType string) (*types.Signal, float64) {
	var best *types.Signal
	value := 0.0
	for _, sig := range signals {
		if sig.Type != sigType {
			continue
		}
		if best == nil || sig.Value() > value {
			best = sig
			value = sig.Value()
		}
	}
	return best, value
}

// liftFromAggregates swaps in an aggregate's current value when it beats
// the strongest raw signal, synthesizing an evidence signal from the bucket
func (e *Engine) liftFromAggregates(aggregates []types.SignalAggregate, sigType string, value *float64, sig **types.Signal) {
	for i := range aggregates {
		agg := &aggregates[i]
		if agg.Type != sigType || agg.CurrentValue <= *value {
			continue
		}
		if *sig == nil || agg.CurrentValue > *value {
			*value = agg.CurrentValue
			*sig = &types.Signal{
				Type:      agg.Type,
				Source:    agg.Source,
				Metrics:   map[string]float64{types.MetricValue: agg.CurrentValue},
				Timestamp: agg.LastUpdated,
			}
		}
	}
}

func contactPressure(aggregates []types.SignalAggregate) (types.SignalAggregate, bool) {
	for _, agg := range aggregates {
		if agg.Type == types.SignalSocialDebt {
			return agg, true
		}
	}
	return types.SignalAggregate{}, false
}
