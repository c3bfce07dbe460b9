package neuron

import (
	"time"

	"github.com/wisp-agent/wisp/internal/types"
)

// Mode is one band of a categorical neuron's score range
type Mode struct {
	Name string
	Min  float64 // inclusive lower bound
}

// ModeNeuron classifies a continuous score into ordered modes and emits
// only on a mode transition, under its own (typically longer) refractory
// period so boundary chatter stays quiet. Mode bookkeeping advances on
// every call, including suppressed ones.
type ModeNeuron struct {
	id            string
	signalType    string
	source        string
	priority      types.Priority
	inputs        func(types.AgentState) []Input
	modes         []Mode // ascending by Min, first at 0
	refractory    time.Duration
	baselineFloor float64

	current      string
	hasMode      bool
	prevScore    float64
	lastEmission time.Time
}

// NewMode builds a categorical neuron over the given bands
func NewMode(id, signalType string, priority types.Priority, refractory time.Duration, baselineFloor float64, modes []Mode, inputs func(types.AgentState) []Input) *ModeNeuron {
	return &ModeNeuron{
		id:            id,
		signalType:    signalType,
		source:        "neuron." + id,
		priority:      priority,
		inputs:        inputs,
		modes:         modes,
		refractory:    refractory,
		baselineFloor: baselineFloor,
	}
}

func (n *ModeNeuron) ID() string { return n.id }

func (n *ModeNeuron) classify(score float64) string {
	mode := n.modes[0].Name
	for _, m := range n.modes {
		if score >= m.Min {
			mode = m.Name
		}
	}
	return mode
}

// ModeFor exposes classification for callers that need the band without
// touching bookkeeping
func (n *ModeNeuron) ModeFor(state types.AgentState) string {
	score, _ := Score(n.inputs(state))
	return n.classify(score)
}

func (n *ModeNeuron) Check(state types.AgentState, alertness float64, correlationID string) *types.Signal {
	score, contribs := Score(n.inputs(state))
	now := time.Now()
	mode := n.classify(score)

	if !n.hasMode {
		n.hasMode = true
		n.current = mode
		n.prevScore = score
		if score <= n.baselineFloor {
			return nil
		}
		n.lastEmission = now
		return n.signal(score, contribs, mode, "", -1, correlationID, now)
	}

	prevMode := n.current
	prevScore := n.prevScore
	n.current = mode
	n.prevScore = score

	if mode == prevMode {
		return nil
	}
	if !n.lastEmission.IsZero() && now.Sub(n.lastEmission) < n.refractory {
		return nil
	}
	n.lastEmission = now
	return n.signal(score, contribs, mode, prevMode, prevScore, correlationID, now)
}

func (n *ModeNeuron) signal(score float64, contribs map[string]float64, mode, prevMode string, prevScore float64, correlationID string, now time.Time) *types.Signal {
	metrics := map[string]float64{
		types.MetricValue:      score,
		types.MetricConfidence: 0.9,
	}
	for k, v := range contribs {
		metrics[k] = v
	}
	data := map[string]any{"mode": mode}
	if prevMode != "" {
		metrics[types.MetricPreviousValue] = prevScore
		data["previous_mode"] = prevMode
	}
	return &types.Signal{
		Type:          n.signalType,
		Source:        n.source,
		Metrics:       metrics,
		Priority:      n.priority,
		CorrelationID: correlationID,
		Data:          data,
		Timestamp:     now,
	}
}

func (n *ModeNeuron) Reset() {
	n.current = ""
	n.hasMode = false
	n.prevScore = 0
	n.lastEmission = time.Time{}
}

// AlertnessModes are the ordered bands for the alertness neuron
var AlertnessModes = []Mode{
	{Name: "sleep", Min: 0},
	{Name: "relaxed", Min: 0.25},
	{Name: "normal", Min: 0.5},
	{Name: "alert", Min: 0.75},
}

func alertnessInputs(state types.AgentState) []Input {
	return []Input{
		{Name: "energy", Value: state.Energy, Weight: 0.5},
		{Name: "task_pressure", Value: state.TaskPressure, Weight: 0.25},
		{Name: "curiosity", Value: state.Curiosity, Weight: 0.25},
	}
}

// AlertnessScore is the continuous readiness score behind the alertness
// neuron. The engine computes it once per tick and hands it to every
// neuron's change detector.
func AlertnessScore(state types.AgentState) float64 {
	score, _ := Score(alertnessInputs(state))
	return score
}

// Alertness builds the categorical alertness-mode neuron
func Alertness(refractory time.Duration, baselineFloor float64) *ModeNeuron {
	return NewMode("alertness", types.SignalAlertness, types.PriorityNormal, refractory, baselineFloor, AlertnessModes, alertnessInputs)
}
