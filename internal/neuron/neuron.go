// Package neuron turns agent state into signals. Each neuron is a small
// weighted scoring function with private change-detection bookkeeping; the
// engine sweeps all registered neurons once per tick.
package neuron

import (
	"math"
	"time"

	"github.com/wisp-agent/wisp/internal/types"
)

// changeEpsilon guards the relative-change division when previous is ~0
const changeEpsilon = 0.001

// Neuron is a stateful evaluator producing at most one signal per tick.
// Check must advance bookkeeping on every call, emitting or not; the next
// call's "previous" reflects the latest observation, not the latest
// emission. Reset clears bookkeeping back to the just-created state.
type Neuron interface {
	ID() string
	Check(state types.AgentState, alertness float64, correlationID string) *types.Signal
	Reset()
}

// Config holds the change-detection and rate-limit knobs shared by scoring
// neurons.
type Config struct {
	BaseThreshold      float64       `yaml:"base_threshold"`      // relative change required at alertness 0
	AlertnessInfluence float64       `yaml:"alertness_influence"` // how much alertness shrinks the threshold
	MinAbsoluteChange  float64       `yaml:"min_absolute_change"` // floor for the effective threshold
	MaxThreshold       float64       `yaml:"max_threshold"`       // ceiling for the effective threshold
	Refractory         time.Duration `yaml:"refractory"`          // minimum spacing between emissions
	BaselineFloor      float64       `yaml:"baseline_floor"`      // first call emits only above this
}

// DefaultConfig is the starting point for drive neurons
func DefaultConfig() Config {
	return Config{
		BaseThreshold:      0.10,
		AlertnessInfluence: 0.5,
		MinAbsoluteChange:  0.02,
		MaxThreshold:       0.5,
		Refractory:         2 * time.Minute,
		BaselineFloor:      0.1,
	}
}

// detector is the mutable half of a neuron: previous observation, emission
// clock, and the significance test. Private to one neuron instance.
type detector struct {
	cfg          Config
	previous     float64
	hasPrevious  bool
	lastEmission time.Time
}

// observation reports what a single observe call decided
type observation struct {
	emit     bool
	baseline bool    // first-ever observation
	rate     float64 // signed relative change vs previous
	previous float64
}

// effectiveThreshold shrinks the base threshold as alertness rises; a more
// alert agent reacts to smaller changes. Clamped between the
// absolute-change floor and the hard ceiling.
func (d *detector) effectiveThreshold(alertness float64) float64 {
	t := d.cfg.BaseThreshold * (1 - d.cfg.AlertnessInfluence*Clamp01(alertness))
	return math.Max(d.cfg.MinAbsoluteChange, math.Min(d.cfg.MaxThreshold, t))
}

// observe advances bookkeeping with the current value and decides whether
// to emit. Bookkeeping moves forward on every call.
func (d *detector) observe(current, alertness float64, now time.Time) observation {
	if !d.hasPrevious {
		d.hasPrevious = true
		d.previous = current
		obs := observation{baseline: true}
		if current > d.cfg.BaselineFloor {
			obs.emit = true
			d.lastEmission = now
		}
		return obs
	}

	prev := d.previous
	denom := math.Max(math.Abs(prev), changeEpsilon)
	rate := (current - prev) / denom
	significant := math.Abs(current-prev)/denom >= d.effectiveThreshold(alertness)
	refractoryOver := d.lastEmission.IsZero() || now.Sub(d.lastEmission) >= d.cfg.Refractory

	d.previous = current

	obs := observation{rate: rate, previous: prev}
	if significant && refractoryOver {
		obs.emit = true
		d.lastEmission = now
	}
	return obs
}

func (d *detector) reset() {
	d.previous = 0
	d.hasPrevious = false
	d.lastEmission = time.Time{}
}

// DriveNeuron scores a weighted set of state inputs and emits on
// significant change. One instance per monitored quantity; created at
// startup and long-lived.
type DriveNeuron struct {
	id         string
	signalType string
	source     string
	priority   types.Priority
	inputs     func(types.AgentState) []Input
	det        detector
}

// NewDrive builds a scoring neuron. The inputs function must be pure: all
// mutable bookkeeping lives in the detector.
func NewDrive(id, signalType string, priority types.Priority, cfg Config, inputs func(types.AgentState) []Input) *DriveNeuron {
	return &DriveNeuron{
		id:         id,
		signalType: signalType,
		source:     "neuron." + id,
		priority:   priority,
		inputs:     inputs,
		det:        detector{cfg: cfg},
	}
}

func (n *DriveNeuron) ID() string { return n.id }

// Check scores the snapshot and emits when the change detector fires
func (n *DriveNeuron) Check(state types.AgentState, alertness float64, correlationID string) *types.Signal {
	score, contribs := Score(n.inputs(state))
	now := time.Now()
	obs := n.det.observe(score, alertness, now)
	if !obs.emit {
		return nil
	}

	metrics := map[string]float64{
		types.MetricValue:      score,
		types.MetricConfidence: 0.9,
	}
	for k, v := range contribs {
		metrics[k] = v
	}
	if !obs.baseline {
		metrics[types.MetricRateOfChange] = obs.rate
		metrics[types.MetricPreviousValue] = obs.previous
	}

	return &types.Signal{
		Type:          n.signalType,
		Source:        n.source,
		Metrics:       metrics,
		Priority:      n.priority,
		CorrelationID: correlationID,
		Timestamp:     now,
	}
}

func (n *DriveNeuron) Reset() { n.det.reset() }
