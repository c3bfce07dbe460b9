package neuron

import (
	"math"
	"testing"
	"time"

	"github.com/wisp-agent/wisp/internal/types"
)

// single-input neuron tracking SocialDebt one-to-one, for deterministic tests
func testDrive(cfg Config) *DriveNeuron {
	return NewDrive("test_drive", types.SignalSocialDebt, types.PriorityNormal, cfg, func(s types.AgentState) []Input {
		return []Input{{Name: "debt", Value: s.SocialDebt, Weight: 1}}
	})
}

func TestBaselineEmittedOnlyAboveFloor(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BaselineFloor = 0.1

	quiet := testDrive(cfg)
	if sig := quiet.Check(types.AgentState{SocialDebt: 0.05}, 0.5, "tick-1"); sig != nil {
		t.Errorf("baseline below floor should not emit, got value=%f", sig.Value())
	}

	loud := testDrive(cfg)
	sig := loud.Check(types.AgentState{SocialDebt: 0.3}, 0.5, "tick-1")
	if sig == nil {
		t.Fatal("baseline above floor should emit")
	}
	if sig.CorrelationID != "tick-1" {
		t.Errorf("correlation id not carried: %q", sig.CorrelationID)
	}
	if _, ok := sig.Metrics[types.MetricPreviousValue]; ok {
		t.Error("baseline signal should not carry previousValue")
	}
}

func TestSignificantChangeEmitsWithBreakdown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BaseThreshold = 0.08
	cfg.AlertnessInfluence = 0.5
	cfg.Refractory = 0

	n := testDrive(cfg)
	if sig := n.Check(types.AgentState{SocialDebt: 0.3}, 0.8, "t1"); sig == nil {
		t.Fatal("baseline expected")
	}

	sig := n.Check(types.AgentState{SocialDebt: 0.5}, 0.8, "t2")
	if sig == nil {
		t.Fatal("0.3 -> 0.5 at alertness 0.8 should be significant")
	}
	if got := sig.Metrics[types.MetricPreviousValue]; math.Abs(got-0.3) > 1e-9 {
		t.Errorf("previousValue = %f, want 0.3", got)
	}
	rate := sig.Metrics[types.MetricRateOfChange]
	if math.Abs(rate-(0.2/0.3)) > 1e-6 {
		t.Errorf("rateOfChange = %f, want %f", rate, 0.2/0.3)
	}
	if _, ok := sig.Metrics[types.ContribPrefix+"debt"]; !ok {
		t.Error("contribution breakdown missing from metrics")
	}
}

func TestRefractoryBlocksRegardlessOfMagnitude(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Refractory = time.Hour

	n := testDrive(cfg)
	if sig := n.Check(types.AgentState{SocialDebt: 0.3}, 0, "t1"); sig == nil {
		t.Fatal("baseline expected")
	}
	if sig := n.Check(types.AgentState{SocialDebt: 0.95}, 0, "t2"); sig != nil {
		t.Error("emission inside refractory period should be suppressed")
	}
}

func TestDetectorBookkeepingAdvancesWhenSuppressed(t *testing.T) {
	t0 := time.Now()
	d := detector{cfg: Config{
		BaseThreshold:      0.1,
		AlertnessInfluence: 0.5,
		MinAbsoluteChange:  0.02,
		MaxThreshold:       0.5,
		Refractory:         time.Hour,
		BaselineFloor:      0.1,
	}}

	if obs := d.observe(0.3, 0, t0); !obs.emit {
		t.Fatal("baseline expected")
	}
	// big change, but inside refractory: suppressed
	if obs := d.observe(0.9, 0, t0.Add(time.Second)); obs.emit {
		t.Fatal("refractory should suppress")
	}
	// after refractory: previous must be the suppressed observation, not the
	// last emitted one
	obs := d.observe(0.95, 0, t0.Add(2*time.Hour))
	if !obs.emit {
		t.Fatal("expected emission after refractory")
	}
	if math.Abs(obs.previous-0.9) > 1e-9 {
		t.Errorf("previous = %f, want 0.9 (latest observation)", obs.previous)
	}
}

func TestEffectiveThresholdShrinksWithAlertness(t *testing.T) {
	d := detector{cfg: DefaultConfig()}
	prev := math.Inf(1)
	for a := 0.0; a <= 1.0; a += 0.1 {
		eff := d.effectiveThreshold(a)
		if eff > prev {
			t.Errorf("threshold rose with alertness: %f -> %f at a=%f", prev, eff, a)
		}
		if eff < d.cfg.MinAbsoluteChange {
			t.Errorf("threshold %f below floor %f", eff, d.cfg.MinAbsoluteChange)
		}
		prev = eff
	}
}

func TestModeNeuronEmitsOnTransitionOnly(t *testing.T) {
	energy := func(s types.AgentState) []Input {
		return []Input{{Name: "energy", Value: s.Energy, Weight: 1}}
	}
	n := NewMode("mode_test", types.SignalAlertness, types.PriorityNormal, 0, 0.1, AlertnessModes, energy)

	sig := n.Check(types.AgentState{Energy: 0.6}, 0, "t1")
	if sig == nil {
		t.Fatal("baseline mode should emit above floor")
	}
	if sig.Data["mode"] != "normal" {
		t.Errorf("mode = %v, want normal", sig.Data["mode"])
	}

	if sig := n.Check(types.AgentState{Energy: 0.65}, 0, "t2"); sig != nil {
		t.Error("same mode should not emit")
	}

	sig = n.Check(types.AgentState{Energy: 0.8}, 0, "t3")
	if sig == nil {
		t.Fatal("normal -> alert should emit")
	}
	if sig.Data["previous_mode"] != "normal" || sig.Data["mode"] != "alert" {
		t.Errorf("transition = %v -> %v, want normal -> alert", sig.Data["previous_mode"], sig.Data["mode"])
	}
}

func TestModeBookkeepingOnSilentBaseline(t *testing.T) {
	energy := func(s types.AgentState) []Input {
		return []Input{{Name: "energy", Value: s.Energy, Weight: 1}}
	}
	n := NewMode("mode_test", types.SignalAlertness, types.PriorityNormal, time.Hour, 0.1, AlertnessModes, energy)

	// baseline below floor: records "sleep" without emitting
	if sig := n.Check(types.AgentState{Energy: 0.05}, 0, "t1"); sig != nil {
		t.Fatal("baseline below floor should stay silent")
	}
	// first real transition still passes the refractory gate (no prior emission)
	sig := n.Check(types.AgentState{Energy: 0.8}, 0, "t2")
	if sig == nil {
		t.Fatal("sleep -> alert should emit")
	}
	if sig.Data["previous_mode"] != "sleep" {
		t.Errorf("previous_mode = %v, want sleep (silent baseline must still set mode)", sig.Data["previous_mode"])
	}
}

func TestEngineSweepIsolatesPanics(t *testing.T) {
	e := NewEngine()
	if err := e.Register(&panicNeuron{}); err != nil {
		t.Fatal(err)
	}
	cfg := DefaultConfig()
	if err := e.Register(testDrive(cfg)); err != nil {
		t.Fatal(err)
	}

	signals := e.Sweep(types.AgentState{SocialDebt: 0.5, Energy: 0.5}, "t1")
	if len(signals) != 1 {
		t.Fatalf("expected the healthy neuron's baseline, got %d signals", len(signals))
	}
	if signals[0].Source != "neuron.test_drive" {
		t.Errorf("unexpected source %s", signals[0].Source)
	}
}

func TestEngineRejectsDuplicateIDs(t *testing.T) {
	e := NewEngine()
	cfg := DefaultConfig()
	if err := e.Register(testDrive(cfg)); err != nil {
		t.Fatal(err)
	}
	if err := e.Register(testDrive(cfg)); err == nil {
		t.Error("duplicate id should be rejected")
	}
}

type panicNeuron struct{}

func (p *panicNeuron) ID() string { return "panics" }
func (p *panicNeuron) Check(types.AgentState, float64, string) *types.Signal {
	panic("synthetic failure")
}
func (p *panicNeuron) Reset() {}
