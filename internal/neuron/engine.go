package neuron

import (
	"fmt"

	"github.com/wisp-agent/wisp/internal/logging"
	"github.com/wisp-agent/wisp/internal/types"
)

// Engine owns the neuron registry and runs the per-tick sweep. The
// scheduler holds the engine and passes state snapshots in; neurons never
// reach out to shared state themselves.
type Engine struct {
	order     []Neuron
	byID      map[string]Neuron
	alertness func(types.AgentState) float64
}

func NewEngine() *Engine {
	return &Engine{
		byID:      make(map[string]Neuron),
		alertness: AlertnessScore,
	}
}

// Register adds a neuron; ids must be unique
func (e *Engine) Register(n Neuron) error {
	if _, ok := e.byID[n.ID()]; ok {
		return fmt.Errorf("neuron %q already registered", n.ID())
	}
	e.byID[n.ID()] = n
	e.order = append(e.order, n)
	return nil
}

// Get returns a registered neuron by id
func (e *Engine) Get(id string) (Neuron, bool) {
	n, ok := e.byID[id]
	return n, ok
}

// Alertness computes the readiness score the sweep hands to every neuron
func (e *Engine) Alertness(state types.AgentState) float64 {
	return e.alertness(state)
}

// Sweep evaluates every registered neuron against the snapshot, in
// registration order, and collects emitted signals. One neuron's panic is
// logged and skipped; siblings still evaluate.
func (e *Engine) Sweep(state types.AgentState, correlationID string) []*types.Signal {
	alertness := e.alertness(state)
	var signals []*types.Signal
	for _, n := range e.order {
		if sig := e.checkOne(n, state, alertness, correlationID); sig != nil {
			signals = append(signals, sig)
			logging.Debug("neuron", "%s emitted %s value=%.3f", n.ID(), sig.Type, sig.Value())
		}
	}
	return signals
}

func (e *Engine) checkOne(n Neuron, state types.AgentState, alertness float64, correlationID string) (sig *types.Signal) {
	defer func() {
		if r := recover(); r != nil {
			logging.Warn("neuron", "%s panicked during check: %v", n.ID(), r)
			sig = nil
		}
	}()
	return n.Check(state, alertness, correlationID)
}

// ResetAll clears every neuron's bookkeeping
func (e *Engine) ResetAll() {
	for _, n := range e.order {
		n.Reset()
	}
}
