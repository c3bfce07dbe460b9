package backend

import (
	"context"
	"fmt"
	"time"
)

// Tier names a reasoning capability level
type Tier string

const (
	TierStandard  Tier = "standard"
	TierEscalated Tier = "escalated"
)

// TierConfig configures one capability level
type TierConfig struct {
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"` // per-request wall clock
}

// TierSet holds the two backends the cognition loop can run against.
// Escalation switches from Standard to Escalated exactly once per loop.
type TierSet struct {
	backends map[Tier]Backend
	timeouts map[Tier]time.Duration
}

// NewTierSet wires both tiers against the same endpoint
func NewTierSet(apiKey, baseURL string, standard, escalated TierConfig) (*TierSet, error) {
	std, err := NewOpenAIClient(apiKey, baseURL, standard.Model)
	if err != nil {
		return nil, fmt.Errorf("standard tier: %w", err)
	}
	esc, err := NewOpenAIClient(apiKey, baseURL, escalated.Model)
	if err != nil {
		return nil, fmt.Errorf("escalated tier: %w", err)
	}
	ts := &TierSet{
		backends: map[Tier]Backend{TierStandard: std, TierEscalated: esc},
		timeouts: map[Tier]time.Duration{TierStandard: standard.Timeout, TierEscalated: escalated.Timeout},
	}
	return ts, nil
}

// NewTierSetFrom builds a TierSet from existing backends, used by tests to
// substitute fakes
func NewTierSetFrom(standard, escalated Backend, standardTimeout, escalatedTimeout time.Duration) *TierSet {
	return &TierSet{
		backends: map[Tier]Backend{TierStandard: standard, TierEscalated: escalated},
		timeouts: map[Tier]time.Duration{TierStandard: standardTimeout, TierEscalated: escalatedTimeout},
	}
}

// Get returns the backend for a tier
func (ts *TierSet) Get(tier Tier) (Backend, bool) {
	b, ok := ts.backends[tier]
	return b, ok
}

// Complete runs one request on the given tier under its configured timeout
func (ts *TierSet) Complete(ctx context.Context, tier Tier, req Request) (Response, error) {
	b, ok := ts.backends[tier]
	if !ok {
		return Response{FinishReason: FinishError}, fmt.Errorf("unknown tier %q", tier)
	}
	if timeout := ts.timeouts[tier]; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return b.Complete(ctx, req)
}

// Model reports the model name behind a tier, for audit entries
func (ts *TierSet) Model(tier Tier) string {
	if b, ok := ts.backends[tier]; ok {
		return b.Model()
	}
	return ""
}
