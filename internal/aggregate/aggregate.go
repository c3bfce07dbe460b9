// Package aggregate keeps rolling windows of signals bucketed by
// (type, source) and derives per-bucket statistics and trends on read.
package aggregate

import (
	"math"
	"sort"
	"time"

	"github.com/wisp-agent/wisp/internal/logging"
	"github.com/wisp-agent/wisp/internal/types"
)

// Config bounds retention and tunes trend classification
type Config struct {
	Window              time.Duration `yaml:"window"`                 // rolling retention window
	MaxSignalsPerBucket int           `yaml:"max_signals_per_bucket"` // FIFO cap per bucket
	VolatilityThreshold float64       `yaml:"volatility_threshold"`   // CoV above this reads volatile
	TrendThreshold      float64       `yaml:"trend_threshold"`        // mean rate beyond +/- this reads directional
}

func DefaultConfig() Config {
	return Config{
		Window:              5 * time.Minute,
		MaxSignalsPerBucket: 50,
		VolatilityThreshold: 0.5,
		TrendThreshold:      0.05,
	}
}

type bucketKey struct {
	sigType string
	source  string
}

// Aggregator owns the buckets. Single-writer: Add and Prune are called only
// from the scheduling tick, so no internal locking.
type Aggregator struct {
	cfg     Config
	buckets map[bucketKey][]*types.Signal // insertion order, oldest first
}

func New(cfg Config) *Aggregator {
	def := DefaultConfig()
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.MaxSignalsPerBucket <= 0 {
		cfg.MaxSignalsPerBucket = def.MaxSignalsPerBucket
	}
	if cfg.VolatilityThreshold <= 0 {
		cfg.VolatilityThreshold = def.VolatilityThreshold
	}
	if cfg.TrendThreshold <= 0 {
		cfg.TrendThreshold = def.TrendThreshold
	}
	return &Aggregator{
		cfg:     cfg,
		buckets: make(map[bucketKey][]*types.Signal),
	}
}

// Add inserts a signal into its bucket, evicting the oldest entry once the
// bucket is full
func (a *Aggregator) Add(sig *types.Signal) {
	if sig == nil {
		return
	}
	key := bucketKey{sigType: sig.Type, source: sig.Source}
	bucket := append(a.buckets[key], sig)
	if len(bucket) > a.cfg.MaxSignalsPerBucket {
		bucket = bucket[len(bucket)-a.cfg.MaxSignalsPerBucket:]
	}
	a.buckets[key] = bucket
}

// Prune drops signals whose explicit expiry has passed or whose timestamp
// fell out of the rolling window. Returns the number removed; never fails.
func (a *Aggregator) Prune() int {
	now := time.Now()
	cutoff := now.Add(-a.cfg.Window)
	removed := 0
	for key, bucket := range a.buckets {
		kept := bucket[:0]
		for _, sig := range bucket {
			if sig.Expired(now) || sig.Timestamp.Before(cutoff) {
				removed++
				continue
			}
			kept = append(kept, sig)
		}
		if len(kept) == 0 {
			delete(a.buckets, key)
			continue
		}
		a.buckets[key] = kept
	}
	if removed > 0 {
		logging.Debug("aggregate", "pruned %d signals, %d buckets live", removed, len(a.buckets))
	}
	return removed
}

// Aggregate recomputes the rolling view for one (type, source) bucket.
// A missing or empty bucket reads as not found, never as an error.
func (a *Aggregator) Aggregate(sigType, source string) (types.SignalAggregate, bool) {
	bucket := a.buckets[bucketKey{sigType: sigType, source: source}]
	if len(bucket) == 0 {
		return types.SignalAggregate{}, false
	}
	return a.compute(sigType, source, bucket), true
}

// AllAggregates recomputes every live bucket, ordered by type then source
func (a *Aggregator) AllAggregates() []types.SignalAggregate {
	out := make([]types.SignalAggregate, 0, len(a.buckets))
	for key, bucket := range a.buckets {
		if len(bucket) == 0 {
			continue
		}
		out = append(out, a.compute(key.sigType, key.source, bucket))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Source < out[j].Source
	})
	return out
}

// LatestSignal returns the newest retained signal of the given type across
// all sources
func (a *Aggregator) LatestSignal(sigType string) (*types.Signal, bool) {
	var latest *types.Signal
	for key, bucket := range a.buckets {
		if key.sigType != sigType || len(bucket) == 0 {
			continue
		}
		last := bucket[len(bucket)-1]
		if latest == nil || last.Timestamp.After(latest.Timestamp) {
			latest = last
		}
	}
	return latest, latest != nil
}

func (a *Aggregator) compute(sigType, source string, bucket []*types.Signal) types.SignalAggregate {
	latest := bucket[len(bucket)-1]
	agg := types.SignalAggregate{
		Type:         sigType,
		Source:       source,
		CurrentValue: latest.Value(),
		MinValue:     bucket[0].Value(),
		MaxValue:     bucket[0].Value(),
		Count:        len(bucket),
		LastUpdated:  latest.Timestamp,
	}

	values := make([]float64, 0, len(bucket))
	var rates []float64
	for _, sig := range bucket {
		v := sig.Value()
		values = append(values, v)
		if v < agg.MinValue {
			agg.MinValue = v
		}
		if v > agg.MaxValue {
			agg.MaxValue = v
		}
		if r, ok := sig.Metrics[types.MetricRateOfChange]; ok {
			rates = append(rates, r)
		}
	}
	if len(rates) > 0 {
		agg.RateOfChange = mean(rates)
	}
	agg.Trend = a.classifyTrend(values, rates)
	return agg
}

// classifyTrend reads a bucket's movement: volatility (coefficient of
// variation) overrides direction; direction comes from the mean of the
// per-signal rates; under 2 samples there is nothing to classify.
func (a *Aggregator) classifyTrend(values, rates []float64) types.Trend {
	if len(values) < 2 {
		return types.TrendStable
	}
	m := mean(values)
	sd := stdDev(values, m)
	cov := 0.0
	if m != 0 {
		cov = sd / math.Abs(m)
	}
	if cov > a.cfg.VolatilityThreshold {
		return types.TrendVolatile
	}
	if len(rates) > 0 {
		mr := mean(rates)
		if mr > a.cfg.TrendThreshold {
			return types.TrendIncreasing
		}
		if mr < -a.cfg.TrendThreshold {
			return types.TrendDecreasing
		}
	}
	return types.TrendStable
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// population standard deviation
func stdDev(vals []float64, m float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sq float64
	for _, v := range vals {
		d := v - m
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(vals)))
}
