package neuron

import (
	"math"

	"github.com/wisp-agent/wisp/internal/types"
)

// Input is one named, weighted factor fed to a scoring function
type Input struct {
	Name   string
	Value  float64 // clamped to [0,1] before use
	Weight float64 // clamped to [0,1] before use
}

// Score computes the weighted mean of the inputs: sum(value*weight) /
// sum(weight), 0 when total weight is 0, clamped to [0,1]. The second
// return is the per-input contribution breakdown keyed contrib_<name>;
// contributions sum to the score so a wake decision can be attributed
// factor by factor.
func Score(inputs []Input) (float64, map[string]float64) {
	contribs := make(map[string]float64, len(inputs))
	var weighted, total float64
	for _, in := range inputs {
		weighted += Clamp01(in.Value) * Clamp01(in.Weight)
		total += Clamp01(in.Weight)
	}
	if total == 0 {
		for _, in := range inputs {
			contribs[types.ContribPrefix+in.Name] = 0
		}
		return 0, contribs
	}
	for _, in := range inputs {
		contribs[types.ContribPrefix+in.Name] = Clamp01(in.Value) * Clamp01(in.Weight) / total
	}
	return Clamp01(weighted / total), contribs
}

// Clamp01 clamps v to [0,1]
func Clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
