package neuron

import (
	"math"
	"testing"

	"github.com/wisp-agent/wisp/internal/types"
)

func TestScoreWeightedMean(t *testing.T) {
	score, _ := Score([]Input{
		{Name: "a", Value: 1.0, Weight: 0.5},
		{Name: "b", Value: 0.0, Weight: 0.5},
	})
	if math.Abs(score-0.5) > 1e-9 {
		t.Errorf("expected 0.5, got %f", score)
	}

	score, _ = Score([]Input{
		{Name: "a", Value: 0.8, Weight: 0.75},
		{Name: "b", Value: 0.2, Weight: 0.25},
	})
	want := 0.8*0.75 + 0.2*0.25 // weights already sum to 1
	if math.Abs(score-want) > 1e-9 {
		t.Errorf("expected %f, got %f", want, score)
	}
}

func TestScoreZeroWeightsYieldZero(t *testing.T) {
	score, contribs := Score([]Input{
		{Name: "a", Value: 0.9, Weight: 0},
		{Name: "b", Value: 0.4, Weight: 0},
	})
	if score != 0 {
		t.Errorf("expected 0 with all-zero weights, got %f", score)
	}
	for k, v := range contribs {
		if v != 0 {
			t.Errorf("contribution %s should be 0, got %f", k, v)
		}
	}
}

func TestScoreClampsInputs(t *testing.T) {
	score, _ := Score([]Input{
		{Name: "hot", Value: 3.5, Weight: 1.2},
		{Name: "cold", Value: -2.0, Weight: 1.0},
	})
	// clamps to value 1 weight 1 and value 0 weight 1
	if math.Abs(score-0.5) > 1e-9 {
		t.Errorf("expected 0.5 after clamping, got %f", score)
	}
}

func TestScoreAlwaysInRange(t *testing.T) {
	values := []float64{-1, 0, 0.3, 0.7, 1, 2}
	for _, v1 := range values {
		for _, v2 := range values {
			for _, w := range []float64{0, 0.5, 1, 1.5} {
				score, _ := Score([]Input{
					{Name: "x", Value: v1, Weight: w},
					{Name: "y", Value: v2, Weight: 1 - w},
				})
				if score < 0 || score > 1 {
					t.Fatalf("score out of range: %f (v1=%f v2=%f w=%f)", score, v1, v2, w)
				}
			}
		}
	}
}

func TestScoreContributionsSumToScore(t *testing.T) {
	score, contribs := Score([]Input{
		{Name: "a", Value: 0.9, Weight: 0.6},
		{Name: "b", Value: 0.1, Weight: 0.3},
		{Name: "c", Value: 0.5, Weight: 0.1},
	})
	var sum float64
	for k, v := range contribs {
		if len(k) <= len(types.ContribPrefix) {
			t.Errorf("contribution key %q missing factor name", k)
		}
		sum += v
	}
	if math.Abs(sum-score) > 1e-9 {
		t.Errorf("contributions sum %f != score %f", sum, score)
	}
}
