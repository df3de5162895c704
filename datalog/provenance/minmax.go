package provenance

import (
	"fmt"
)

// MinMaxProb approximates probabilistic reasoning without proof
// bookkeeping: the best alternative wins (max) and the weakest link of a
// conjunction dominates (min).
type MinMaxProb struct{}

// NewMinMaxProb returns the min-max probability provenance
func NewMinMaxProb() MinMaxProb {
	return MinMaxProb{}
}

func (MinMaxProb) Name() string  { return "minmaxprob" }
func (MinMaxProb) Zero() float64 { return 0 }
func (MinMaxProb) One() float64  { return 1 }

func (MinMaxProb) Add(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func (MinMaxProb) Mult(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func (MinMaxProb) Negate(tag float64) float64 {
	return 1 - tag
}

func (MinMaxProb) FromInput(input *InputTag) float64 {
	return input.Probability()
}

func (MinMaxProb) Weight(tag float64) float64 { return tag }

func (MinMaxProb) Equal(a, b float64) bool { return a == b }

func (MinMaxProb) Distributive() bool { return true }

func (MinMaxProb) Format(tag float64) string {
	return fmt.Sprintf("%.4f", tag)
}
