package model

import (
	"math"

	"github.com/rotisserie/eris"
)

// QualityMetrics holds the four component scores of a Result, each in [0,1].
// The overall score is always derived from these via Overall and never stored.
type QualityMetrics struct {
	Completeness float64 `json:"completeness"`
	Reliability  float64 `json:"reliability"`
	Consistency  float64 `json:"consistency"`
	Validation   float64 `json:"validation"`
}

// Weights are the coefficients of the overall score. They must sum to 1.
type Weights struct {
	Completeness float64 `json:"completeness" yaml:"completeness" mapstructure:"completeness"`
	Reliability  float64 `json:"reliability" yaml:"reliability" mapstructure:"reliability"`
	Consistency  float64 `json:"consistency" yaml:"consistency" mapstructure:"consistency"`
	Validation   float64 `json:"validation" yaml:"validation" mapstructure:"validation"`
}

// DefaultWeights favors source reliability.
func DefaultWeights() Weights {
	return Weights{
		Completeness: 0.25,
		Reliability:  0.40,
		Consistency:  0.15,
		Validation:   0.20,
	}
}

// Sum returns the total of all coefficients.
func (w Weights) Sum() float64 {
	return w.Completeness + w.Reliability + w.Consistency + w.Validation
}

// Validate checks that no coefficient is negative and that they sum to 1.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"completeness": w.Completeness,
		"reliability":  w.Reliability,
		"consistency":  w.Consistency,
		"validation":   w.Validation,
	} {
		if v < 0 || math.IsNaN(v) {
			return eris.Errorf("weight %s must be >= 0, got %v", name, v)
		}
	}
	if sum := w.Sum(); math.Abs(sum-1) > 1e-6 {
		return eris.Errorf("weights must sum to 1, got %.4f", sum)
	}
	return nil
}

// Overall computes the weighted sum of the components.
func (q QualityMetrics) Overall(w Weights) float64 {
	return w.Completeness*q.Completeness +
		w.Reliability*q.Reliability +
		w.Consistency*q.Consistency +
		w.Validation*q.Validation
}

// Clamped returns a copy with every component limited to [0,1].
func (q QualityMetrics) Clamped() QualityMetrics {
	return QualityMetrics{
		Completeness: Clamp01(q.Completeness),
		Reliability:  Clamp01(q.Reliability),
		Consistency:  Clamp01(q.Consistency),
		Validation:   Clamp01(q.Validation),
	}
}

// Clamp01 limits v to [0,1]. NaN becomes 0.
func Clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// Ratio returns n/d, or 0 when d is zero.
func Ratio(n, d int) float64 {
	if d <= 0 {
		return 0
	}
	return float64(n) / float64(d)
}
