package digitnorm

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// Classifier maps a feature vector of FeatureLen values to a digit.
// Implementations own any model state; load them once and share the value.
type Classifier interface {
	Predict(ctx context.Context, features []float32) (*Prediction, error)
}

// Prediction is a classifier answer.
type Prediction struct {
	Label         int       `json:"label"`
	Probabilities []float64 `json:"probabilities"`
}

// Confidence returns the probability of the predicted label.
func (p *Prediction) Confidence() float64 {
	if p.Label < 0 || p.Label >= len(p.Probabilities) {
		return 0
	}
	return p.Probabilities[p.Label]
}

// Validate checks the label range and that the distribution covers
// NumClasses labels and sums to one.
func (p *Prediction) Validate() error {
	if p.Label < 0 || p.Label >= NumClasses {
		return fmt.Errorf("label %d out of range [0,%d]", p.Label, NumClasses-1)
	}
	if len(p.Probabilities) != NumClasses {
		return fmt.Errorf("got %d probabilities, want %d", len(p.Probabilities), NumClasses)
	}
	sum := 0.0
	for _, v := range p.Probabilities {
		if v < 0 || math.IsNaN(v) {
			return fmt.Errorf("invalid probability %v", v)
		}
		sum += v
	}
	if math.Abs(sum-1) > 1e-3 {
		return fmt.Errorf("probabilities sum to %.4f", sum)
	}
	return nil
}

// CheckFeatures validates a feature vector before it is sent to a classifier.
func CheckFeatures(features []float32) error {
	if len(features) != FeatureLen {
		return fmt.Errorf("got %d features, want %d", len(features), FeatureLen)
	}
	for i, v := range features {
		if v < 0 || v > 1 || math.IsNaN(float64(v)) {
			return fmt.Errorf("feature %d out of range: %v", i, v)
		}
	}
	return nil
}

// PredictionFromScores builds a prediction from raw per-class outputs.
// Outputs that already form a distribution are kept; anything else is
// treated as logits and passed through softmax.
func PredictionFromScores(scores []float32) (*Prediction, error) {
	if len(scores) != NumClasses {
		return nil, fmt.Errorf("got %d class scores, want %d", len(scores), NumClasses)
	}
	probs := make([]float64, len(scores))
	for i, s := range scores {
		probs[i] = float64(s)
	}
	if !isDistribution(probs) {
		probs = softmax(probs, 1)
	}
	return &Prediction{Label: argmax(probs), Probabilities: probs}, nil
}

// ErrClassifierUnavailable is returned by classifiers whose backend cannot be reached.
var ErrClassifierUnavailable = errors.New("classifier unavailable")

func isDistribution(v []float64) bool {
	sum := 0.0
	for _, x := range v {
		if x < 0 || x > 1 {
			return false
		}
		sum += x
	}
	return math.Abs(sum-1) < 1e-3
}

func softmax(v []float64, temperature float64) []float64 {
	out := make([]float64, len(v))
	peak := math.Inf(-1)
	for _, x := range v {
		peak = math.Max(peak, x)
	}
	sum := 0.0
	for i, x := range v {
		out[i] = math.Exp((x - peak) / temperature)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

func argmax(v []float64) int {
	best := 0
	for i, x := range v {
		if x > v[best] {
			best = i
		}
	}
	return best
}
