package digitnorm

import (
	"context"
	"fmt"
	"math"
)

// HeuristicClassifier recognizes digits from hand-tuned shape features.
// It needs no model file, which makes it a fallback for hosts without a
// trained classifier. Accuracy is well below a trained model.
type HeuristicClassifier struct {
	weights     [NumClasses]shapeProfile
	temperature float64
}

// shapeProfile is the expected feature vector of one digit.
type shapeProfile struct {
	horizontalSymmetry float64
	verticalSymmetry   float64
	topHeavy           float64
	leftHeavy          float64
	centerDensity      float64
	aspectRatio        float64
	holeCount          float64
	crossings          float64
}

// NewHeuristicClassifier creates a classifier with built-in digit profiles.
func NewHeuristicClassifier() *HeuristicClassifier {
	c := &HeuristicClassifier{temperature: 0.05}

	// 0: round, symmetric, one hole, wide
	c.weights[0] = shapeProfile{
		horizontalSymmetry: 0.8, verticalSymmetry: 0.7,
		topHeavy: 0.5, leftHeavy: 0.5,
		centerDensity: 0.3, aspectRatio: 0.75,
		holeCount: 0.5, crossings: 0.4,
	}
	// 1: narrow and tall, mass in the middle
	c.weights[1] = shapeProfile{
		horizontalSymmetry: 0.75, verticalSymmetry: 0.7,
		topHeavy: 0.5, leftHeavy: 0.5,
		centerDensity: 0.9, aspectRatio: 0.25,
		holeCount: 0.0, crossings: 0.2,
	}
	// 2: top curve, diagonal, bottom bar
	c.weights[2] = shapeProfile{
		horizontalSymmetry: 0.4, verticalSymmetry: 0.3,
		topHeavy: 0.45, leftHeavy: 0.5,
		centerDensity: 0.4, aspectRatio: 0.7,
		holeCount: 0.0, crossings: 0.3,
	}
	// 3: open on the left, two bumps
	c.weights[3] = shapeProfile{
		horizontalSymmetry: 0.3, verticalSymmetry: 0.6,
		topHeavy: 0.5, leftHeavy: 0.35,
		centerDensity: 0.4, aspectRatio: 0.65,
		holeCount: 0.0, crossings: 0.4,
	}
	// 4: vertical on the right, bar across the middle
	c.weights[4] = shapeProfile{
		horizontalSymmetry: 0.4, verticalSymmetry: 0.4,
		topHeavy: 0.55, leftHeavy: 0.45,
		centerDensity: 0.5, aspectRatio: 0.7,
		holeCount: 0.25, crossings: 0.4,
	}
	// 5: top bar, middle, bottom curve
	c.weights[5] = shapeProfile{
		horizontalSymmetry: 0.4, verticalSymmetry: 0.4,
		topHeavy: 0.5, leftHeavy: 0.5,
		centerDensity: 0.45, aspectRatio: 0.65,
		holeCount: 0.0, crossings: 0.3,
	}
	// 6: tail on top, loop at the bottom
	c.weights[6] = shapeProfile{
		horizontalSymmetry: 0.5, verticalSymmetry: 0.4,
		topHeavy: 0.4, leftHeavy: 0.55,
		centerDensity: 0.5, aspectRatio: 0.65,
		holeCount: 0.5, crossings: 0.35,
	}
	// 7: top bar, diagonal down
	c.weights[7] = shapeProfile{
		horizontalSymmetry: 0.4, verticalSymmetry: 0.3,
		topHeavy: 0.65, leftHeavy: 0.45,
		centerDensity: 0.35, aspectRatio: 0.65,
		holeCount: 0.0, crossings: 0.2,
	}
	// 8: two stacked loops
	c.weights[8] = shapeProfile{
		horizontalSymmetry: 0.85, verticalSymmetry: 0.7,
		topHeavy: 0.5, leftHeavy: 0.5,
		centerDensity: 0.45, aspectRatio: 0.65,
		holeCount: 1.0, crossings: 0.45,
	}
	// 9: loop on top, tail below
	c.weights[9] = shapeProfile{
		horizontalSymmetry: 0.5, verticalSymmetry: 0.4,
		topHeavy: 0.6, leftHeavy: 0.45,
		centerDensity: 0.5, aspectRatio: 0.6,
		holeCount: 0.5, crossings: 0.35,
	}

	return c
}

// Predict implements Classifier.
func (c *HeuristicClassifier) Predict(ctx context.Context, features []float32) (*Prediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := CheckFeatures(features); err != nil {
		return nil, fmt.Errorf("heuristic classifier: %w", err)
	}

	canvas := &Field{Rows: CanvasSize, Cols: CanvasSize, Data: features}
	f := extractShape(canvas)

	scores := make([]float64, NumClasses)
	for digit := range scores {
		scores[digit] = matchScore(f, c.weights[digit])
	}
	probs := softmax(scores, c.temperature)
	return &Prediction{Label: argmax(probs), Probabilities: probs}, nil
}

func matchScore(f, w shapeProfile) float64 {
	score := 0.0
	score += 1.0 - math.Abs(f.horizontalSymmetry-w.horizontalSymmetry)
	score += 1.0 - math.Abs(f.verticalSymmetry-w.verticalSymmetry)
	score += 1.0 - math.Abs(f.topHeavy-w.topHeavy)
	score += 1.0 - math.Abs(f.leftHeavy-w.leftHeavy)
	score += 1.0 - math.Abs(f.centerDensity-w.centerDensity)
	score += (1.0 - math.Abs(f.aspectRatio-w.aspectRatio)) * 1.5
	score += (1.0 - math.Abs(f.holeCount-w.holeCount)) * 1.5 // holes separate 0/6/8/9 from the rest
	score += 1.0 - math.Abs(f.crossings-w.crossings)
	return score / 9.0
}
