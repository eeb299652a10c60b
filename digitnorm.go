/*
Package digitnorm turns a photographed or hand-drawn digit into an MNIST-like sample.

The normalizer boosts contrast to drop paper shadows, flips polarity so ink is bright on a
dark background, binarizes, crops the ink, rescales the longer side to 20 pixels, pads to a
28x28 canvas and re-centers by center of mass. The resulting 784 values feed any
Classifier.

Usage:

	n := digitnorm.NewNormalizer()
	res, err := n.NormalizeFile("five.jpg")
	if errors.Is(err, digitnorm.ErrNoDigitFound) {
		// ask the user to draw more clearly
	}
	pred, err := digitnorm.NewHeuristicClassifier().Predict(ctx, res.Features)
*/
package digitnorm

import "image"

const (
	// CanvasSize is the side of the normalized square canvas.
	CanvasSize = 28
	// DigitSize is the longer side of the digit after rescaling.
	DigitSize = 20
	// FeatureLen is the length of the flattened canvas.
	FeatureLen = CanvasSize * CanvasSize
	// NumClasses is the size of the label space.
	NumClasses = 10

	contrastBoost  = 3.0
	polarityMean   = 127.0
	inkThreshold   = 0.25
	canvasCenter   = CanvasSize / 2
	maxSampleValue = 255.0
)

// Result holds the normalized sample and the diagnostics produced along the way.
type Result struct {
	// Features is the row-major flatten of Canvas, FeatureLen values in [0,1].
	Features []float32 `json:"features"`

	// Original is the grayscale source in [0,255], same size as the input.
	Original *Field `json:"-"`

	// Canvas is the final 28x28 field in [0,1].
	Canvas *Field `json:"-"`

	Trace Trace `json:"trace"`
}

// Trace records the decisions the pipeline took for one image.
type Trace struct {
	Mean     float64         `json:"mean"`
	Inverted bool            `json:"inverted"`
	Box      image.Rectangle `json:"box"`
	Resized  image.Point     `json:"resized"`
	Offset   image.Point     `json:"offset"`
	Centroid [2]float64      `json:"centroid"`
	Shift    image.Point     `json:"shift"`
}
