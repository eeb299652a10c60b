package digitnorm

import (
	"fmt"
	"image"
	"math"
)

// Normalizer converts digit images into MNIST-like samples.
// It holds no per-call state, so one value may serve concurrent callers
// once configured.
type Normalizer struct {
	invert InvertMode
	log    Logger
}

// NewNormalizer creates a normalizer with automatic polarity handling.
func NewNormalizer() *Normalizer {
	return &Normalizer{
		invert: InvertAuto,
		log:    nopLogger{},
	}
}

// SetInvertMode selects the polarity handling.
func (n *Normalizer) SetInvertMode(mode InvertMode) {
	n.invert = mode
}

// InvertMode returns the configured polarity handling.
func (n *Normalizer) InvertMode() InvertMode {
	return n.invert
}

// SetLogger routes pipeline decisions to l at debug level. nil disables logging.
func (n *Normalizer) SetLogger(l Logger) {
	if l == nil {
		l = nopLogger{}
	}
	n.log = l
}

// Normalize runs the pipeline on an already decoded image.
func (n *Normalizer) Normalize(img image.Image) (*Result, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, decodeError("", fmt.Errorf("empty image"))
	}
	return n.NormalizeField(grayField(img))
}

// NormalizeField runs the pipeline on a grayscale field with samples in [0,255].
// The field is not modified.
func (n *Normalizer) NormalizeField(src *Field) (*Result, error) {
	if src == nil || src.Rows <= 0 || src.Cols <= 0 || len(src.Data) != src.Rows*src.Cols {
		return nil, decodeError("", fmt.Errorf("empty or malformed field"))
	}
	res := &Result{Original: src.Clone()}
	work := src.Clone()

	boostContrast(work, contrastBoost)

	res.Trace.Mean = work.Mean()
	switch n.invert {
	case InvertAlways:
		res.Trace.Inverted = true
	case InvertAuto:
		res.Trace.Inverted = res.Trace.Mean > polarityMean
	}
	if res.Trace.Inverted {
		invert(work)
	}

	scaleBy(work, 1/maxSampleValue)
	binarize(work, inkThreshold)

	box, ok := inkBounds(work)
	if !ok {
		n.log.Debug("no ink after binarization", "mean", res.Trace.Mean, "inverted", res.Trace.Inverted)
		return nil, ErrNoDigitFound
	}
	res.Trace.Box = box

	h, w := fitSize(box.Dy(), box.Dx(), DigitSize)
	digit := resample(crop(work, box), h, w)
	res.Trace.Resized = image.Pt(w, h)

	canvas := NewField(CanvasSize, CanvasSize)
	top := (CanvasSize - h) / 2
	left := (CanvasSize - w) / 2
	paste(canvas, digit, top, left)
	res.Trace.Offset = image.Pt(left, top)

	cy, cx := centerOfMass(canvas)
	shift := image.Pt(centeringShift(cx, canvasCenter), centeringShift(cy, canvasCenter))
	if !math.IsNaN(cy) && !math.IsNaN(cx) {
		res.Trace.Centroid = [2]float64{cy, cx}
	}
	res.Trace.Shift = shift
	if shift != (image.Point{}) {
		canvas = translate(canvas, float64(shift.Y), float64(shift.X))
	}

	res.Canvas = canvas
	res.Features = flatten(canvas)

	n.log.Debug("normalized digit",
		"mean", res.Trace.Mean,
		"inverted", res.Trace.Inverted,
		"box", box.String(),
		"resized", res.Trace.Resized.String(),
		"shift", shift.String(),
	)
	return res, nil
}
