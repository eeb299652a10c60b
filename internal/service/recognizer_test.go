package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"sync/atomic"
	"testing"

	"github.com/alparslanahmed/digitnorm"
	"github.com/alparslanahmed/digitnorm/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClassifier struct {
	calls atomic.Int32
	pred  *digitnorm.Prediction
	err   error
}

func (s *stubClassifier) Predict(_ context.Context, features []float32) (*digitnorm.Prediction, error) {
	s.calls.Add(1)
	if err := digitnorm.CheckFeatures(features); err != nil {
		return nil, err
	}
	return s.pred, s.err
}

func oneHot(label int) *digitnorm.Prediction {
	p := make([]float64, digitnorm.NumClasses)
	p[label] = 1
	return &digitnorm.Prediction{Label: label, Probabilities: p}
}

// sheet returns a PNG of a white 100x100 page with a black ink rectangle.
func sheet(t *testing.T, ink image.Rectangle) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 100, 100))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(img, ink, image.NewUniform(color.Black), image.Point{}, draw.Src)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newRecognizer(c digitnorm.Classifier, opts Options) *Recognizer {
	return NewRecognizer(c, opts, logger.NewLogger(logger.TestConfig()))
}

func TestRecognizer_Recognize(t *testing.T) {
	square := image.Rect(10, 10, 50, 50)

	t.Run("Should classify a normalized image", func(t *testing.T) {
		stub := &stubClassifier{pred: oneHot(4)}
		r := newRecognizer(stub, DefaultOptions())

		rec, err := r.Recognize(t.Context(), Request{Data: sheet(t, square), Filename: "square.png"})
		require.NoError(t, err)
		assert.Equal(t, 4, rec.Prediction.Label)
		assert.Len(t, rec.Result.Features, digitnorm.FeatureLen)
		assert.Equal(t, square, rec.Result.Trace.Box)
		assert.Equal(t, int32(1), stub.calls.Load())
	})

	t.Run("Should gate empty canvases before the classifier", func(t *testing.T) {
		stub := &stubClassifier{pred: oneHot(0)}
		r := newRecognizer(stub, DefaultOptions())

		_, err := r.Recognize(t.Context(), Request{Data: sheet(t, image.Rectangle{}), Canvas: true})
		assert.ErrorIs(t, err, ErrEmptyCanvas)
		assert.Zero(t, stub.calls.Load())
	})

	t.Run("Should gate faint canvas strokes", func(t *testing.T) {
		r := newRecognizer(&stubClassifier{pred: oneHot(0)}, DefaultOptions())
		dot := image.Rect(40, 40, 45, 45)

		_, err := r.Recognize(t.Context(), Request{Data: sheet(t, dot), Canvas: true})
		assert.ErrorIs(t, err, ErrEmptyCanvas)

		// Uploads skip the gate, so the same dot is normalized.
		rec, err := r.Recognize(t.Context(), Request{Data: sheet(t, dot)})
		require.NoError(t, err)
		assert.Equal(t, dot, rec.Result.Trace.Box)
	})

	t.Run("Should report no digit on blank uploads", func(t *testing.T) {
		r := newRecognizer(&stubClassifier{pred: oneHot(0)}, DefaultOptions())

		_, err := r.Recognize(t.Context(), Request{Data: sheet(t, image.Rectangle{})})
		assert.ErrorIs(t, err, digitnorm.ErrNoDigitFound)
	})

	t.Run("Should return decode errors for garbage", func(t *testing.T) {
		r := newRecognizer(&stubClassifier{pred: oneHot(0)}, DefaultOptions())

		_, err := r.Recognize(t.Context(), Request{Data: []byte("not an image")})
		assert.True(t, digitnorm.IsDecodeError(err))
	})

	t.Run("Should reject an unknown invert mode", func(t *testing.T) {
		r := newRecognizer(&stubClassifier{pred: oneHot(0)}, DefaultOptions())

		_, err := r.Recognize(t.Context(), Request{Data: sheet(t, square), Invert: "sideways"})
		assert.ErrorIs(t, err, ErrInvalidRequest)
	})

	t.Run("Should honor the per-request invert override", func(t *testing.T) {
		r := newRecognizer(&stubClassifier{pred: oneHot(0)}, DefaultOptions())

		rec, err := r.Recognize(t.Context(), Request{Data: sheet(t, square), Invert: "never"})
		// Without inversion the white page is the ink and fills the frame.
		require.NoError(t, err)
		assert.False(t, rec.Result.Trace.Inverted)
		assert.Equal(t, image.Rect(0, 0, 100, 100), rec.Result.Trace.Box)
	})

	t.Run("Should wrap classifier failures", func(t *testing.T) {
		backend := errors.New("backend down")
		r := newRecognizer(&stubClassifier{err: backend}, DefaultOptions())

		_, err := r.Recognize(t.Context(), Request{Data: sheet(t, square)})
		assert.ErrorIs(t, err, ErrClassification)
		assert.ErrorIs(t, err, backend)
	})

	t.Run("Should reject invalid predictions", func(t *testing.T) {
		bad := &digitnorm.Prediction{Label: 12, Probabilities: []float64{1}}
		r := newRecognizer(&stubClassifier{pred: bad}, DefaultOptions())

		_, err := r.Recognize(t.Context(), Request{Data: sheet(t, square)})
		assert.ErrorIs(t, err, ErrClassification)
	})

	t.Run("Should fail without a classifier", func(t *testing.T) {
		r := newRecognizer(nil, DefaultOptions())

		_, err := r.Recognize(t.Context(), Request{Data: sheet(t, square)})
		assert.ErrorIs(t, err, ErrClassification)
	})

	t.Run("Should stop on a cancelled context", func(t *testing.T) {
		r := newRecognizer(&stubClassifier{pred: oneHot(0)}, DefaultOptions())
		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		_, err := r.Recognize(ctx, Request{Data: sheet(t, square)})
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("Should work with the heuristic classifier", func(t *testing.T) {
		r := newRecognizer(digitnorm.NewHeuristicClassifier(), DefaultOptions())

		rec, err := r.Recognize(t.Context(), Request{Data: sheet(t, image.Rect(46, 20, 54, 60))})
		require.NoError(t, err)
		assert.Equal(t, 1, rec.Prediction.Label)
	})
}

func TestRecognizer_Normalize(t *testing.T) {
	t.Run("Should match direct and staged normalization", func(t *testing.T) {
		data := sheet(t, image.Rect(20, 30, 60, 70))

		direct, err := newRecognizer(nil, DefaultOptions()).Normalize(t.Context(), Request{Data: data})
		require.NoError(t, err)

		opts := DefaultOptions()
		opts.Stage = true
		t.Setenv("TMPDIR", t.TempDir())
		staged, err := newRecognizer(nil, opts).Normalize(t.Context(), Request{Data: data})
		require.NoError(t, err)

		assert.Equal(t, direct.Features, staged.Features)
		assert.Equal(t, direct.Trace, staged.Trace)
	})
}

func TestRecognizer_RecognizeBatch(t *testing.T) {
	t.Run("Should keep per-item outcomes in order", func(t *testing.T) {
		stub := &stubClassifier{pred: oneHot(2)}
		opts := DefaultOptions()
		opts.Concurrency = 2
		r := newRecognizer(stub, opts)

		reqs := []Request{
			{Data: sheet(t, image.Rect(10, 10, 50, 50)), Filename: "a.png"},
			{Data: []byte("garbage"), Filename: "b.png"},
			{Data: sheet(t, image.Rect(30, 20, 70, 80)), Filename: "c.png"},
		}
		items, err := r.RecognizeBatch(t.Context(), reqs)
		require.NoError(t, err)
		require.Len(t, items, 3)

		assert.Equal(t, "a.png", items[0].Filename)
		require.NoError(t, items[0].Err)
		assert.Equal(t, 2, items[0].Recognition.Prediction.Label)

		assert.True(t, digitnorm.IsDecodeError(items[1].Err))
		assert.Nil(t, items[1].Recognition)

		require.NoError(t, items[2].Err)
		assert.Equal(t, int32(2), stub.calls.Load())
	})

	t.Run("Should return the context error when cancelled", func(t *testing.T) {
		r := newRecognizer(&stubClassifier{pred: oneHot(2)}, DefaultOptions())
		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		_, err := r.RecognizeBatch(ctx, []Request{{Data: sheet(t, image.Rect(10, 10, 50, 50))}})
		assert.ErrorIs(t, err, context.Canceled)
	})
}
