package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alparslanahmed/digitnorm"
	"github.com/alparslanahmed/digitnorm/internal/logger"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrEmptyCanvas is returned for canvas input with too little ink to
	// hold a digit.
	ErrEmptyCanvas = errors.New("canvas is empty")
	// ErrClassification wraps any failure of the classifier backend.
	ErrClassification = errors.New("classification failed")
	// ErrInvalidRequest marks malformed request options.
	ErrInvalidRequest = errors.New("invalid request")
)

// Request is one image to recognize.
type Request struct {
	Data     []byte
	Filename string
	// Canvas marks drawn input, which passes the ink gate before normalization.
	Canvas bool
	// Invert overrides the configured polarity handling when not empty.
	Invert string
}

// Recognition is the outcome of a request.
type Recognition struct {
	Prediction *digitnorm.Prediction
	Result     *digitnorm.Result
	Duration   time.Duration
}

// BatchItem pairs a batch request with its outcome.
type BatchItem struct {
	Filename    string
	Recognition *Recognition
	Err         error
}

type Options struct {
	Invert       digitnorm.InvertMode
	MinInkPixels int
	// Stage routes decoded images through a temporary file before normalization.
	Stage       bool
	Concurrency int
}

func DefaultOptions() Options {
	return Options{
		Invert:       digitnorm.InvertAuto,
		MinInkPixels: digitnorm.DefaultMinInkPixels,
		Concurrency:  4,
	}
}

// Recognizer chains decoding, the ink gate, the normalizer and a classifier.
// The classifier is loaded by the caller and shared across requests.
type Recognizer struct {
	classifier digitnorm.Classifier
	opts       Options
	log        logger.Logger
}

func NewRecognizer(c digitnorm.Classifier, opts Options, log logger.Logger) *Recognizer {
	if log == nil {
		log = logger.NewLogger(logger.TestConfig())
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Recognizer{classifier: c, opts: opts, log: log}
}

func (r *Recognizer) normalizer(invert string) (*digitnorm.Normalizer, error) {
	mode := r.opts.Invert
	if invert != "" {
		m, err := digitnorm.ParseInvertMode(invert)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		mode = m
	}
	n := digitnorm.NewNormalizer()
	n.SetInvertMode(mode)
	n.SetLogger(r.log)
	return n, nil
}

// Normalize decodes and normalizes req without classifying it.
func (r *Recognizer) Normalize(ctx context.Context, req Request) (*digitnorm.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n, err := r.normalizer(req.Invert)
	if err != nil {
		return nil, err
	}

	img, err := digitnorm.DecodeBytes(req.Data)
	if err != nil {
		return nil, err
	}
	if req.Canvas && !digitnorm.HasInk(img, r.opts.MinInkPixels) {
		return nil, ErrEmptyCanvas
	}

	if r.opts.Stage {
		return n.NormalizeStaged(img)
	}
	return n.Normalize(img)
}

// Recognize normalizes req and classifies the result.
func (r *Recognizer) Recognize(ctx context.Context, req Request) (*Recognition, error) {
	if r.classifier == nil {
		return nil, fmt.Errorf("%w: no classifier configured", ErrClassification)
	}
	start := time.Now()

	res, err := r.Normalize(ctx, req)
	if err != nil {
		return nil, err
	}

	p, err := r.classifier.Predict(ctx, res.Features)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %w", ErrClassification, err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrClassification, err)
	}

	rec := &Recognition{Prediction: p, Result: res, Duration: time.Since(start)}
	r.log.Debug("recognized digit",
		"file", req.Filename,
		"label", p.Label,
		"confidence", p.Confidence(),
		"duration", rec.Duration,
	)
	return rec, nil
}

// RecognizeBatch recognizes reqs concurrently. Per-item failures are
// reported in the items; the error is only set when ctx ends first.
func (r *Recognizer) RecognizeBatch(ctx context.Context, reqs []Request) ([]BatchItem, error) {
	items := make([]BatchItem, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)

	for i, req := range reqs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rec, err := r.Recognize(gctx, req)
			items[i] = BatchItem{Filename: req.Filename, Recognition: rec, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return items, nil
}
