// Package onnx runs a digit model exported to ONNX through the ONNX Runtime
// shared library.
package onnx

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/alparslanahmed/digitnorm"
	ort "github.com/yalue/onnxruntime_go"
)

// Layout is the input tensor shape the model expects.
type Layout string

const (
	// LayoutFlat feeds a [1,784] tensor, as produced by the normalizer.
	LayoutFlat Layout = "flat"
	// LayoutImage feeds a [1,1,28,28] tensor for convolutional models.
	LayoutImage Layout = "image"
)

func (l Layout) shape() (ort.Shape, error) {
	switch l {
	case LayoutFlat, "":
		return ort.NewShape(1, digitnorm.FeatureLen), nil
	case LayoutImage:
		return ort.NewShape(1, 1, digitnorm.CanvasSize, digitnorm.CanvasSize), nil
	default:
		return nil, fmt.Errorf("unknown input layout %q", l)
	}
}

type Options struct {
	ModelPath   string
	RuntimePath string
	Layout      Layout
	Threads     int
}

var (
	initOnce sync.Once
	initErr  error
)

// initRuntime loads the shared library. ONNX Runtime allows one environment
// per process, so the first caller's path wins.
func initRuntime(path string) error {
	initOnce.Do(func() {
		if path != "" {
			ort.SetSharedLibraryPath(path)
		}
		initErr = ort.InitializeEnvironment()
	})
	return initErr
}

// Classifier implements digitnorm.Classifier on an ONNX session.
type Classifier struct {
	mu      sync.Mutex
	session *ort.DynamicAdvancedSession
	options *ort.SessionOptions
	shape   ort.Shape
	input   string
	output  string
}

var _ digitnorm.Classifier = (*Classifier)(nil)

// New loads the model. Close releases the session.
func New(opts Options) (*Classifier, error) {
	if opts.ModelPath == "" {
		return nil, errors.New("model path is required")
	}
	shape, err := opts.Layout.shape()
	if err != nil {
		return nil, err
	}
	if err := initRuntime(opts.RuntimePath); err != nil {
		return nil, fmt.Errorf("failed to initialize onnxruntime: %w", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(opts.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read model info: %w", err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, fmt.Errorf("model %s has no inputs or outputs", opts.ModelPath)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, err
	}
	if err := options.SetIntraOpNumThreads(max(opts.Threads, 1)); err != nil {
		options.Destroy()
		return nil, fmt.Errorf("failed to set intra-op threads: %w", err)
	}
	if err := options.SetInterOpNumThreads(1); err != nil {
		options.Destroy()
		return nil, fmt.Errorf("failed to set inter-op threads: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(
		opts.ModelPath,
		[]string{inputs[0].Name},
		[]string{outputs[0].Name},
		options,
	)
	if err != nil {
		options.Destroy()
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &Classifier{
		session: session,
		options: options,
		shape:   shape,
		input:   inputs[0].Name,
		output:  outputs[0].Name,
	}, nil
}

// Predict runs one forward pass. Logit outputs are turned into
// probabilities with softmax.
func (c *Classifier) Predict(ctx context.Context, features []float32) (*digitnorm.Prediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := digitnorm.CheckFeatures(features); err != nil {
		return nil, err
	}

	input, err := ort.NewTensor(c.shape, append([]float32(nil), features...))
	if err != nil {
		return nil, err
	}
	defer input.Destroy()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil, fmt.Errorf("%w: session closed", digitnorm.ErrClassifierUnavailable)
	}

	outputs := []ort.Value{nil}
	if err := c.session.Run([]ort.Value{input}, outputs); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	if outputs[0] == nil {
		return nil, errors.New("model produced no output")
	}
	defer outputs[0].Destroy()

	tensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unsupported output type for %s", c.output)
	}
	return digitnorm.PredictionFromScores(tensor.GetData())
}

func (c *Classifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		c.session.Destroy()
		c.session = nil
	}
	if c.options != nil {
		c.options.Destroy()
		c.options = nil
	}
	return nil
}
