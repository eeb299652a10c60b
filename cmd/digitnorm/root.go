package main

import (
	"fmt"

	"github.com/alparslanahmed/digitnorm"
	"github.com/alparslanahmed/digitnorm/classifier/onnx"
	"github.com/alparslanahmed/digitnorm/classifier/remote"
	"github.com/alparslanahmed/digitnorm/internal/config"
	"github.com/alparslanahmed/digitnorm/internal/logger"
	"github.com/alparslanahmed/digitnorm/internal/service"
	"github.com/spf13/cobra"
)

// flagKeys maps command line flags onto configuration keys. Only flags the
// user set explicitly override defaults and environment.
var flagKeys = map[string]string{
	"log-level":      "log.level",
	"log-json":       "log.json",
	"log-source":     "log.source",
	"invert":         "pipeline.invert",
	"min-ink":        "pipeline.min_ink_pixels",
	"concurrency":    "pipeline.concurrency",
	"classifier":     "classifier.backend",
	"classifier-url": "classifier.url",
	"model":          "classifier.model_path",
	"onnx-runtime":   "classifier.runtime_path",
	"input-layout":   "classifier.input_layout",
	"host":           "server.host",
	"port":           "server.port",
	"stage-uploads":  "server.stage_uploads",
}

// app carries what PersistentPreRunE resolved for the subcommands.
type app struct {
	cfg *config.Config
	log logger.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "digitnorm",
		Short:         "Normalize handwritten digit images into MNIST-like samples",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(flagOverrides(cmd))
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.log = logger.NewLogger(&logger.Config{
				Level:      logger.ParseLevel(cfg.Log.Level),
				Output:     cmd.ErrOrStderr(),
				JSON:       cfg.Log.JSON,
				AddSource:  cfg.Log.Source,
				TimeFormat: "15:04:05",
			})
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.String("log-level", "info", "Log level (debug, info, warn, error, disabled)")
	flags.Bool("log-json", false, "Emit logs as JSON")
	flags.Bool("log-source", false, "Include source locations in logs")
	flags.String("invert", "auto", "Polarity handling (auto, always, never)")

	root.AddCommand(
		newNormalizeCmd(a),
		newPredictCmd(a),
		newServeCmd(a),
	)
	return root
}

func flagOverrides(cmd *cobra.Command) map[string]any {
	out := make(map[string]any)
	for name, key := range flagKeys {
		f := cmd.Flags().Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		out[key] = f.Value.String()
	}
	return out
}

func (a *app) recognizerOptions() (service.Options, error) {
	mode, err := digitnorm.ParseInvertMode(a.cfg.Pipeline.Invert)
	if err != nil {
		return service.Options{}, err
	}
	return service.Options{
		Invert:       mode,
		MinInkPixels: a.cfg.Pipeline.MinInkPixels,
		Stage:        a.cfg.Server.StageUploads,
		Concurrency:  a.cfg.Pipeline.Concurrency,
	}, nil
}

// classifier builds the configured backend. The returned func releases it.
func (a *app) classifier() (digitnorm.Classifier, func(), error) {
	c := a.cfg.Classifier
	switch c.Backend {
	case "remote":
		client, err := remote.New(remote.Options{BaseURL: c.URL, Timeout: c.Timeout, Retries: c.Retries})
		if err != nil {
			return nil, nil, err
		}
		return client, func() {}, nil
	case "onnx":
		model, err := onnx.New(onnx.Options{
			ModelPath:   c.ModelPath,
			RuntimePath: c.RuntimePath,
			Layout:      onnx.Layout(c.InputLayout),
		})
		if err != nil {
			return nil, nil, err
		}
		return model, func() { _ = model.Close() }, nil
	case "heuristic", "":
		return digitnorm.NewHeuristicClassifier(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown classifier backend %q", c.Backend)
	}
}

func addClassifierFlags(cmd *cobra.Command) {
	cmd.Flags().String("classifier", "heuristic", "Classifier backend (heuristic, remote, onnx)")
	cmd.Flags().String("classifier-url", "", "Inference service URL for the remote backend")
	cmd.Flags().String("model", "", "ONNX model path for the onnx backend")
	cmd.Flags().String("onnx-runtime", "", "Path to the onnxruntime shared library")
	cmd.Flags().String("input-layout", "flat", "ONNX input layout (flat, image)")
	cmd.Flags().Int("min-ink", 30, "Minimum dark pixels for canvas input")
}
