package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/alparslanahmed/digitnorm"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type featuresFile struct {
	Source   string          `json:"source"`
	Features []float32       `json:"features"`
	Trace    digitnorm.Trace `json:"trace"`
}

func newNormalizeCmd(a *app) *cobra.Command {
	var (
		outDir string
		ascii  bool
	)
	cmd := &cobra.Command{
		Use:   "normalize <image>...",
		Short: "Write the 28x28 canvas, a preview and the feature vector for each image",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := digitnorm.ParseInvertMode(a.cfg.Pipeline.Invert)
			if err != nil {
				return err
			}

			results := make([]*digitnorm.Result, len(args))
			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(a.cfg.Pipeline.Concurrency)
			for i, path := range args {
				g.Go(func() error {
					if err := ctx.Err(); err != nil {
						return err
					}
					n := digitnorm.NewNormalizer()
					n.SetInvertMode(mode)
					n.SetLogger(a.log.With("file", path))

					res, err := n.NormalizeFile(path)
					if err != nil {
						return fmt.Errorf("%s: %w", path, err)
					}
					if err := writeOutputs(outDir, path, res); err != nil {
						return fmt.Errorf("%s: %w", path, err)
					}
					results[i] = res
					a.log.Info("Normalized image",
						"file", path,
						"box", res.Trace.Box.String(),
						"inverted", res.Trace.Inverted,
						"shift", res.Trace.Shift.String(),
					)
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			if ascii {
				out := cmd.OutOrStdout()
				for i, res := range results {
					fmt.Fprintf(out, "%s\n%s\n", args[i], digitnorm.RenderASCII(res.Canvas))
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "out", "Directory for generated files")
	cmd.Flags().BoolVar(&ascii, "ascii", false, "Print each canvas as ASCII art")
	cmd.Flags().Int("concurrency", 4, "Images processed in parallel")
	return cmd
}

func writeOutputs(dir, path string, res *digitnorm.Result) error {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if _, err := digitnorm.SaveArtifacts(dir, base, res); err != nil {
		return err
	}

	data, err := json.Marshal(featuresFile{Source: path, Features: res.Features, Trace: res.Trace})
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, base+"_features.json"), data, 0o644)
}
