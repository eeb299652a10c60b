package main

import (
	"fmt"
	"os"

	"github.com/alparslanahmed/digitnorm/internal/service"
	"github.com/spf13/cobra"
)

func newPredictCmd(a *app) *cobra.Command {
	var canvas bool
	cmd := &cobra.Command{
		Use:   "predict <image>",
		Short: "Normalize an image and print the predicted digit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read image: %w", err)
			}

			c, release, err := a.classifier()
			if err != nil {
				return err
			}
			defer release()

			opts, err := a.recognizerOptions()
			if err != nil {
				return err
			}
			rec, err := service.NewRecognizer(c, opts, a.log).Recognize(cmd.Context(), service.Request{
				Data:     data,
				Filename: args[0],
				Canvas:   canvas,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			p := rec.Prediction
			fmt.Fprintf(out, "label: %d\n", p.Label)
			fmt.Fprintf(out, "confidence: %.4f\n", p.Confidence())
			for digit, prob := range p.Probabilities {
				fmt.Fprintf(out, "  %d: %.4f\n", digit, prob)
			}
			return nil
		},
	}
	addClassifierFlags(cmd)
	cmd.Flags().BoolVar(&canvas, "canvas", false, "Treat the image as a drawing canvas and apply the ink gate")
	return cmd
}
