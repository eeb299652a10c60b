package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/alparslanahmed/digitnorm/classifier/remote"
	"github.com/alparslanahmed/digitnorm/internal/server"
	"github.com/alparslanahmed/digitnorm/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP recognition service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, release, err := a.classifier()
			if err != nil {
				return err
			}
			defer release()

			opts, err := a.recognizerOptions()
			if err != nil {
				return err
			}

			var serverOpts []server.Option
			if client, ok := c.(*remote.Client); ok {
				serverOpts = append(serverOpts, server.WithHealthChecker(client))
			}

			gin.SetMode(gin.ReleaseMode)
			rec := service.NewRecognizer(c, opts, a.log.With("component", "recognizer"))
			srv := server.New(a.cfg.Server, rec, a.log.With("component", "server"), serverOpts...)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			a.log.Info("Starting digit recognition service",
				"address", a.cfg.Server.Address(),
				"classifier", a.cfg.Classifier.Backend,
			)
			return srv.Run(ctx)
		},
	}
	cmd.Flags().String("host", "0.0.0.0", "Listen host")
	cmd.Flags().Int("port", 8080, "Listen port")
	cmd.Flags().Bool("stage-uploads", false, "Stage uploads through temporary files")
	addClassifierFlags(cmd)
	return cmd
}
