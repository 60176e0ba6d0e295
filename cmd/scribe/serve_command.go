package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"scribe/internal/api"
	"scribe/internal/dispatch"
	"scribe/internal/logging"
	"scribe/internal/pipeline"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string
	var maxConcurrent int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the transcription API over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if value := strings.TrimSpace(bind); value != "" {
				cfg.Server.Bind = value
			}
			if maxConcurrent > 0 {
				cfg.Server.MaxConcurrent = maxConcurrent
			}

			metrics := api.NewMetrics()
			rt, err := ctx.newRuntime(cmd, pipeline.WithEventHook(metrics.ObserveEvent))
			if err != nil {
				return err
			}
			defer rt.Close()

			dispatcher := dispatch.New(cfg.Server.MaxConcurrent, rt.logger)
			opts := []api.Option{
				api.WithMetrics(metrics),
				api.WithLoadedModels(rt.registry.Loaded),
			}
			if rt.history != nil {
				opts = append(opts, api.WithHistory(rt.history))
			}
			server := api.New(cfg, rt.pipeline, dispatcher, rt.logger, opts...)

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := server.Start(runCtx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Listening on http://%s\n", server.Addr())

			<-runCtx.Done()
			rt.logger.Info("shutting down",
				logging.Int("queued", dispatcher.Status().Queued),
				logging.Int("active", dispatcher.Status().Active),
			)
			if cleared := dispatcher.Clear(); cleared > 0 {
				rt.logger.Info("dropped queued jobs", logging.Int("count", cleared))
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logging.WarnWithContext(rt.logger, "api shutdown incomplete", "api_shutdown_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "in-flight requests were interrupted"),
				)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&bind, "bind", "", "Override server.bind (host:port)")
	cmd.Flags().IntVar(&maxConcurrent, "max-concurrent", 0, "Override server.max_concurrent")
	return cmd
}
