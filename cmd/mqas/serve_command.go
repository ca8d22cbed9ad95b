package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"mqas/internal/api"
	"mqas/internal/httpapi"
	"mqas/internal/queue"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP job API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("bind") {
				bind = cfg.API.Bind
			}
			if strings.TrimSpace(bind) == "" {
				return fmt.Errorf("api bind address is empty; set api.bind or pass --bind")
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return ctx.withQueue(runCtx, func(q *queue.Queue, logger *slog.Logger) error {
				if _, err := q.Store(runCtx); err != nil {
					return err
				}
				srv, err := httpapi.New(bind, api.NewJobService(q),
					httpapi.WithToken(cfg.API.Token),
					httpapi.WithLogger(logger),
				)
				if err != nil {
					return err
				}
				if err := srv.Start(runCtx); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Serving job API on http://%s\n", srv.Addr())
				<-runCtx.Done()
				srv.Shutdown()
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&bind, "bind", "", "Listen address (defaults to api.bind)")
	return cmd
}
