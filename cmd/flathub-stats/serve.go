package main

import (
	"context"
	"io"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/sdko-org/flathub-stats/internal/handlers"
	"github.com/sdko-org/flathub-stats/internal/httpserver"
	"github.com/sdko-org/flathub-stats/internal/stats"
	"github.com/spf13/cobra"
)

func newServeCmd(opts *options, stdout, stderr io.Writer) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve <log>...",
		Short: "Process the given logs and serve the aggregates over HTTP",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts, stdout, stderr)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("listen") {
				a.cfg.ListenAddr = listen
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx, args)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "address to listen on")
	return cmd
}

func (a *app) serve(ctx context.Context, paths []string) error {
	events, _ := a.processLogs(ctx, paths)
	agg := stats.NewAggregator()
	agg.Add(events...)

	limiter := handlers.NewRateLimiter(a.cfg)
	go limiter.Run(ctx)

	r := mux.NewRouter()
	r.Use(handlers.LoggingMiddleware(a.logger))
	r.Use(limiter.Middleware)
	handlers.RegisterRoutes(r, handlers.NewStatsHandler(a.logger, agg))

	return httpserver.Run(ctx, a.logger, httpserver.New(a.cfg.ListenAddr, r))
}
