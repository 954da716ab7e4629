package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/treesim/internal/api"
	"github.com/talgya/treesim/internal/engine"
	"github.com/talgya/treesim/internal/persistence"
)

func newServeCmd(opts *options) *cobra.Command {
	var (
		port        int
		maxSessions int
		maxAdvance  int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the interactive simulation API",
		RunE: func(cmd *cobra.Command, args []string) error {
			var db *persistence.DB
			if opts.archive != "" {
				var err error
				db, err = persistence.Open(opts.archive)
				if err != nil {
					return err
				}
				defer db.Close()
				slog.Info("archive opened", "path", opts.archive)
			} else {
				slog.Warn("no --archive set, run history will not be persisted")
			}

			srv, err := newServer(opts, db)
			if err != nil {
				return err
			}
			srv.Port = port
			srv.Sessions = api.NewSessionStore(maxSessions)
			srv.MaxAdvance = maxAdvance
			srv.AdminKey = os.Getenv("TREESIM_ADMIN_KEY")
			if srv.AdminKey == "" {
				slog.Warn("TREESIM_ADMIN_KEY not set, session deletion disabled")
			}
			httpSrv := srv.Start()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()
			slog.Info("shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return httpSrv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 8080, "HTTP port")
	cmd.Flags().IntVar(&maxSessions, "max-sessions", 32, "concurrent sessions; 0 = unlimited")
	cmd.Flags().IntVar(&maxAdvance, "max-advance", 100, "max years per advance request")
	return cmd
}

// newServer wires the inventory loader and the scenario file's climate
// block into an API server.
func newServer(opts *options, db *persistence.DB) (*api.Server, error) {
	params, climate, err := opts.scenarioFile()
	if err != nil {
		return nil, err
	}

	load := func() (*engine.CityModel, error) {
		m, err := opts.build(params)
		if err != nil {
			return nil, err
		}
		slog.Info("model built",
			"trees", humanize.Comma(int64(m.Population().Len())),
			"skipped", humanize.Comma(int64(m.Report.SkippedTotal())),
			"seed", m.Seed(),
		)
		return m, nil
	}

	srv := api.NewServer(load, db)
	srv.Climate = climate
	return srv, nil
}
