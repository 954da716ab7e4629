package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/treesim/internal/engine"
	"github.com/talgya/treesim/internal/persistence"
	"github.com/talgya/treesim/internal/weather"
)

func newRunCmd(opts *options) *cobra.Command {
	var (
		years   int
		climate string
		top     int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Simulate a number of years headless and print the results",
		RunE: func(cmd *cobra.Command, args []string) error {
			if years < 1 {
				return fmt.Errorf("--years must be at least 1")
			}
			params, sc, err := opts.scenarioFile()
			if err != nil {
				return err
			}
			if climate != "" {
				if sc, err = weather.Preset(climate); err != nil {
					return err
				}
			}

			m, err := opts.build(params)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			eng := engine.NewEngine(m, weather.NewGenerator(sc, m.ClimateSeed(), params.StartYear))
			eng.Years = years
			if _, err := eng.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}

			out := cmd.OutOrStdout()
			printHistory(out, m.History().All())
			printSummary(out, m, top)

			if opts.archive != "" {
				db, err := persistence.Open(opts.archive)
				if err != nil {
					return err
				}
				defer db.Close()
				run, err := db.SaveHistory(m)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "\nArchived as run %s in %s\n", run.ID, opts.archive)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&years, "years", 10, "years to simulate")
	cmd.Flags().StringVar(&climate, "climate", "", "climate preset (overrides the scenario file)")
	cmd.Flags().IntVar(&top, "top", 5, "species to list in the summary")
	return cmd
}

func printHistory(w io.Writer, snaps []engine.Snapshot) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "year\tprecip mm\ttemp °C\talive\tstressed\tcritical\tdead\tplanted\tavg health\t")
	for _, s := range snaps {
		fmt.Fprintf(tw, "%d\t%.0f\t%.1f\t%s\t%s\t%s\t%s\t%s\t%.1f\t\n",
			s.Year, s.Precipitation, s.Temperature,
			humanize.Comma(int64(s.Alive)),
			humanize.Comma(int64(s.Stressed)),
			humanize.Comma(int64(s.Critical)),
			humanize.Comma(int64(s.Dead)),
			humanize.Comma(int64(s.Planted)),
			s.AvgHealth,
		)
	}
	tw.Flush()
}

func printSummary(w io.Writer, m *engine.CityModel, top int) {
	latest, ok := m.History().Latest()
	if !ok {
		return
	}
	r := m.Report
	fmt.Fprintf(w, "\n%s trees loaded from %s (%s read, %s skipped), seed %d\n",
		humanize.Comma(int64(r.Loaded)), r.Source,
		humanize.Comma(int64(r.Read)), humanize.Comma(int64(r.SkippedTotal())), m.Seed())
	fmt.Fprintf(w, "After %d: %s alive, %s died in total, %s replanted\n",
		latest.Year,
		humanize.Comma(int64(latest.Alive)),
		humanize.Comma(int64(latest.DeadTotal)),
		humanize.Comma(int64(latest.Planted)))

	if top <= 0 {
		return
	}
	fmt.Fprintln(w, "\nTop species:")
	for _, c := range latest.TopSpecies(top) {
		fmt.Fprintf(w, "  %-28s alive %-6s dead %-6s new %s\n", c.Label,
			humanize.Comma(int64(c.Alive)), humanize.Comma(int64(c.Dead)), humanize.Comma(int64(c.NewPlanting)))
	}
	slog.Debug("summary printed", "year", latest.Year)
}
