// Command treesim simulates street-tree health in a Berlin district under
// changing annual climate, either headless or behind an HTTP API.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/talgya/treesim/internal/engine"
	"github.com/talgya/treesim/internal/entropy"
	"github.com/talgya/treesim/internal/geo"
	"github.com/talgya/treesim/internal/ingest"
	"github.com/talgya/treesim/internal/scenario"
	"github.com/talgya/treesim/internal/weather"
)

// options are the flags shared by every subcommand.
type options struct {
	logLevel   string
	dataPath   string
	table      string
	district   string
	seed       int64
	paramsPath string
	archive    string
	noBounds   bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:          "treesim",
		Short:        "Street-tree climate simulation",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := parseLevel(opts.logLevel)
			if err != nil {
				return err
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
				Level: level,
			})))
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	pf.StringVar(&opts.dataPath, "data", "data/baumbestand.csv", "tree inventory (CSV, or SQLite with .db/.sqlite)")
	pf.StringVar(&opts.table, "table", "trees", "table name for SQLite inventories")
	pf.StringVar(&opts.district, "district", "Friedrichshain-Kreuzberg", "district filter; empty keeps all")
	pf.Int64Var(&opts.seed, "seed", 0, "random seed; 0 draws a fresh one")
	pf.StringVar(&opts.paramsPath, "params", "", "scenario YAML overriding model parameters")
	pf.StringVar(&opts.archive, "archive", "", "SQLite file archiving run metrics")
	pf.BoolVar(&opts.noBounds, "no-bounds", false, "keep trees outside the Berlin bounding box")

	root.AddCommand(newServeCmd(opts), newRunCmd(opts))
	return root
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return level, fmt.Errorf("invalid --log-level %q", s)
	}
	return level, nil
}

// scenarioFile returns the parameters and climate block, defaults when no file is given.
func (o *options) scenarioFile() (scenario.Params, weather.Scenario, error) {
	if o.paramsPath == "" {
		sc, err := weather.Preset("baseline")
		return scenario.DefaultParams(), sc, err
	}
	f, err := scenario.Load(o.paramsPath)
	if err != nil {
		return f.Params, weather.Scenario{}, err
	}
	sc, err := weather.DecodeScenario(&f.Climate)
	if err != nil {
		return f.Params, sc, err
	}
	slog.Info("scenario loaded", "path", o.paramsPath, "climate", sc.Name)
	return f.Params, sc, nil
}

func (o *options) source() ingest.Source {
	lower := strings.ToLower(o.dataPath)
	if strings.HasSuffix(lower, ".db") || strings.HasSuffix(lower, ".sqlite") {
		return ingest.SQLiteSource{Path: o.dataPath, Table: o.table}
	}
	return ingest.CSVSource{Path: o.dataPath}
}

func (o *options) ingestOptions() ingest.Options {
	lo := ingest.DefaultOptions()
	lo.District = o.district
	if o.noBounds {
		lo.Bounds = nil
	}
	lo.Projection = geo.ETRS89UTM33N
	return lo
}

// build constructs a fresh model from the inventory.
func (o *options) build(params scenario.Params) (*engine.CityModel, error) {
	return engine.NewFromSource(o.source(), o.ingestOptions(), params, entropy.NewStreams(o.seed))
}
