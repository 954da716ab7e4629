package engine

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/talgya/treesim/internal/weather"
)

// ClimateSource supplies the climate of a calendar year.
type ClimateSource interface {
	ForYear(year int) weather.Climate
}

// Engine drives a CityModel forward unattended, one year per tick.
type Engine struct {
	Model    *CityModel
	Climate  ClimateSource
	Interval time.Duration // Pause between years; 0 runs flat out
	Years    int           // Years to simulate; 0 runs until stopped

	// OnYear is called after every completed year.
	OnYear func(Snapshot)

	running atomic.Bool
	stop    atomic.Bool
}

// NewEngine creates an engine with no pacing and no year limit.
func NewEngine(m *CityModel, climate ClimateSource) *Engine {
	return &Engine{Model: m, Climate: climate}
}

// Running reports whether Run is in progress.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// Stop asks Run to return after the current year.
func (e *Engine) Stop() {
	e.stop.Store(true)
}

// Advance sets the next year's climate from the source and steps once.
func (e *Engine) Advance() Snapshot {
	e.Model.SetClimate(e.Climate.ForYear(e.Model.Year + 1))
	snap := e.Model.Step()
	if e.OnYear != nil {
		e.OnYear(snap)
	}
	return snap
}

// Run steps the model until Years are done, Stop is called or ctx ends.
// A year in progress always completes. Returns the number of years run.
func (e *Engine) Run(ctx context.Context) (int, error) {
	e.running.Store(true)
	e.stop.Store(false)
	defer e.running.Store(false)

	slog.Info("simulation engine started", "year", e.Model.Year, "years", e.Years, "interval", e.Interval)

	done := 0
	for e.Years == 0 || done < e.Years {
		if e.stop.Load() {
			break
		}
		if err := ctx.Err(); err != nil {
			slog.Info("simulation engine cancelled", "year", e.Model.Year, "years_run", done)
			return done, err
		}

		e.Advance()
		done++

		if e.Interval > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(e.Interval):
			}
		}
	}

	slog.Info("simulation engine stopped", "year", e.Model.Year, "years_run", done)
	return done, nil
}
