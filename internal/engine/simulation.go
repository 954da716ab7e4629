// Package engine runs the street-tree population year by year.
package engine

import (
	"fmt"
	"log/slog"

	"github.com/talgya/treesim/internal/agents"
	"github.com/talgya/treesim/internal/entropy"
	"github.com/talgya/treesim/internal/ingest"
	"github.com/talgya/treesim/internal/scenario"
	"github.com/talgya/treesim/internal/weather"
)

// CityModel holds the complete simulation state of one session.
//
// Callers set the climate for the year about to be simulated with
// SetClimate and then call Step. Steps must be serialized by the caller.
type CityModel struct {
	Year int // Last completed year; starts at Params.StartYear

	// Climate in effect for the upcoming (or just executed) step.
	CurrentPrecipitation float64
	CurrentTemperature   float64

	DeadTreeCount int // Transitions into dead, never decremented
	TotalPlanted  int // Replantings performed

	Report ingest.LoadReport

	params     scenario.Params
	streams    *entropy.Streams
	population *Scheduler
	forest     *ForestManager
	history    History
}

// NewCityModel builds a model from validated records and records the
// baseline snapshot for the start year.
func NewCityModel(records []ingest.Tree, params scenario.Params, streams *entropy.Streams) (*CityModel, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if streams == nil {
		streams = entropy.NewStreams(0)
	}

	m := &CityModel{
		Year:                 params.StartYear,
		CurrentPrecipitation: params.InitialPrecipitation,
		CurrentTemperature:   params.InitialTemperature,
		params:               params,
		streams:              streams,
	}
	m.forest = NewForestManager(&m.params)

	spawner := agents.NewSpawner(streams.Sim, &m.params)
	m.population = NewScheduler(spawner.SpawnAll(records))
	m.Report.Loaded = m.population.Len()

	m.history.append(m.collect(m.Year))
	return m, nil
}

// NewFromSource loads the inventory and builds a model. An unreadable
// source is an error; a source with no usable rows yields an empty model.
func NewFromSource(src ingest.Source, opts ingest.Options, params scenario.Params, streams *entropy.Streams) (*CityModel, error) {
	opts.DefaultAge = params.DefaultAge
	opts.DefaultCrown = params.DefaultCrown

	records, report, err := ingest.Load(src, opts)
	if err != nil {
		return nil, fmt.Errorf("load trees: %w", err)
	}
	m, err := NewCityModel(records, params, streams)
	if err != nil {
		return nil, err
	}
	m.Report = report
	return m, nil
}

// SetClimate sets the inputs for the next Step.
func (m *CityModel) SetClimate(c weather.Climate) {
	m.CurrentPrecipitation = c.Precipitation
	m.CurrentTemperature = c.Temperature
}

// Climate returns the current inputs.
func (m *CityModel) Climate() weather.Climate {
	return weather.Climate{Precipitation: m.CurrentPrecipitation, Temperature: m.CurrentTemperature}
}

// Step simulates one year: every tree updates, dead slots may be
// replanted, one snapshot is appended, and the year advances.
func (m *CityModel) Step() Snapshot {
	ctx := &agents.StepContext{
		Precipitation: m.CurrentPrecipitation,
		Temperature:   m.CurrentTemperature,
		Params:        &m.params,
	}

	deaths := 0
	m.population.Step(m.streams.Sim, func(t *agents.Tree) {
		if t.Step(ctx) {
			deaths++
		}
	})
	m.DeadTreeCount += deaths

	planted := m.forest.Replant(m.population, m.streams.Sim)
	m.TotalPlanted += planted

	snap := m.collect(m.Year + 1)
	m.history.append(snap)
	m.Year++

	slog.Info("year simulated",
		"year", m.Year,
		"temp", m.CurrentTemperature,
		"precip", m.CurrentPrecipitation,
		"alive", snap.Alive,
		"died", deaths,
		"replanted", planted,
	)
	return snap.clone()
}

func (m *CityModel) collect(year int) Snapshot {
	return collect(m.population, &m.params, year,
		m.CurrentPrecipitation, m.CurrentTemperature, m.DeadTreeCount, m.TotalPlanted)
}

// Population exposes the tree arena.
func (m *CityModel) Population() *Scheduler {
	return m.population
}

// History exposes the snapshot history.
func (m *CityModel) History() *History {
	return &m.history
}

// Params returns the scenario parameters in use.
func (m *CityModel) Params() scenario.Params {
	return m.params
}

// Seed returns the base seed of the simulation stream.
func (m *CityModel) Seed() int64 {
	return m.streams.Seed
}

// Forest exposes the replanting policy, e.g. to change its probability.
func (m *CityModel) Forest() *ForestManager {
	return m.forest
}

// AliveCount counts trees that are not dead.
func (m *CityModel) AliveCount() int {
	n := 0
	m.population.Each(func(t *agents.Tree) {
		if t.Alive() {
			n++
		}
	})
	return n
}

// ClimateSeed returns the seed for generated climate series of this run.
func (m *CityModel) ClimateSeed() int64 {
	return m.streams.ClimateSeed()
}
