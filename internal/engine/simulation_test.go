package engine

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/treesim/internal/agents"
	"github.com/talgya/treesim/internal/entropy"
	"github.com/talgya/treesim/internal/geo"
	"github.com/talgya/treesim/internal/ingest"
	"github.com/talgya/treesim/internal/scenario"
	"github.com/talgya/treesim/internal/species"
	"github.com/talgya/treesim/internal/weather"
)

func record(id int64, label string, age, crown float64) ingest.Tree {
	pos := geo.LatLon{Lat: 52.5, Lon: 13.43}
	return ingest.Tree{ID: id, Species: label, Kind: species.Resolve(label), Age: age, Crown: crown, Position: &pos}
}

func mixedRecords(n int) []ingest.Tree {
	labels := []string{"Winter-Linde", "Stiel-Eiche", "Spitz-Ahorn", "Robinie", "Platane", "Ginkgo biloba"}
	recs := make([]ingest.Tree, n)
	for i := range recs {
		recs[i] = record(int64(i+1), labels[i%len(labels)], float64(5+i%100), float64(1+i%10))
	}
	return recs
}

func newModel(t *testing.T, recs []ingest.Tree, mutate func(*scenario.Params)) *CityModel {
	t.Helper()
	p := scenario.DefaultParams()
	if mutate != nil {
		mutate(&p)
	}
	m, err := NewCityModel(recs, p, entropy.NewStreams(11))
	require.NoError(t, err)
	return m
}

func statuses(m *CityModel) map[agents.TreeID]agents.Status {
	out := make(map[agents.TreeID]agents.Status)
	m.Population().Each(func(tr *agents.Tree) { out[tr.ID] = tr.Status })
	return out
}

func TestSingleOakDroughtYear(t *testing.T) {
	m := newModel(t, []ingest.Tree{record(1, "Eiche", 15, 4.0)}, nil)
	tree := m.Population().Trees()[0]
	before := tree.Health

	m.SetClimate(weather.Climate{Precipitation: 0, Temperature: 10.5})
	m.Step()

	assert.Less(t, tree.Health, before)
	assert.Equal(t, 16.0, tree.Age)
	assert.Equal(t, 2026, m.Year)
}

func TestSingleOakWetYear(t *testing.T) {
	m := newModel(t, []ingest.Tree{record(1, "Eiche", 15, 4.0)}, nil)
	tree := m.Population().Trees()[0]
	before := tree.Health

	m.SetClimate(weather.Climate{Precipitation: 800, Temperature: 10.5})
	m.Step()

	assert.GreaterOrEqual(t, tree.Health, before)
	assert.LessOrEqual(t, tree.Health, 100.0)
	assert.Equal(t, agents.StatusAlive, tree.Status)
}

func TestDeathCountedOnceWithoutReplanting(t *testing.T) {
	m := newModel(t, []ingest.Tree{record(1, "Eiche", 15, 4.0)}, func(p *scenario.Params) {
		p.ReplantProbability = 0
	})
	tree := m.Population().Trees()[0]
	m.SetClimate(weather.Climate{Precipitation: 0, Temperature: 10.5})

	diedAt := 0
	for year := 1; year <= 15; year++ {
		m.Step()
		if tree.Status == agents.StatusDead && diedAt == 0 {
			diedAt = year
			assert.Equal(t, 1, m.DeadTreeCount)
		}
	}
	require.NotZero(t, diedAt)
	assert.Equal(t, 1, m.DeadTreeCount)
	assert.Equal(t, 0.0, tree.Health)
	assert.Equal(t, 15.0+float64(diedAt), tree.Age, "no ageing after death")
	assert.Equal(t, 0, m.TotalPlanted)
}

func TestStepProperties(t *testing.T) {
	m := newModel(t, mixedRecords(600), func(p *scenario.Params) {
		p.ReplantProbability = 0.3
	})
	rng := rand.New(rand.NewSource(5))

	for year := 0; year < 30; year++ {
		prevStatus := statuses(m)
		prevAge := make(map[agents.TreeID]float64)
		m.Population().Each(func(tr *agents.Tree) { prevAge[tr.ID] = tr.Age })
		prevDead, prevPlanted := m.DeadTreeCount, m.TotalPlanted

		m.SetClimate(weather.Climate{
			Precipitation: 200 + rng.Float64()*600,
			Temperature:   8 + rng.Float64()*8,
		})
		snap := m.Step()

		transitions, revived := 0, 0
		m.Population().Each(func(tr *agents.Tree) {
			assert.GreaterOrEqual(t, tr.Health, 0.0)
			assert.LessOrEqual(t, tr.Health, 100.0)

			wasDead := prevStatus[tr.ID] == agents.StatusDead
			switch {
			case wasDead && tr.Status == agents.StatusDead:
				assert.Equal(t, 0.0, tr.Health)
				assert.Equal(t, prevAge[tr.ID], tr.Age)
			case tr.Age == m.Params().ReplantAge && tr.NewPlanting && tr.Health == 100 &&
				(wasDead || prevAge[tr.ID]+1 != tr.Age):
				revived++
				if !wasDead {
					transitions++ // died and was replanted within the step
				}
				assert.Equal(t, 0.5, tr.DemandFactor)
			case tr.Status == agents.StatusDead:
				transitions++
				assert.Equal(t, prevAge[tr.ID]+1, tr.Age)
			default:
				assert.Equal(t, prevAge[tr.ID]+1, tr.Age)
			}
		})

		assert.GreaterOrEqual(t, m.DeadTreeCount, prevDead)
		assert.Equal(t, prevDead+transitions, m.DeadTreeCount)
		assert.Equal(t, prevPlanted+revived, m.TotalPlanted)
		assert.Equal(t, m.Year, snap.Year)
		assert.Equal(t, 600, snap.Population())
	}
}

func TestHistory(t *testing.T) {
	m := newModel(t, mixedRecords(50), nil)
	require.Equal(t, 1, m.History().Len())

	base, ok := m.History().ForYear(2025)
	require.True(t, ok)
	assert.Equal(t, 50, base.Alive)
	assert.Equal(t, 570.0, base.Precipitation)
	assert.Equal(t, 10.5, base.Temperature)

	m.SetClimate(weather.Climate{Precipitation: 300, Temperature: 14})
	m.Step()
	m.SetClimate(weather.Climate{Precipitation: 700, Temperature: 9})
	m.Step()

	require.Equal(t, 3, m.History().Len())
	s, ok := m.History().ForYear(2026)
	require.True(t, ok)
	assert.Equal(t, 300.0, s.Precipitation)
	assert.Equal(t, 14.0, s.Temperature)

	latest, ok := m.History().Latest()
	require.True(t, ok)
	assert.Equal(t, 2027, latest.Year)
	assert.Equal(t, 700.0, latest.Precipitation)

	_, ok = m.History().ForYear(2030)
	assert.False(t, ok)
	assert.Len(t, m.History().Range(2026, 2027), 2)

	// Mutating a returned copy leaves history intact.
	all := m.History().All()
	all[0].Species[0].Alive = -1
	all[0].Alive = -1
	again, _ := m.History().ForYear(2025)
	assert.NotEqual(t, -1, again.Species[0].Alive)
	assert.Equal(t, 50, again.Alive)
}

func TestEmptyPopulation(t *testing.T) {
	m := newModel(t, nil, nil)
	snap := m.Step()
	assert.Equal(t, 0, snap.Alive)
	assert.Equal(t, 0.0, snap.AvgHealth)
	assert.Empty(t, snap.Species)
	assert.Equal(t, 2026, m.Year)
}

func TestInvalidParams(t *testing.T) {
	p := scenario.DefaultParams()
	p.RunoffFraction = 3
	_, err := NewCityModel(nil, p, nil)
	assert.ErrorIs(t, err, scenario.ErrInvalidParams)
}

func TestNewFromSource(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "trees.csv")
	require.NoError(t, os.WriteFile(good, []byte(
		"bezirk,latitude,longitude,art_dtsch,standalter,kronedurch\n"+
			"Friedrichshain-Kreuzberg,52.50,13.43,Stiel-Eiche,40,6\n"+
			"Friedrichshain-Kreuzberg,,13.43,Stiel-Eiche,40,6\n"), 0o644))

	m, err := NewFromSource(ingest.CSVSource{Path: good}, ingest.DefaultOptions(), scenario.DefaultParams(), entropy.NewStreams(1))
	require.NoError(t, err)
	assert.Equal(t, 1, m.Population().Len())
	assert.Equal(t, 1, m.Report.Loaded)
	assert.Equal(t, 1, m.Report.Skipped[ingest.SkipMissingPos])

	m, err = NewFromSource(ingest.CSVSource{Path: filepath.Join(dir, "absent.csv")}, ingest.DefaultOptions(), scenario.DefaultParams(), nil)
	assert.Nil(t, m)
	assert.ErrorIs(t, err, ingest.ErrSourceUnreadable)
}

func TestReproducibleWithSeed(t *testing.T) {
	run := func() []Snapshot {
		m, err := NewCityModel(mixedRecords(200), scenario.DefaultParams(), entropy.NewStreams(77))
		require.NoError(t, err)
		for i := 0; i < 10; i++ {
			m.SetClimate(weather.Climate{Precipitation: 380, Temperature: 12.5})
			m.Step()
		}
		return m.History().All()
	}
	assert.Equal(t, run(), run())
}

type fixedClimate weather.Climate

func (f fixedClimate) ForYear(int) weather.Climate { return weather.Climate(f) }

func TestEngineRunsYears(t *testing.T) {
	m := newModel(t, mixedRecords(20), nil)
	e := NewEngine(m, fixedClimate{Precipitation: 450, Temperature: 11})
	e.Years = 5

	seen := 0
	e.OnYear = func(s Snapshot) {
		seen++
		assert.Equal(t, 450.0, s.Precipitation)
	}
	n, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, 5, seen)
	assert.Equal(t, 2030, m.Year)
	assert.False(t, e.Running())
}

func TestEngineStopAndCancel(t *testing.T) {
	m := newModel(t, mixedRecords(5), nil)
	e := NewEngine(m, fixedClimate{Precipitation: 570, Temperature: 10.5})
	e.OnYear = func(s Snapshot) {
		if s.Year == 2028 {
			e.Stop()
		}
	}
	n, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n, err = e.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, n)
	assert.Equal(t, 2028, m.Year)
}
