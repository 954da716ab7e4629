// Package weather provides the annual climate inputs of the model: the
// slider ranges of the viewer, named climate scenarios, and a generator
// producing a smooth, seeded year-by-year series for unattended runs.
package weather

import (
	"bytes"
	"fmt"
	"math"
	"sort"

	"github.com/ojrac/opensimplex-go"
	"gopkg.in/yaml.v3"
)

// Viewer slider ranges.
const (
	MinPrecipitation = 200.0 // mm/year
	MaxPrecipitation = 800.0
	MinTemperature   = 8.0 // °C annual mean
	MaxTemperature   = 16.0
)

// Climate is one year's externally supplied input.
type Climate struct {
	Precipitation float64 `json:"precipitation" yaml:"precipitation"` // mm/year
	Temperature   float64 `json:"temperature" yaml:"temperature"`     // °C
}

// Clamp limits c to the slider ranges.
func (c Climate) Clamp() Climate {
	return Climate{
		Precipitation: math.Max(MinPrecipitation, math.Min(MaxPrecipitation, c.Precipitation)),
		Temperature:   math.Max(MinTemperature, math.Min(MaxTemperature, c.Temperature)),
	}
}

// Describe gives a short label for logs and the viewer.
func (c Climate) Describe() string {
	wet := "normal rainfall"
	switch {
	case c.Precipitation < 450:
		wet = "drought"
	case c.Precipitation > 680:
		wet = "wet year"
	}
	heat := "mild"
	switch {
	case c.Temperature > 12:
		heat = "hot"
	case c.Temperature < 9.5:
		heat = "cool"
	}
	return heat + ", " + wet
}

// Scenario describes a climate trajectory: a baseline, a linear trend per
// year and noise amplitude around it.
type Scenario struct {
	Name                     string  `yaml:"name" json:"name"`
	BasePrecipitation        float64 `yaml:"base_precipitation" json:"base_precipitation"`
	BaseTemperature          float64 `yaml:"base_temperature" json:"base_temperature"`
	PrecipitationTrend       float64 `yaml:"precipitation_trend" json:"precipitation_trend"` // mm per year
	TemperatureTrend         float64 `yaml:"temperature_trend" json:"temperature_trend"`     // °C per year
	PrecipitationVariability float64 `yaml:"precipitation_variability" json:"precipitation_variability"`
	TemperatureVariability   float64 `yaml:"temperature_variability" json:"temperature_variability"`
}

var presets = map[string]Scenario{
	"baseline": {
		Name:                     "baseline",
		BasePrecipitation:        570,
		BaseTemperature:          10.5,
		PrecipitationVariability: 80,
		TemperatureVariability:   0.6,
	},
	"drought": {
		Name:                     "drought",
		BasePrecipitation:        520,
		BaseTemperature:          10.8,
		PrecipitationTrend:       -8,
		TemperatureTrend:         0.04,
		PrecipitationVariability: 100,
		TemperatureVariability:   0.6,
	},
	"warming": {
		Name:                     "warming",
		BasePrecipitation:        570,
		BaseTemperature:          10.5,
		PrecipitationTrend:       -2,
		TemperatureTrend:         0.08,
		PrecipitationVariability: 80,
		TemperatureVariability:   0.5,
	},
	"steady": {
		Name:              "steady",
		BasePrecipitation: 570,
		BaseTemperature:   10.5,
	},
}

// Presets lists the preset names.
func Presets() []string {
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Preset returns a named scenario.
func Preset(name string) (Scenario, error) {
	sc, ok := presets[name]
	if !ok {
		return Scenario{}, fmt.Errorf("unknown climate scenario %q (have %v)", name, Presets())
	}
	return sc, nil
}

// DecodeScenario reads a `climate:` YAML block. A `preset` key selects the
// starting values (default "baseline"); other keys override them. Unknown
// keys are rejected.
func DecodeScenario(node *yaml.Node) (Scenario, error) {
	if node == nil || node.Kind == 0 {
		return Preset("baseline")
	}
	var head struct {
		Preset string `yaml:"preset"`
	}
	if err := node.Decode(&head); err != nil {
		return Scenario{}, fmt.Errorf("decode climate: %w", err)
	}
	if head.Preset == "" {
		head.Preset = "baseline"
	}
	base, err := Preset(head.Preset)
	if err != nil {
		return Scenario{}, err
	}

	doc := struct {
		Preset   string `yaml:"preset"`
		Scenario `yaml:",inline"`
	}{Scenario: base}
	if err := decodeStrict(node, &doc); err != nil {
		return Scenario{}, fmt.Errorf("decode climate: %w", err)
	}
	return doc.Scenario, nil
}

// decodeStrict decodes node into out with KnownFields set, which
// yaml.Node.Decode does not support.
func decodeStrict(node *yaml.Node, out any) error {
	raw, err := yaml.Marshal(node)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	return dec.Decode(out)
}

// Generator produces the climate for each simulated year of a scenario.
// The same scenario, seed and start year always give the same series.
type Generator struct {
	sc        Scenario
	startYear int
	precip    opensimplex.Noise
	temp      opensimplex.Noise
}

// noiseScale controls how quickly anomalies change from year to year.
const noiseScale = 0.45

// NewGenerator creates a generator anchored at startYear.
func NewGenerator(sc Scenario, seed int64, startYear int) *Generator {
	return &Generator{
		sc:        sc,
		startYear: startYear,
		precip:    opensimplex.New(seed),
		temp:      opensimplex.New(seed + 1),
	}
}

// Scenario returns the scenario being generated.
func (g *Generator) Scenario() Scenario {
	return g.sc
}

// ForYear returns the clamped climate for a calendar year.
func (g *Generator) ForYear(year int) Climate {
	t := float64(year - g.startYear)
	c := Climate{
		Precipitation: g.sc.BasePrecipitation + g.sc.PrecipitationTrend*t +
			g.sc.PrecipitationVariability*g.precip.Eval2(t*noiseScale, 0),
		Temperature: g.sc.BaseTemperature + g.sc.TemperatureTrend*t +
			g.sc.TemperatureVariability*g.temp.Eval2(t*noiseScale, 0),
	}
	return c.Clamp()
}
