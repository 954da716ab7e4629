// Package scenario holds every tunable constant of the tree model.
// Nothing in the update logic uses a bare literal; all of it comes from Params.
package scenario

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrInvalidParams is returned by Validate for out-of-range parameters.
var ErrInvalidParams = errors.New("invalid scenario parameters")

// Params is the complete set of scenario parameters.
type Params struct {
	// Water supply.
	RunoffFraction float64 `yaml:"runoff_fraction"` // Share of rainfall reaching roots in sealed soil

	// Temperature stress on demand.
	TemperatureStress   bool    `yaml:"temperature_stress"`
	HeatThreshold       float64 `yaml:"heat_threshold"`         // °C annual mean
	HeatStressPerDegree float64 `yaml:"heat_stress_per_degree"` // +demand fraction per °C above threshold

	// Water demand.
	BaseDemand      float64 `yaml:"base_demand"`      // mm/year
	SizeCoefficient float64 `yaml:"size_coefficient"` // mm/year per metre of crown

	// Deficit damage.
	DamageDampener float64 `yaml:"damage_dampener"`
	YoungAge       float64 `yaml:"young_age"` // below: shallow roots
	YoungDamageMul float64 `yaml:"young_damage_mul"`
	OldAge         float64 `yaml:"old_age"` // above: reduced vitality
	OldDamageMul   float64 `yaml:"old_damage_mul"`

	// Surplus recovery.
	BaseRecovery          float64 `yaml:"base_recovery"`
	HotRecoveryThreshold  float64 `yaml:"hot_recovery_threshold"`
	HotRecovery           float64 `yaml:"hot_recovery"` // replaces BaseRecovery above the threshold
	GrowingAge            float64 `yaml:"growing_age"`
	GrowingBonus          float64 `yaml:"growing_bonus"`
	DroughtResistantBelow float64 `yaml:"drought_resistant_below"` // demand factor
	DroughtResistantBonus float64 `yaml:"drought_resistant_bonus"`

	// Health and status.
	MaxHealth        float64 `yaml:"max_health"`
	CriticalBelow    float64 `yaml:"critical_below"`
	StressedBelow    float64 `yaml:"stressed_below"`
	InitialHealthMin int     `yaml:"initial_health_min"`
	InitialHealthMax int     `yaml:"initial_health_max"` // inclusive

	// Ingestion defaults for missing attributes.
	DefaultAge   float64 `yaml:"default_age"`
	DefaultCrown float64 `yaml:"default_crown"`

	// Replanting.
	ReplantProbability  float64 `yaml:"replant_probability"`
	ReplantAge          float64 `yaml:"replant_age"`
	ReplantCrown        float64 `yaml:"replant_crown"`
	ReplantSpecies      string  `yaml:"replant_species"`
	ReplantDemandFactor float64 `yaml:"replant_demand_factor"`
	NewPlantingLabel    string  `yaml:"new_planting_label"`

	// Run.
	StartYear            int     `yaml:"start_year"`
	InitialPrecipitation float64 `yaml:"initial_precipitation"` // mm/year
	InitialTemperature   float64 `yaml:"initial_temperature"`   // °C
	DisplaySample        int     `yaml:"display_sample"`
}

// DefaultParams returns the 70%-runoff model variant with temperature stress
// and the young-tree recovery bonus.
func DefaultParams() Params {
	return Params{
		RunoffFraction: 0.7,

		TemperatureStress:   true,
		HeatThreshold:       11.0,
		HeatStressPerDegree: 0.10,

		BaseDemand:      250,
		SizeCoefficient: 20,

		DamageDampener: 20,
		YoungAge:       10,
		YoungDamageMul: 1.5,
		OldAge:         80,
		OldDamageMul:   1.3,

		BaseRecovery:          5,
		HotRecoveryThreshold:  13.0,
		HotRecovery:           2,
		GrowingAge:            20,
		GrowingBonus:          2,
		DroughtResistantBelow: 0,
		DroughtResistantBonus: 0,

		MaxHealth:        100,
		CriticalBelow:    40,
		StressedBelow:    70,
		InitialHealthMin: 90,
		InitialHealthMax: 100,

		DefaultAge:   15,
		DefaultCrown: 4.0,

		ReplantProbability:  0.1,
		ReplantAge:          1,
		ReplantCrown:        1.0,
		ReplantSpecies:      "Zürgelbaum (Neu)",
		ReplantDemandFactor: 0.5,
		NewPlantingLabel:    "Neu (Zürgelbaum)",

		StartYear:            2025,
		InitialPrecipitation: 570,
		InitialTemperature:   10.5,
		DisplaySample:        3000,
	}
}

// Validate reports the first out-of-range parameter.
func (p Params) Validate() error {
	switch {
	case p.RunoffFraction <= 0 || p.RunoffFraction >= 1:
		return fmt.Errorf("%w: runoff_fraction %v not in (0,1)", ErrInvalidParams, p.RunoffFraction)
	case p.DamageDampener <= 0:
		return fmt.Errorf("%w: damage_dampener must be positive", ErrInvalidParams)
	case p.HeatStressPerDegree < 0:
		return fmt.Errorf("%w: heat_stress_per_degree must not be negative", ErrInvalidParams)
	case p.BaseDemand < 0 || p.SizeCoefficient < 0:
		return fmt.Errorf("%w: demand terms must not be negative", ErrInvalidParams)
	case p.MaxHealth <= 0:
		return fmt.Errorf("%w: max_health must be positive", ErrInvalidParams)
	case !(0 < p.CriticalBelow && p.CriticalBelow < p.StressedBelow && p.StressedBelow <= p.MaxHealth):
		return fmt.Errorf("%w: need 0 < critical_below < stressed_below <= max_health", ErrInvalidParams)
	case p.InitialHealthMin <= 0 || p.InitialHealthMin > p.InitialHealthMax || float64(p.InitialHealthMax) > p.MaxHealth:
		return fmt.Errorf("%w: initial health range [%d,%d]", ErrInvalidParams, p.InitialHealthMin, p.InitialHealthMax)
	case p.ReplantProbability < 0 || p.ReplantProbability > 1:
		return fmt.Errorf("%w: replant_probability %v not in [0,1]", ErrInvalidParams, p.ReplantProbability)
	case p.ReplantDemandFactor <= 0:
		return fmt.Errorf("%w: replant_demand_factor must be positive", ErrInvalidParams)
	case p.ReplantAge < 0 || p.ReplantCrown < 0 || p.DefaultAge < 0 || p.DefaultCrown < 0:
		return fmt.Errorf("%w: ages and crown sizes must not be negative", ErrInvalidParams)
	case p.ReplantSpecies == "" || p.NewPlantingLabel == "":
		return fmt.Errorf("%w: replant labels must be set", ErrInvalidParams)
	case p.DisplaySample < 0:
		return fmt.Errorf("%w: display_sample must not be negative", ErrInvalidParams)
	}
	return nil
}

// File is the on-disk scenario document. Climate is decoded by the caller
// (see weather.Scenario) so this package stays free of the weather model.
type File struct {
	Params  Params    `yaml:"params"`
	Climate yaml.Node `yaml:"climate"`
}

// Load reads a YAML scenario file and overlays it on DefaultParams.
// Unknown keys are rejected.
func Load(path string) (File, error) {
	f := File{Params: DefaultParams()}

	raw, err := os.Open(path)
	if err != nil {
		return f, fmt.Errorf("open scenario: %w", err)
	}
	defer raw.Close()

	dec := yaml.NewDecoder(raw)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return f, fmt.Errorf("decode scenario %s: %w", path, err)
	}
	if err := f.Params.Validate(); err != nil {
		return f, err
	}
	return f, nil
}
