// Annual water-balance health update.
package agents

import (
	"math"

	"github.com/talgya/treesim/internal/scenario"
	"github.com/talgya/treesim/internal/species"
)

// StepContext is the read-only view of the world a tree sees during one
// simulated year. It is built once per tick by the city model.
type StepContext struct {
	Precipitation float64 // mm/year
	Temperature   float64 // °C annual mean
	Params        *scenario.Params
}

// EffectiveSupply is the rainfall that reaches root systems.
func (c *StepContext) EffectiveSupply() float64 {
	return c.Precipitation * c.Params.RunoffFraction
}

// HeatMultiplier scales demand for annual means above the heat threshold.
func (c *StepContext) HeatMultiplier() float64 {
	p := c.Params
	if !p.TemperatureStress || c.Temperature <= p.HeatThreshold {
		return 1.0
	}
	return 1.0 + (c.Temperature-p.HeatThreshold)*p.HeatStressPerDegree
}

// WaterDemand returns the tree's demand for the year in mm.
func (t *Tree) WaterDemand(c *StepContext) float64 {
	p := c.Params
	return (p.BaseDemand + t.Crown*p.SizeCoefficient) * t.DemandFactor * c.HeatMultiplier()
}

// WaterBalance is effective supply minus demand.
func (t *Tree) WaterBalance(c *StepContext) float64 {
	return c.EffectiveSupply() - t.WaterDemand(c)
}

// Step applies one simulated year. It returns true only on the year the
// tree crosses into StatusDead; dead trees are left untouched.
func (t *Tree) Step(c *StepContext) (died bool) {
	if t.Status == StatusDead {
		return false
	}
	p := c.Params

	balance := t.WaterBalance(c)
	if balance < 0 {
		t.Health -= t.damage(-balance, p)
	} else {
		t.Health = math.Min(t.Health+t.recovery(c), p.MaxHealth)
	}

	t.Age++

	if t.Health <= 0 {
		t.Health = 0
		t.Status = StatusDead
		return true
	}
	t.Status = StatusFor(t.Health, p)
	return false
}

func (t *Tree) damage(deficit float64, p *scenario.Params) float64 {
	d := deficit / p.DamageDampener
	switch {
	case t.Age < p.YoungAge:
		d *= p.YoungDamageMul
	case t.Age > p.OldAge:
		d *= p.OldDamageMul
	}
	return d
}

func (t *Tree) recovery(c *StepContext) float64 {
	p := c.Params
	r := p.BaseRecovery
	if c.Temperature > p.HotRecoveryThreshold {
		r = p.HotRecovery
	}
	if t.Age < p.GrowingAge {
		r += p.GrowingBonus
	}
	if t.DemandFactor < p.DroughtResistantBelow {
		r += p.DroughtResistantBonus
	}
	return r
}

// StatusFor maps a health value onto the non-overlapping status bands.
func StatusFor(health float64, p *scenario.Params) Status {
	switch {
	case health <= 0:
		return StatusDead
	case health < p.CriticalBelow:
		return StatusCritical
	case health < p.StressedBelow:
		return StatusStressed
	default:
		return StatusAlive
	}
}

// Replant turns a dead slot into a fresh drought-resistant planting.
// The ID and position are kept.
func (t *Tree) Replant(p *scenario.Params) {
	if t.Status != StatusDead {
		panic("agents: replanting a living tree")
	}
	t.Health = p.MaxHealth
	t.Status = StatusAlive
	t.Age = p.ReplantAge
	t.Crown = p.ReplantCrown
	t.Species = p.ReplantSpecies
	t.Kind = species.Resolve(p.ReplantSpecies)
	t.DemandFactor = p.ReplantDemandFactor
	t.NewPlanting = true
}
