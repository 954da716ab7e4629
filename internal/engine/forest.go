// Replanting policy. Dead slots are stochastically refilled with a
// drought-resistant species.
package engine

import (
	"math/rand"

	"github.com/talgya/treesim/internal/agents"
	"github.com/talgya/treesim/internal/scenario"
)

// ForestManager revives dead trees as new plantings.
type ForestManager struct {
	Probability float64 // Per dead tree, per year
	params      *scenario.Params
}

// NewForestManager uses params.ReplantProbability.
func NewForestManager(params *scenario.Params) *ForestManager {
	return &ForestManager{Probability: params.ReplantProbability, params: params}
}

// Replant draws one trial per dead tree, including trees that died this
// year, and returns the number revived. A revived tree is alive and so is
// never drawn twice in one call.
func (f *ForestManager) Replant(pop *Scheduler, rng *rand.Rand) int {
	revived := 0
	pop.Each(func(t *agents.Tree) {
		if t.Status != agents.StatusDead {
			return
		}
		if rng.Float64() < f.Probability {
			t.Replant(f.params)
			revived++
		}
	})
	return revived
}
