// Agent spawning: turns validated inventory records into live trees with
// jittered starting health.
package agents

import (
	"math/rand"

	"github.com/talgya/treesim/internal/ingest"
	"github.com/talgya/treesim/internal/scenario"
)

// Spawner creates trees for the simulation.
type Spawner struct {
	rng    *rand.Rand
	params *scenario.Params
}

// NewSpawner creates a spawner drawing health jitter from rng.
func NewSpawner(rng *rand.Rand, params *scenario.Params) *Spawner {
	return &Spawner{rng: rng, params: params}
}

// SpawnAll creates one tree per record, preserving record order.
func (s *Spawner) SpawnAll(records []ingest.Tree) []*Tree {
	trees := make([]*Tree, 0, len(records))
	for _, rec := range records {
		trees = append(trees, s.Spawn(rec))
	}
	return trees
}

// Spawn creates a single tree. Health starts uniformly in
// [InitialHealthMin, InitialHealthMax] regardless of species.
func (s *Spawner) Spawn(rec ingest.Tree) *Tree {
	if rec.Age < 0 || rec.Crown < 0 {
		panic("agents: negative age or crown from ingestion")
	}
	p := s.params
	health := float64(p.InitialHealthMin + s.rng.Intn(p.InitialHealthMax-p.InitialHealthMin+1))

	return &Tree{
		ID:           TreeID(rec.ID),
		Position:     rec.Position,
		Species:      rec.Species,
		Kind:         rec.Kind,
		Age:          rec.Age,
		Crown:        rec.Crown,
		Health:       health,
		Status:       StatusFor(health, p),
		DemandFactor: rec.Kind.DemandFactor(),
	}
}
