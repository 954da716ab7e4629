package engine

import (
	"errors"
	"math/rand"
	"slices"

	"github.com/talgya/treesim/internal/agents"
)

// ErrPopulationSealed is returned when adding trees after the first step.
var ErrPopulationSealed = errors.New("population is sealed after the first step")

// Scheduler owns the tree arena. Storage order never changes; each step
// walks a fresh random permutation of slot indices.
type Scheduler struct {
	trees   []*agents.Tree
	stepped bool
}

// NewScheduler takes ownership of trees.
func NewScheduler(trees []*agents.Tree) *Scheduler {
	return &Scheduler{trees: trees}
}

// Add appends a tree. Only allowed before the first step.
func (s *Scheduler) Add(t *agents.Tree) error {
	if s.stepped {
		return ErrPopulationSealed
	}
	s.trees = append(s.trees, t)
	return nil
}

// Len returns the fixed population size.
func (s *Scheduler) Len() int {
	return len(s.trees)
}

// Each calls fn for every tree in storage order.
func (s *Scheduler) Each(fn func(*agents.Tree)) {
	for _, t := range s.trees {
		fn(t)
	}
}

// Trees returns a copy of the arena in storage order.
func (s *Scheduler) Trees() []*agents.Tree {
	return slices.Clone(s.trees)
}

// Step visits every tree exactly once in a random order drawn from rng.
func (s *Scheduler) Step(rng *rand.Rand, visit func(*agents.Tree)) {
	s.stepped = true
	for _, i := range rng.Perm(len(s.trees)) {
		visit(s.trees[i])
	}
}
