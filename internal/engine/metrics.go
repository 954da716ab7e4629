// Per-year aggregate statistics of the tree population.
package engine

import (
	"slices"
	"sort"
	"strings"

	"github.com/talgya/treesim/internal/agents"
	"github.com/talgya/treesim/internal/scenario"
	"github.com/talgya/treesim/internal/species"
)

// UnlabeledSpecies is the breakdown label for trees with a blank species.
const UnlabeledSpecies = "(unlabeled)"

// SpeciesCounts is one row of the per-species breakdown.
type SpeciesCounts struct {
	Label       string `json:"label"`
	Alive       int    `json:"alive"` // Alive, stressed or critical
	Dead        int    `json:"dead"`
	NewPlanting int    `json:"new_planting"`
}

// Total sums all buckets.
func (c SpeciesCounts) Total() int {
	return c.Alive + c.Dead + c.NewPlanting
}

// Snapshot is the aggregate state after one simulated year.
type Snapshot struct {
	Year          int             `json:"year"`
	Alive         int             `json:"alive"` // Any status but dead
	Healthy       int             `json:"healthy"`
	Stressed      int             `json:"stressed"`
	Critical      int             `json:"critical"`
	Dead          int             `json:"dead"`       // Currently dead slots
	DeadTotal     int             `json:"dead_total"` // Cumulative deaths
	Planted       int             `json:"planted"`    // Cumulative replantings
	Precipitation float64         `json:"precipitation"`
	Temperature   float64         `json:"temperature"`
	AvgHealth     float64         `json:"avg_health"` // Over living trees; 0 when none
	Species       []SpeciesCounts `json:"species"`    // Sorted by label
}

// Population returns the number of slots counted.
func (s Snapshot) Population() int {
	return s.Alive + s.Dead
}

// SpeciesFor looks up one label.
func (s Snapshot) SpeciesFor(label string) (SpeciesCounts, bool) {
	i, ok := slices.BinarySearchFunc(s.Species, label, func(c SpeciesCounts, l string) int {
		return strings.Compare(c.Label, l)
	})
	if !ok {
		return SpeciesCounts{}, false
	}
	return s.Species[i], true
}

// TopSpecies returns the n labels with the most trees, largest first.
func (s Snapshot) TopSpecies(n int) []SpeciesCounts {
	top := slices.Clone(s.Species)
	sort.SliceStable(top, func(i, j int) bool {
		return top[i].Total() > top[j].Total()
	})
	if n >= 0 && n < len(top) {
		top = top[:n]
	}
	return top
}

func (s Snapshot) clone() Snapshot {
	s.Species = slices.Clone(s.Species)
	return s
}

// collect builds a snapshot from the live population.
func collect(pop *Scheduler, p *scenario.Params, year int, precip, temp float64, deadTotal, planted int) Snapshot {
	snap := Snapshot{
		Year:          year,
		DeadTotal:     deadTotal,
		Planted:       planted,
		Precipitation: precip,
		Temperature:   temp,
	}

	buckets := make(map[string]*SpeciesCounts)
	bucket := func(label string) *SpeciesCounts {
		b, ok := buckets[label]
		if !ok {
			b = &SpeciesCounts{Label: label}
			buckets[label] = b
		}
		return b
	}

	healthSum := 0.0
	pop.Each(func(t *agents.Tree) {
		label := species.Simplify(t.Species)
		if label == "" {
			label = UnlabeledSpecies
		}

		switch t.Status {
		case agents.StatusDead:
			snap.Dead++
			bucket(label).Dead++
			return
		case agents.StatusCritical:
			snap.Critical++
		case agents.StatusStressed:
			snap.Stressed++
		default:
			snap.Healthy++
		}
		snap.Alive++
		healthSum += t.Health

		if t.NewPlanting {
			bucket(p.NewPlantingLabel).NewPlanting++
		} else {
			bucket(label).Alive++
		}
	})

	if snap.Alive > 0 {
		snap.AvgHealth = healthSum / float64(snap.Alive)
	}

	snap.Species = make([]SpeciesCounts, 0, len(buckets))
	for _, b := range buckets {
		snap.Species = append(snap.Species, *b)
	}
	sort.Slice(snap.Species, func(i, j int) bool {
		return snap.Species[i].Label < snap.Species[j].Label
	})
	return snap
}

// History is the append-only sequence of snapshots, one per year.
// Accessors return copies; only the city model appends.
type History struct {
	snaps []Snapshot
}

func (h *History) append(s Snapshot) {
	h.snaps = append(h.snaps, s)
}

// Len returns the number of snapshots.
func (h *History) Len() int {
	return len(h.snaps)
}

// All returns every snapshot in year order.
func (h *History) All() []Snapshot {
	out := make([]Snapshot, len(h.snaps))
	for i, s := range h.snaps {
		out[i] = s.clone()
	}
	return out
}

// Latest returns the most recent snapshot.
func (h *History) Latest() (Snapshot, bool) {
	if len(h.snaps) == 0 {
		return Snapshot{}, false
	}
	return h.snaps[len(h.snaps)-1].clone(), true
}

// ForYear returns the snapshot of a year.
func (h *History) ForYear(year int) (Snapshot, bool) {
	i := sort.Search(len(h.snaps), func(i int) bool { return h.snaps[i].Year >= year })
	if i < len(h.snaps) && h.snaps[i].Year == year {
		return h.snaps[i].clone(), true
	}
	return Snapshot{}, false
}

// Range returns snapshots with from <= Year <= to.
func (h *History) Range(from, to int) []Snapshot {
	var out []Snapshot
	for _, s := range h.snaps {
		if s.Year >= from && s.Year <= to {
			out = append(out, s.clone())
		}
	}
	return out
}
