// Package agents provides the street-tree agent and its annual health update.
package agents

import (
	"fmt"

	"github.com/talgya/treesim/internal/geo"
	"github.com/talgya/treesim/internal/species"
)

// TreeID is the stable identifier assigned at load time. Never reused.
type TreeID int64

// Status is derived from health after every update.
type Status uint8

const (
	StatusAlive Status = iota
	StatusStressed
	StatusCritical
	StatusDead // Absorbing; only replanting leaves it
)

var statusNames = [...]string{"alive", "stressed", "critical", "dead"}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "unknown"
}

// MarshalText renders the status by name in JSON payloads.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a status name.
func (s *Status) UnmarshalText(b []byte) error {
	for i, name := range statusNames {
		if name == string(b) {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("unknown tree status %q", b)
}

// Tree is one simulated street tree. Trees are owned by the population
// arena; their slot and ID survive death and replanting.
type Tree struct {
	ID       TreeID      `json:"id"`
	Position *geo.LatLon `json:"position,omitempty"` // nil: not rendered, still simulated

	// Biology
	Species string       `json:"species"` // Inventory label
	Kind    species.Kind `json:"-"`
	Age     float64      `json:"age"`   // Years
	Crown   float64      `json:"crown"` // Crown diameter, metres

	// Physiology
	Health       float64 `json:"health"` // 0–MaxHealth
	Status       Status  `json:"status"`
	DemandFactor float64 `json:"demand_factor"`

	// Provenance: set when the slot was replanted. Never cleared.
	NewPlanting bool `json:"new_planting"`
}

// Alive reports whether the tree still takes part in the simulation.
func (t *Tree) Alive() bool {
	return t.Status != StatusDead
}
