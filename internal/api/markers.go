// Map marker rendering data for the viewer.
package api

import (
	"github.com/talgya/treesim/internal/agents"
	"github.com/talgya/treesim/internal/entropy"
)

// Marker colors.
const (
	ColorAlive       = "#2ecc71"
	ColorStressed    = "#f1c40f"
	ColorCritical    = "#e67e22"
	ColorDead        = "#e74c3c"
	ColorNewPlanting = "#3498db"
)

type marker struct {
	ID          agents.TreeID `json:"id"`
	Lat         float64       `json:"lat"`
	Lon         float64       `json:"lon"`
	Status      agents.Status `json:"status"`
	NewPlanting bool          `json:"new_planting"`
	Color       string        `json:"color"`
	Radius      float64       `json:"radius"`
	Opacity     float64       `json:"opacity"`
}

// markerStyle maps a tree to color, radius and fill opacity. New plantings
// are blue whatever their status.
func markerStyle(t *agents.Tree) (color string, radius, opacity float64) {
	color, radius, opacity = ColorAlive, 2, 0.6
	switch t.Status {
	case agents.StatusDead:
		color, radius, opacity = ColorDead, 3, 0.8
	case agents.StatusCritical:
		color = ColorCritical
	case agents.StatusStressed:
		color = ColorStressed
	}
	if t.NewPlanting {
		color, radius, opacity = ColorNewPlanting, 3.5, 0.9
	}
	return color, radius, opacity
}

// sampleMarkers picks at most limit trees with a sampler seeded by year, so
// the same year always renders the same subset. Trees without a position
// are sampled but not drawn.
func sampleMarkers(trees []*agents.Tree, year, limit int) []marker {
	shown := trees
	if limit > 0 && len(trees) > limit {
		shown = entropy.Sample(entropy.ForDisplay(year), trees, limit)
	}

	out := make([]marker, 0, len(shown))
	for _, t := range shown {
		if t.Position == nil {
			continue
		}
		color, radius, opacity := markerStyle(t)
		out = append(out, marker{
			ID:          t.ID,
			Lat:         t.Position.Lat,
			Lon:         t.Position.Lon,
			Status:      t.Status,
			NewPlanting: t.NewPlanting,
			Color:       color,
			Radius:      radius,
			Opacity:     opacity,
		})
	}
	return out
}
