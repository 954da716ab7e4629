package api

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/talgya/treesim/internal/agents"
	"github.com/talgya/treesim/internal/geo"
)

func TestMarkerStyle(t *testing.T) {
	cases := []struct {
		tree    agents.Tree
		color   string
		radius  float64
		opacity float64
	}{
		{agents.Tree{Status: agents.StatusAlive}, ColorAlive, 2, 0.6},
		{agents.Tree{Status: agents.StatusStressed}, ColorStressed, 2, 0.6},
		{agents.Tree{Status: agents.StatusCritical}, ColorCritical, 2, 0.6},
		{agents.Tree{Status: agents.StatusDead}, ColorDead, 3, 0.8},
		{agents.Tree{Status: agents.StatusCritical, NewPlanting: true}, ColorNewPlanting, 3.5, 0.9},
	}
	for _, tc := range cases {
		color, radius, opacity := markerStyle(&tc.tree)
		assert.Equal(t, tc.color, color, tc.tree.Status.String())
		assert.Equal(t, tc.radius, radius)
		assert.Equal(t, tc.opacity, opacity)
	}
}

func TestSampleMarkers(t *testing.T) {
	trees := make([]*agents.Tree, 50)
	for i := range trees {
		pos := geo.LatLon{Lat: 52.5, Lon: 13.4}
		trees[i] = &agents.Tree{ID: agents.TreeID(i), Position: &pos}
	}
	trees[3].Position = nil

	all := sampleMarkers(trees, 2025, 0)
	assert.Len(t, all, 49)

	a := sampleMarkers(trees, 2030, 10)
	b := sampleMarkers(trees, 2030, 10)
	assert.LessOrEqual(t, len(a), 10)
	assert.Equal(t, a, b)
}
