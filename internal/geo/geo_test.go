package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsProjected(t *testing.T) {
	assert.False(t, IsProjected(52.5, 13.4))
	assert.False(t, IsProjected(-90, 360))
	assert.True(t, IsProjected(5817860, 391400))
	assert.True(t, IsProjected(52.5, 391400))
	assert.True(t, IsProjected(-361, 0))
}

func TestBoundsContains(t *testing.T) {
	b := BerlinBounds()
	assert.True(t, b.Contains(LatLon{Lat: 52.5, Lon: 13.43}))
	assert.True(t, b.Contains(LatLon{Lat: 52, Lon: 14}))
	assert.False(t, b.Contains(LatLon{Lat: 48.1, Lon: 11.6}))
}

func TestReprojectUTM33Berlin(t *testing.T) {
	r, err := NewReprojector(ETRS89UTM33N)
	require.NoError(t, err)

	// Roughly Kreuzberg: lat 52.50, lon 13.40.
	p, err := r.ToLatLon(391400, 5817860)
	require.NoError(t, err)
	assert.InDelta(t, 52.50, p.Lat, 0.05)
	assert.InDelta(t, 13.40, p.Lon, 0.05)
}

func TestResolvePassesThroughDegrees(t *testing.T) {
	r, err := NewReprojector(ETRS89UTM33N)
	require.NoError(t, err)

	p, err := r.Resolve(52.51, 13.45)
	require.NoError(t, err)
	assert.Equal(t, LatLon{Lat: 52.51, Lon: 13.45}, p)

	p, err = r.Resolve(5817860, 391400)
	require.NoError(t, err)
	assert.InDelta(t, 52.50, p.Lat, 0.05)

	_, err = r.Resolve(95, 13)
	assert.ErrorIs(t, err, ErrNoConversion)

	_, err = r.Resolve(math.NaN(), 13)
	assert.ErrorIs(t, err, ErrNoConversion)
}
