// Package geo handles tree positions: WGS84 coordinates, bounding boxes and
// conversion of projected inventory coordinates to latitude/longitude.
package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/ctessum/geom/proj"
)

// Projection definitions (proj4 syntax).
const (
	// ETRS89UTM33N is EPSG:25833, used by the Berlin tree inventory.
	ETRS89UTM33N = "+proj=utm +zone=33 +ellps=GRS80 +towgs84=0,0,0,0,0,0,0 +units=m +no_defs"
	// WGS84 is EPSG:4326.
	WGS84 = "+proj=longlat +datum=WGS84 +no_defs"
)

// ProjectedMagnitude is the coordinate magnitude above which a value cannot
// be degrees and is treated as projected metres.
const ProjectedMagnitude = 360.0

// ErrNoConversion is returned when a projected point has no valid lat/lon.
var ErrNoConversion = errors.New("coordinate conversion failed")

// LatLon is a WGS84 position in degrees.
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the position lies on the globe.
func (p LatLon) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// Bounds is an inclusive lat/lon box.
type Bounds struct {
	MinLat float64 `json:"min_lat" yaml:"min_lat"`
	MaxLat float64 `json:"max_lat" yaml:"max_lat"`
	MinLon float64 `json:"min_lon" yaml:"min_lon"`
	MaxLon float64 `json:"max_lon" yaml:"max_lon"`
}

// BerlinBounds covers the city with a margin (lon 13–14, lat 52–53).
func BerlinBounds() Bounds {
	return Bounds{MinLat: 52, MaxLat: 53, MinLon: 13, MaxLon: 14}
}

// Contains reports whether p lies inside b.
func (b Bounds) Contains(p LatLon) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lon >= b.MinLon && p.Lon <= b.MaxLon
}

// IsProjected reports whether a raw (lat, lon) pair is in projected units.
func IsProjected(lat, lon float64) bool {
	return math.Abs(lat) > ProjectedMagnitude || math.Abs(lon) > ProjectedMagnitude
}

// Reprojector converts projected easting/northing pairs to WGS84.
type Reprojector struct {
	trans proj.Transformer
}

// NewReprojector builds a converter from the given proj4 definition to WGS84.
func NewReprojector(from string) (*Reprojector, error) {
	src, err := proj.Parse(from)
	if err != nil {
		return nil, fmt.Errorf("parse source projection: %w", err)
	}
	dst, err := proj.Parse(WGS84)
	if err != nil {
		return nil, fmt.Errorf("parse wgs84: %w", err)
	}
	trans, err := src.NewTransform(dst)
	if err != nil {
		return nil, fmt.Errorf("build transform: %w", err)
	}
	return &Reprojector{trans: trans}, nil
}

// ToLatLon converts one projected point.
func (r *Reprojector) ToLatLon(easting, northing float64) (LatLon, error) {
	lon, lat, err := r.trans(easting, northing)
	if err != nil {
		return LatLon{}, fmt.Errorf("%w: %v", ErrNoConversion, err)
	}
	p := LatLon{Lat: lat, Lon: lon}
	if math.IsNaN(lat) || math.IsNaN(lon) || !p.Valid() {
		return LatLon{}, ErrNoConversion
	}
	return p, nil
}

// Resolve returns the WGS84 position for a raw inventory pair, reprojecting
// when either value is beyond ProjectedMagnitude.
func (r *Reprojector) Resolve(rawLat, rawLon float64) (LatLon, error) {
	if !IsProjected(rawLat, rawLon) {
		p := LatLon{Lat: rawLat, Lon: rawLon}
		if !p.Valid() {
			return LatLon{}, ErrNoConversion
		}
		return p, nil
	}
	// Projected inventories store northing in the latitude column.
	return r.ToLatLon(rawLon, rawLat)
}
