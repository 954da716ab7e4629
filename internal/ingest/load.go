package ingest

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/talgya/treesim/internal/geo"
	"github.com/talgya/treesim/internal/species"
)

// SkipReason categorizes a dropped record.
type SkipReason string

const (
	SkipBadID        SkipReason = "bad_id"
	SkipMissingPos   SkipReason = "missing_position"
	SkipBadPos       SkipReason = "bad_position"
	SkipReprojection SkipReason = "reprojection_failed"
	SkipOutOfBounds  SkipReason = "out_of_bounds"
	SkipBadAttribute SkipReason = "bad_attribute"
	SkipDuplicateID  SkipReason = "duplicate_id" // First row with an ID wins
)

// Tree is a validated inventory record ready to become an agent.
type Tree struct {
	ID       int64
	Species  string
	Kind     species.Kind
	Age      float64
	Crown    float64
	District string
	Position *geo.LatLon
}

// LoadReport summarizes one ingestion pass.
type LoadReport struct {
	Source   string             `json:"source"`
	Read     int                `json:"read"`
	Filtered int                `json:"filtered"` // Outside the district filter
	Loaded   int                `json:"loaded"`
	Skipped  map[SkipReason]int `json:"skipped"`
}

// SkippedTotal sums all skip reasons.
func (r LoadReport) SkippedTotal() int {
	n := 0
	for _, c := range r.Skipped {
		n += c
	}
	return n
}

// Options controls filtering and defaults.
type Options struct {
	District     string      // Keep only this district; empty keeps all
	Bounds       *geo.Bounds // Drop positions outside; nil disables
	Projection   string      // proj4 definition of projected coordinates
	DefaultAge   float64
	DefaultCrown float64
}

// DefaultOptions matches the Friedrichshain-Kreuzberg inventory setup.
func DefaultOptions() Options {
	b := geo.BerlinBounds()
	return Options{
		District:     "Friedrichshain-Kreuzberg",
		Bounds:       &b,
		Projection:   geo.ETRS89UTM33N,
		DefaultAge:   15,
		DefaultCrown: 4.0,
	}
}

// Load reads src and validates every row. A non-nil error means the source
// itself is unusable; per-row problems only show up in the report.
func Load(src Source, opts Options) ([]Tree, LoadReport, error) {
	report := LoadReport{Source: src.Name(), Skipped: make(map[SkipReason]int)}

	columns, rows, err := src.Rows()
	if err != nil {
		return nil, report, err
	}

	required := RequiredColumns
	if opts.District != "" {
		required = append([]string{ColDistrict}, required...)
	}
	have := make(map[string]bool, len(columns))
	for _, c := range columns {
		have[c] = true
	}
	for _, c := range required {
		if !have[c] {
			return nil, report, fmt.Errorf("%w: %q in %s", ErrMissingColumn, c, src.Name())
		}
	}
	hasID := have[ColID]

	if opts.Projection == "" {
		opts.Projection = geo.ETRS89UTM33N
	}
	reproj, err := geo.NewReprojector(opts.Projection)
	if err != nil {
		return nil, report, err
	}

	trees := make([]Tree, 0, len(rows))
	seen := make(map[int64]bool, len(rows))
	for _, row := range rows {
		report.Read++
		if opts.District != "" && row.Fields[ColDistrict] != opts.District {
			report.Filtered++
			continue
		}

		t, reason := validate(row, hasID, reproj, opts)
		if reason != "" {
			report.Skipped[reason]++
			slog.Debug("record skipped", "row", row.Index, "reason", reason)
			continue
		}
		if seen[t.ID] {
			report.Skipped[SkipDuplicateID]++
			slog.Debug("record skipped", "row", row.Index, "reason", SkipDuplicateID, "id", t.ID)
			continue
		}
		seen[t.ID] = true
		trees = append(trees, t)
	}
	report.Loaded = len(trees)

	slog.Info("tree inventory loaded",
		"source", report.Source,
		"read", report.Read,
		"filtered", report.Filtered,
		"loaded", report.Loaded,
		"skipped", report.SkippedTotal(),
	)
	return trees, report, nil
}

func validate(row Row, hasID bool, reproj *geo.Reprojector, opts Options) (Tree, SkipReason) {
	id := row.Index
	if hasID {
		v, ok := parseNumber(row.Fields[ColID])
		if !ok || v != math.Trunc(v) {
			return Tree{}, SkipBadID
		}
		id = int64(v)
	}

	rawLat, latOK := parseNumber(row.Fields[ColLat])
	rawLon, lonOK := parseNumber(row.Fields[ColLon])
	if isMissing(row.Fields[ColLat]) || isMissing(row.Fields[ColLon]) {
		return Tree{}, SkipMissingPos
	}
	if !latOK || !lonOK {
		return Tree{}, SkipBadPos
	}

	pos, err := reproj.Resolve(rawLat, rawLon)
	if err != nil {
		if geo.IsProjected(rawLat, rawLon) {
			return Tree{}, SkipReprojection
		}
		return Tree{}, SkipBadPos
	}
	if opts.Bounds != nil && !opts.Bounds.Contains(pos) {
		return Tree{}, SkipOutOfBounds
	}

	age, ok := attribute(row.Fields[ColAge], opts.DefaultAge)
	if !ok {
		return Tree{}, SkipBadAttribute
	}
	crown, ok := attribute(row.Fields[ColCrown], opts.DefaultCrown)
	if !ok {
		return Tree{}, SkipBadAttribute
	}

	label := row.Fields[ColSpecies]
	return Tree{
		ID:       id,
		Species:  label,
		Kind:     species.Resolve(label),
		Age:      age,
		Crown:    crown,
		District: row.Fields[ColDistrict],
		Position: &pos,
	}, ""
}

// attribute parses an optional non-negative measurement.
func attribute(s string, def float64) (float64, bool) {
	if isMissing(s) {
		return def, true
	}
	v, ok := parseNumber(s)
	if !ok || v < 0 {
		return 0, false
	}
	return v, true
}

func isMissing(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "nan", "null", "none", "na":
		return true
	}
	return false
}

func parseNumber(s string) (float64, bool) {
	if isMissing(s) {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
