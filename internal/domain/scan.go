package domain

import (
	"fmt"
	"strings"
)

// TimestampLayout is the display format used for scan timestamps.
const TimestampLayout = "2006-01-02 15:04 UTC"

// Domain is the sensing environment a scan belongs to.
type Domain string

const (
	DomainSea     Domain = "sea"
	DomainLand    Domain = "land"
	DomainAir     Domain = "air"
	DomainGeneric Domain = "generic"
)

// InferDomain maps a free-form sonar type label onto a Domain.
// Matching is by substring and checked in sea, land, air order.
func InferDomain(sonarType string) Domain {
	switch {
	case strings.Contains(sonarType, "Sea"), strings.Contains(sonarType, "SSS"):
		return DomainSea
	case strings.Contains(sonarType, "Land"), strings.Contains(sonarType, "GPR"):
		return DomainLand
	case strings.Contains(sonarType, "Air"), strings.Contains(sonarType, "Ultrasonic"):
		return DomainAir
	default:
		return DomainGeneric
	}
}

// Pattern names a synthetic intensity grid shape.
type Pattern string

const (
	PatternClear           Pattern = "clear"
	PatternObjectStrong    Pattern = "object_strong"
	PatternObjectFaint     Pattern = "object_faint"
	PatternLayeredGPR      Pattern = "layered_gpr"
	PatternUtilityGPR      Pattern = "utility_gpr"
	PatternSmallObjectsSea Pattern = "small_objects_sea"
	PatternClutteredAir    Pattern = "cluttered_air"
)

// Patterns lists every supported pattern.
func Patterns() []Pattern {
	return []Pattern{
		PatternClear, PatternObjectStrong, PatternObjectFaint, PatternLayeredGPR,
		PatternUtilityGPR, PatternSmallObjectsSea, PatternClutteredAir,
	}
}

// Grid is a row-major matrix of echo intensities in [0,1].
type Grid struct {
	Rows   int
	Cols   int
	Values []float64
}

// NewGrid allocates a zeroed grid.
func NewGrid(rows, cols int) Grid {
	return Grid{Rows: rows, Cols: cols, Values: make([]float64, rows*cols)}
}

// At returns the value at row r, column c.
func (g Grid) At(r, c int) float64 {
	return g.Values[r*g.Cols+c]
}

// Set stores v at row r, column c.
func (g Grid) Set(r, c int, v float64) {
	g.Values[r*g.Cols+c] = v
}

// Shape formats the grid dimensions as "(rows, cols)".
func (g Grid) Shape() string {
	return fmt.Sprintf("(%d, %d)", g.Rows, g.Cols)
}

// Matrix returns the grid as nested rows.
func (g Grid) Matrix() [][]float64 {
	out := make([][]float64, g.Rows)
	for r := 0; r < g.Rows; r++ {
		row := make([]float64, g.Cols)
		copy(row, g.Values[r*g.Cols:(r+1)*g.Cols])
		out[r] = row
	}
	return out
}

// Target is a detected feature inside a scan. Only the fields relevant to the
// scan's domain are populated.
type Target struct {
	ID             string   `json:"id"`
	Type           string   `json:"type"`
	Confidence     float64  `json:"confidence"`
	RangeM         *float64 `json:"range_m,omitempty"`
	SizeApprox     string   `json:"size_m_approx,omitempty"`
	DepthM         *float64 `json:"depth_m_approx,omitempty"`
	MaterialGuess  string   `json:"material_guess,omitempty"`
	DistanceM      *float64 `json:"distance_m,omitempty"`
	OrientationDeg *float64 `json:"orientation_deg,omitempty"`
	RangeGeneric   *float64 `json:"range_generic,omitempty"`
	Details        string   `json:"details"`
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// Parameters holds scalar acquisition settings keyed by name.
type Parameters map[string]any

// ScanRecord is one sonar acquisition. Records are not mutated once they are
// placed in a catalog.
type ScanRecord struct {
	ScanID          string     `json:"scan_id"`
	SonarType       string     `json:"sonar_type"`
	Timestamp       string     `json:"timestamp"`
	Location        string     `json:"location"`
	Parameters      Parameters `json:"parameters"`
	IntensityGrid   Grid       `json:"-"`
	ColorScale      string     `json:"color_scale"`
	DetectedTargets []Target   `json:"detected_targets"`
	Summary         string     `json:"summary"`
	UserNotes       string     `json:"user_notes,omitempty"`
}

// Domain infers the record's domain from its sonar type label.
func (r *ScanRecord) Domain() Domain {
	return InferDomain(r.SonarType)
}

// IsSimulated reports whether the record was produced by a simulation run.
func (r *ScanRecord) IsSimulated() bool {
	return strings.HasPrefix(r.ScanID, "SIM")
}
