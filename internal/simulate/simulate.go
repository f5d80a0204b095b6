// Package simulate turns simulation form parameters into new scan records.
package simulate

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/sonar-hub/internal/catalog"
	"github.com/ashureev/sonar-hub/internal/domain"
	"github.com/ashureev/sonar-hub/internal/scangen"
)

// DefaultArea is used when the request names no area.
const DefaultArea = "Simulated Area"

// Request describes a simulation run. Zero Frequency or RangeOrDepth select
// the domain default.
type Request struct {
	SonarType    string
	AreaName     string
	Frequency    float64
	RangeOrDepth float64
	Notes        string
	Seed         *int64
	Height       int
	Width        int
}

type profile struct {
	label       string
	patterns    []domain.Pattern
	palette     string
	defaultFreq float64
	params      func(freq, bound float64) domain.Parameters
}

var profiles = map[domain.Domain]profile{
	domain.DomainSea: {
		label:       "Sea (Side-Scan Sonar)",
		patterns:    []domain.Pattern{domain.PatternObjectStrong, domain.PatternObjectFaint, domain.PatternClear, domain.PatternSmallObjectsSea},
		palette:     "Viridis",
		defaultFreq: 300,
		params: func(freq, bound float64) domain.Parameters {
			return domain.Parameters{"frequency_khz": freq, "range_m": bound, "sim_operator": "AutoSim"}
		},
	},
	domain.DomainLand: {
		label:       "Land (Ground Penetrating Radar - GPR)",
		patterns:    []domain.Pattern{domain.PatternLayeredGPR, domain.PatternObjectFaint, domain.PatternUtilityGPR},
		palette:     "Plasma",
		defaultFreq: 200,
		params: func(freq, bound float64) domain.Parameters {
			return domain.Parameters{"frequency_mhz": freq, "depth_m_max": bound, "survey_line": "SIM_L001"}
		},
	},
	domain.DomainAir: {
		label:       "Air (Ultrasonic Array Sensor)",
		patterns:    []domain.Pattern{domain.PatternObjectFaint, domain.PatternClutteredAir},
		palette:     "Cividis",
		defaultFreq: 40,
		params: func(freq, bound float64) domain.Parameters {
			return domain.Parameters{"frequency_khz": freq, "max_range_m": bound, "scan_angle_deg": 90}
		},
	},
	domain.DomainGeneric: {
		label:       "Generic Sonar",
		patterns:    []domain.Pattern{domain.PatternClear},
		palette:     "Gray",
		defaultFreq: 100,
		params: func(freq, bound float64) domain.Parameters {
			return domain.Parameters{"frequency_generic": freq, "range_generic": bound}
		},
	},
}

// Orchestrator runs simulations.
type Orchestrator struct {
	now    func() time.Time
	suffix func() string
}

// New returns an Orchestrator using the wall clock.
func New() *Orchestrator {
	return &Orchestrator{
		now:    time.Now,
		suffix: func() string { return strings.ReplaceAll(uuid.NewString(), "-", "")[:6] },
	}
}

// NewScanID formats a simulation ID from t and a random suffix, e.g.
// SIM20261019123045-3f9a1c.
func NewScanID(t time.Time, suffix string) string {
	return fmt.Sprintf("SIM%s-%s", t.UTC().Format("20060102150405"), suffix)
}

// Run produces a fresh scan record for req. The record is not added to any
// catalog.
func (o *Orchestrator) Run(req Request) (*domain.ScanRecord, error) {
	d := domain.InferDomain(req.SonarType)
	p := profiles[d]

	var rng *rand.Rand
	if req.Seed != nil {
		rng = scangen.NewRand(*req.Seed)
	} else {
		rng = scangen.NewTimeRand()
	}

	freq := req.Frequency
	if freq <= 0 {
		freq = p.defaultFreq
	}
	bound := req.RangeOrDepth
	if bound <= 0 {
		bound = scangen.DefaultBound(d)
	}
	height, width := req.Height, req.Width
	if height <= 0 {
		height = scangen.DefaultHeight
	}
	if width <= 0 {
		width = scangen.DefaultWidth
	}

	pattern := p.patterns[rng.IntN(len(p.patterns))]
	grid, err := scangen.GenerateGrid(rng, pattern, height, width, d)
	if err != nil {
		return nil, fmt.Errorf("generate grid: %w", err)
	}
	targets := scangen.GenerateTargets(rng, d, bound)

	now := o.now()
	id := NewScanID(now, o.suffix())

	area := strings.TrimSpace(req.AreaName)
	location := area
	if location == "" {
		location = DefaultArea
	}

	summary := fmt.Sprintf("Simulated scan %s completed for %s. Found %d potential target(s).", id, location, len(targets))
	notes := strings.TrimSpace(req.Notes)
	if notes != "" {
		summary += " Notes: " + notes
	}

	return &domain.ScanRecord{
		ScanID:          id,
		SonarType:       p.label,
		Timestamp:       now.UTC().Format(domain.TimestampLayout),
		Location:        location,
		Parameters:      p.params(freq, bound),
		IntensityGrid:   grid,
		ColorScale:      p.palette,
		DetectedTargets: targets,
		Summary:         summary,
		UserNotes:       notes,
	}, nil
}

// SetMembership adds rec to cat when keep is true and removes it otherwise.
func SetMembership(cat *catalog.Catalog, rec *domain.ScanRecord, keep bool) {
	if keep {
		cat.Put(rec)
		return
	}
	cat.Remove(rec.ScanID)
}
