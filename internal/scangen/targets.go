package scangen

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"

	"github.com/ashureev/sonar-hub/internal/domain"
)

var (
	seaTargetTypes  = []string{"Potential Wreckage Fragment", "Unknown Anomaly", "Seabed Feature", "Submerged Object"}
	landTargetTypes = []string{"Buried Utility Line", "Subsurface Void", "Foundation Remnant", "Geological Layer Change"}
	landMaterials   = []string{"Concrete/Metal", "Soil Disturbance", "Clay/Rock", "Unknown"}
	airTargetTypes  = []string{"Nearby Obstacle", "Reflective Surface", "Moving Object Signature"}
)

// DefaultBound returns the range or depth used when a caller supplies none.
func DefaultBound(d domain.Domain) float64 {
	switch d {
	case domain.DomainSea:
		return 100
	case domain.DomainLand:
		return 5
	case domain.DomainAir:
		return 8
	default:
		return 50
	}
}

// GenerateTargets produces synthetic detections for a scan in domain d.
// bound is the scan's range (sea, air, generic) or maximum depth (land);
// values <= 0 fall back to DefaultBound. The result is never empty.
func GenerateTargets(rng *rand.Rand, d domain.Domain, bound float64) []domain.Target {
	if bound <= 0 {
		bound = DefaultBound(d)
	}

	switch d {
	case domain.DomainSea:
		n := intRange(rng, 1, 4)
		out := make([]domain.Target, 0, n)
		for i := 0; i < n; i++ {
			kind := pick(rng, seaTargetTypes)
			rangeM := round(uniform(rng, 20, bound*0.9), 1)
			size := fmt.Sprintf("%.1fx%.1f", round(uniform(rng, 0.5, 5), 1), round(uniform(rng, 0.5, 3), 1))
			out = append(out, domain.Target{
				ID:         fmt.Sprintf("SIM_TGT_S%02d", i+1),
				Type:       kind,
				Confidence: round(uniform(rng, 0.55, 0.92), 2),
				RangeM:     domain.Float(rangeM),
				SizeApprox: size,
				Details:    fmt.Sprintf("Auto-generated target. Acoustic signature suggests %s at approx. %.1fm.", strings.ToLower(kind), rangeM),
			})
		}
		return out

	case domain.DomainLand:
		n := intRange(rng, 1, 4)
		out := make([]domain.Target, 0, n)
		for i := 0; i < n; i++ {
			kind := pick(rng, landTargetTypes)
			depth := round(uniform(rng, 0.3, bound*0.85), 1)
			out = append(out, domain.Target{
				ID:            fmt.Sprintf("SIM_TGT_L%02d", i+1),
				Type:          kind,
				Confidence:    round(uniform(rng, 0.65, 0.88), 2),
				DepthM:        domain.Float(depth),
				MaterialGuess: pick(rng, landMaterials),
				Details:       fmt.Sprintf("Auto-generated GPR target. Reflection indicates %s at ~%.1fm depth.", strings.ToLower(kind), depth),
			})
		}
		return out

	case domain.DomainAir:
		n := intRange(rng, 1, 3)
		out := make([]domain.Target, 0, n)
		for i := 0; i < n; i++ {
			kind := pick(rng, airTargetTypes)
			dist := round(uniform(rng, 0.5, bound*0.9), 1)
			out = append(out, domain.Target{
				ID:         fmt.Sprintf("SIM_TGT_A%02d", i+1),
				Type:       kind,
				Confidence: round(uniform(rng, 0.75, 0.99), 2),
				DistanceM:  domain.Float(dist),
				Details:    fmt.Sprintf("Auto-generated airborne target. Echo suggests %s at %.1fm.", strings.ToLower(kind), dist),
			})
		}
		return out

	default:
		return []domain.Target{{
			ID:           "SIM_TGT_GEN01",
			Type:         "Generic Anomaly",
			Confidence:   round(uniform(rng, 0.5, 0.8), 2),
			RangeGeneric: domain.Float(round(uniform(rng, 10, bound*0.8), 1)),
			Details:      "Auto-generated generic target.",
		}}
	}
}

func round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
