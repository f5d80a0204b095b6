package catalog

import (
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/sonar-hub/internal/domain"
	"github.com/ashureev/sonar-hub/internal/scangen"
)

type fixtureSpec struct {
	id        string
	sonarType string
	age       time.Duration
	location  string
	params    domain.Parameters
	pattern   domain.Pattern
	height    int
	width     int
	palette   string
	targets   []domain.Target
	summary   string
}

var fixtureSpecs = []fixtureSpec{
	{
		id:        "SEA001",
		sonarType: "Sea (Side-Scan Sonar)",
		age:       53 * time.Hour,
		location:  "Coastal Region A1 - Seabed Survey",
		params:    domain.Parameters{"frequency_khz": 400, "range_m": 150, "depth_m": 45, "operator": "Dr. Sonar"},
		pattern:   domain.PatternObjectStrong, height: 150, width: 300,
		palette: "Viridis",
		targets: []domain.Target{
			{ID: "TGT001", Type: "Man-Made Object (Possible Wreck)", Confidence: 0.78, RangeM: domain.Float(75), SizeApprox: "5x2", Details: "Strong acoustic signature, rectangular shape."},
			{ID: "TGT002", Type: "Natural Rock Formation", Confidence: 0.95, RangeM: domain.Float(110), SizeApprox: "8x5", Details: "Irregular shape, matches seabed geology."},
		},
		summary: "Scan SEA001 shows a significant man-made object and a large natural rock formation. Seabed appears to be sandy with some undulation.",
	},
	{
		id:        "LAND001",
		sonarType: "Land (Ground Penetrating Radar - GPR)",
		age:       26 * time.Hour,
		location:  "Site B - Archeological Dig Area 3",
		params:    domain.Parameters{"frequency_mhz": 250, "depth_m_max": 5, "survey_line": "L004"},
		pattern:   domain.PatternLayeredGPR, height: 200, width: 400,
		palette: "Plasma",
		targets: []domain.Target{
			{ID: "TGT003", Type: "Buried Structure (Foundation Wall)", Confidence: 0.82, DepthM: domain.Float(1.5), MaterialGuess: "Stone/Brick", Details: "Linear feature with strong reflection."},
			{ID: "TGT004", Type: "Utility Pipe", Confidence: 0.70, DepthM: domain.Float(0.8), MaterialGuess: "PVC/Metal", Details: "Hyperbolic reflection signature, small diameter."},
		},
		summary: "GPR Scan LAND001 reveals a potential buried foundation wall at ~1.5m and a utility pipe closer to the surface.",
	},
	{
		id:        "AIR001",
		sonarType: "Air (Ultrasonic Array Sensor)",
		age:       3 * time.Hour,
		location:  "Indoor Test Environment - Chamber 2",
		params:    domain.Parameters{"frequency_khz": 40, "scan_angle_deg": 90, "max_range_m": 10},
		pattern:   domain.PatternObjectFaint, height: 100, width: 200,
		palette: "Cividis",
		targets: []domain.Target{
			{ID: "TGT005", Type: "Flat Surface (Wall)", Confidence: 0.98, DistanceM: domain.Float(5.2), OrientationDeg: domain.Float(0), Details: "Consistent echo across multiple sensors."},
			{ID: "TGT006", Type: "Small Obstacle", Confidence: 0.65, DistanceM: domain.Float(2.1), SizeApprox: "0.3x0.3", Details: "Localized echo, possibly cylindrical."},
		},
		summary: "Airborne ultrasonic scan AIR001 mapped a wall at 5.2m and detected a small obstacle at 2.1m.",
	},
	{
		id:        "SEA002",
		sonarType: "Sea (Side-Scan Sonar - High Frequency)",
		age:       130 * time.Hour,
		location:  "Shallow Reef Zone - Small Target Search",
		params:    domain.Parameters{"frequency_khz": 600, "range_m": 75, "depth_m": 20, "operator": "Ops Team Bravo"},
		pattern:   domain.PatternSmallObjectsSea, height: 120, width: 280,
		palette: "Inferno",
		targets: []domain.Target{
			{ID: "TGT007", Type: "Small Debris Field", Confidence: 0.65, RangeM: domain.Float(40), SizeApprox: "Scattered <1m pieces", Details: "Multiple small, weak acoustic signatures."},
			{ID: "TGT008", Type: "Seabed Scour", Confidence: 0.80, RangeM: domain.Float(55), SizeApprox: "3m length", Details: "Linear depression on seabed."},
		},
		summary: "High-frequency scan SEA002 identified a scattered debris field and seabed scour marks in the shallow reef zone. Several minor anomalies present.",
	},
	{
		id:        "LAND002",
		sonarType: "Land (Ground Penetrating Radar - GPR)",
		age:       79 * time.Hour,
		location:  "Urban Area - Utility Mapping Project",
		params:    domain.Parameters{"frequency_mhz": 400, "depth_m_max": 3, "survey_line": "U007B"},
		pattern:   domain.PatternUtilityGPR, height: 180, width: 350,
		palette: "Magma",
		targets: []domain.Target{
			{ID: "TGT009", Type: "Suspected Gas Line", Confidence: 0.85, DepthM: domain.Float(1.2), MaterialGuess: "Metal/PE", Details: "Clear hyperbolic reflection, medium diameter."},
			{ID: "TGT010", Type: "Possible Conduit/Cable", Confidence: 0.70, DepthM: domain.Float(0.6), MaterialGuess: "Unknown", Details: "Fainter, smaller hyperbolic signature."},
		},
		summary: "GPR Scan LAND002 for utility mapping detected a probable gas line at 1.2m and another shallower linear anomaly, possibly a conduit.",
	},
	{
		id:        "AIR002",
		sonarType: "Air (Ultrasonic Sensor - Multi-Echo Mode)",
		age:       8 * time.Hour,
		location:  "Cluttered Warehouse Aisle 3",
		params:    domain.Parameters{"frequency_khz": 50, "scan_angle_deg": 120, "max_range_m": 5},
		pattern:   domain.PatternClutteredAir, height: 110, width: 220,
		palette: "Turbo",
		targets: []domain.Target{
			{ID: "TGT011", Type: "Pallet Rack Shelf", Confidence: 0.90, DistanceM: domain.Float(2.5), OrientationDeg: domain.Float(-15), Details: "Strong planar reflection."},
			{ID: "TGT012", Type: "Stacked Boxes", Confidence: 0.75, DistanceM: domain.Float(1.5), SizeApprox: "1.0x0.8", Details: "Multiple intermittent echoes, irregular shape."},
			{ID: "TGT013", Type: "Overhead Pipe", Confidence: 0.60, DistanceM: domain.Float(3.8), SizeApprox: "0.1 diameter", Details: "Weak, localized echo from above scan center."},
		},
		summary: "Ultrasonic scan AIR002 in a cluttered warehouse identified a pallet rack, stacked boxes, and a potential overhead pipe.",
	},
}

var fixtures = sync.OnceValue(func() []*domain.ScanRecord {
	return buildFixtures(time.Now().UTC())
})

// Fixtures returns the built-in scan records. They are generated once per
// process and shared by every session; callers must not modify them.
func Fixtures() []*domain.ScanRecord {
	return fixtures()
}

// NewSessionCatalog returns a catalog seeded with the built-in fixtures.
func NewSessionCatalog() *Catalog {
	return NewWithRecords(Fixtures())
}

// buildFixtures generates fixture records. Grids are seeded from the scan ID
// so a fixture looks the same across restarts.
func buildFixtures(now time.Time) []*domain.ScanRecord {
	out := make([]*domain.ScanRecord, 0, len(fixtureSpecs))
	for _, fs := range fixtureSpecs {
		d := domain.InferDomain(fs.sonarType)
		grid, err := scangen.GenerateGrid(scangen.NewRand(scangen.SeedFor(fs.id)), fs.pattern, fs.height, fs.width, d)
		if err != nil {
			slog.Error("Failed to generate fixture grid", "scan_id", fs.id, "error", err)
			continue
		}
		params := make(domain.Parameters, len(fs.params))
		for k, v := range fs.params {
			params[k] = v
		}
		targets := make([]domain.Target, len(fs.targets))
		copy(targets, fs.targets)

		out = append(out, &domain.ScanRecord{
			ScanID:          fs.id,
			SonarType:       fs.sonarType,
			Timestamp:       now.Add(-fs.age).Format(domain.TimestampLayout),
			Location:        fs.location,
			Parameters:      params,
			IntensityGrid:   grid,
			ColorScale:      fs.palette,
			DetectedTargets: targets,
			Summary:         fs.summary,
		})
	}
	return out
}
