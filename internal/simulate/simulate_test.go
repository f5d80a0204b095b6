package simulate

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/sonar-hub/internal/catalog"
	"github.com/ashureev/sonar-hub/internal/domain"
)

func fixedOrchestrator(t time.Time, suffix string) *Orchestrator {
	return &Orchestrator{
		now:    func() time.Time { return t },
		suffix: func() string { return suffix },
	}
}

func TestRun_SeaScenario(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 30, 45, 0, time.UTC)
	o := fixedOrchestrator(now, "abc123")
	seed := int64(11)

	rec, err := o.Run(Request{
		SonarType:    "Sea (Side-Scan Sonar)",
		AreaName:     "Test Bay",
		Frequency:    450,
		RangeOrDepth: 200,
		Seed:         &seed,
	})
	require.NoError(t, err)

	assert.Equal(t, "SIM20261019123045-abc123", rec.ScanID)
	assert.Equal(t, "Sea (Side-Scan Sonar)", rec.SonarType)
	assert.Equal(t, "2026-10-19 12:30 UTC", rec.Timestamp)
	assert.Equal(t, "Test Bay", rec.Location)
	assert.Equal(t, "Viridis", rec.ColorScale)
	assert.Equal(t, 450.0, rec.Parameters["frequency_khz"])
	assert.Equal(t, 200.0, rec.Parameters["range_m"])
	assert.Equal(t, "AutoSim", rec.Parameters["sim_operator"])
	assert.Equal(t, 128, rec.IntensityGrid.Rows)
	assert.Equal(t, 256, rec.IntensityGrid.Cols)

	require.NotEmpty(t, rec.DetectedTargets)
	assert.LessOrEqual(t, len(rec.DetectedTargets), 3)
	for _, tg := range rec.DetectedTargets {
		assert.True(t, strings.HasPrefix(tg.ID, "SIM_TGT_S"))
		require.NotNil(t, tg.RangeM)
		assert.GreaterOrEqual(t, *tg.RangeM, 20.0)
		assert.LessOrEqual(t, *tg.RangeM, 180.0)
	}
	assert.Contains(t, rec.Summary, "Found ")
	assert.Empty(t, rec.UserNotes)
}

func TestRun_DomainDefaults(t *testing.T) {
	tests := []struct {
		sonarType string
		label     string
		palette   string
		freqKey   string
		freq      float64
		boundKey  string
		bound     float64
	}{
		{"Sea (Side-Scan Sonar)", "Sea (Side-Scan Sonar)", "Viridis", "frequency_khz", 300, "range_m", 100},
		{"Land (Ground Penetrating Radar - GPR)", "Land (Ground Penetrating Radar - GPR)", "Plasma", "frequency_mhz", 200, "depth_m_max", 5},
		{"Air (Ultrasonic Array Sensor)", "Air (Ultrasonic Array Sensor)", "Cividis", "frequency_khz", 40, "max_range_m", 8},
		{"Bathymetric Lidar", "Generic Sonar", "Gray", "frequency_generic", 100, "range_generic", 50},
	}

	for _, tt := range tests {
		t.Run(tt.sonarType, func(t *testing.T) {
			rec, err := New().Run(Request{SonarType: tt.sonarType, AreaName: "Zone"})
			require.NoError(t, err)
			assert.Equal(t, tt.label, rec.SonarType)
			assert.Equal(t, tt.palette, rec.ColorScale)
			assert.Equal(t, tt.freq, rec.Parameters[tt.freqKey])
			assert.Equal(t, tt.bound, rec.Parameters[tt.boundKey])
			assert.NotEmpty(t, rec.DetectedTargets)
		})
	}
}

func TestRun_GenericFallbackHasSingleTarget(t *testing.T) {
	rec, err := New().Run(Request{SonarType: "Unknown device", AreaName: "X"})
	require.NoError(t, err)
	require.Len(t, rec.DetectedTargets, 1)
	assert.Equal(t, "SIM_TGT_GEN01", rec.DetectedTargets[0].ID)
	assert.Equal(t, "Generic Anomaly", rec.DetectedTargets[0].Type)
}

func TestRun_NotesAndDefaultArea(t *testing.T) {
	rec, err := New().Run(Request{SonarType: "Air", Notes: "  calibration pass  "})
	require.NoError(t, err)
	assert.Equal(t, DefaultArea, rec.Location)
	assert.Equal(t, "calibration pass", rec.UserNotes)
	assert.True(t, strings.HasSuffix(rec.Summary, " Notes: calibration pass"), rec.Summary)
	assert.Contains(t, rec.Summary, "completed for Simulated Area.")
}

func TestRun_IDsUniqueWithinSameSecond(t *testing.T) {
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	o := New()
	o.now = func() time.Time { return now }

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		rec, err := o.Run(Request{SonarType: "Generic", AreaName: "A"})
		require.NoError(t, err)
		require.False(t, seen[rec.ScanID], "duplicate id %s", rec.ScanID)
		seen[rec.ScanID] = true
		assert.Regexp(t, `^SIM20261019090000-[0-9a-f]{6}$`, rec.ScanID)
	}
}

func TestRun_SeedIsReproducible(t *testing.T) {
	seed := int64(2024)
	o := fixedOrchestrator(time.Now(), "000000")
	a, err := o.Run(Request{SonarType: "Land GPR", AreaName: "A", Seed: &seed})
	require.NoError(t, err)
	b, err := o.Run(Request{SonarType: "Land GPR", AreaName: "A", Seed: &seed})
	require.NoError(t, err)

	assert.Equal(t, a.IntensityGrid.Values, b.IntensityGrid.Values)
	assert.Equal(t, a.DetectedTargets, b.DetectedTargets)
}

func TestSetMembership(t *testing.T) {
	cat := catalog.New()
	rec := &domain.ScanRecord{ScanID: "SIM20261019090000-aaaaaa"}

	SetMembership(cat, rec, true)
	assert.True(t, cat.Has(rec.ScanID))

	SetMembership(cat, rec, false)
	assert.False(t, cat.Has(rec.ScanID))

	SetMembership(cat, rec, false)
	assert.Equal(t, 0, cat.Len())
}
