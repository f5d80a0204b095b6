package scanexport

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/sonar-hub/internal/catalog"
	"github.com/ashureev/sonar-hub/internal/domain"
)

func TestMarshal_FixtureRoundTrip(t *testing.T) {
	rec, ok := catalog.NewSessionCatalog().Get("SEA001")
	require.True(t, ok)

	data, err := Marshal(rec)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))

	assert.Equal(t, "SEA001", doc["scan_id"])
	assert.Equal(t, rec.Timestamp, doc["timestamp"])
	assert.Equal(t, "(150, 300)", doc["intensity_grid_shape"])
	assert.NotContains(t, doc, "intensity_grid")
	assert.NotContains(t, doc, "user_notes")

	params := doc["parameters"].(map[string]any)
	assert.Equal(t, 400.0, params["frequency_khz"])
	assert.Equal(t, "Dr. Sonar", params["operator"])

	var parsed Document
	require.NoError(t, json.Unmarshal(data, &parsed))
	assert.Equal(t, rec.DetectedTargets, parsed.DetectedTargets)
}

func TestMarshal_SizedNumbersBecomePlain(t *testing.T) {
	rec := &domain.ScanRecord{
		ScanID:        "SIM1",
		Parameters:    domain.Parameters{"a": float32(1.5), "b": int32(7), "c": "x"},
		IntensityGrid: domain.NewGrid(2, 4),
	}
	doc := Build(rec)
	assert.Equal(t, float64(1.5), doc.Parameters["a"])
	assert.Equal(t, int64(7), doc.Parameters["b"])
	assert.Equal(t, "x", doc.Parameters["c"])
	assert.Equal(t, "(2, 4)", doc.IntensityGridShape)
	assert.NotNil(t, doc.DetectedTargets)

	data, err := Marshal(rec)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"detected_targets": []`)
	assert.Contains(t, string(data), "\n    \"scan_id\"")
}

func TestMarshal_NilRecord(t *testing.T) {
	_, err := Marshal(nil)
	assert.Error(t, err)
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "LAND002_export.json", Filename(&domain.ScanRecord{ScanID: "LAND002"}))
}
