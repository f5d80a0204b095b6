// Package scanexport serializes scan records for download.
package scanexport

import (
	"encoding/json"
	"fmt"

	"github.com/ashureev/sonar-hub/internal/domain"
)

// Document is the exported form of a scan record. The intensity grid is
// replaced by its shape.
type Document struct {
	ScanID             string          `json:"scan_id"`
	SonarType          string          `json:"sonar_type"`
	Timestamp          string          `json:"timestamp"`
	Location           string          `json:"location"`
	Parameters         map[string]any  `json:"parameters"`
	IntensityGridShape string          `json:"intensity_grid_shape"`
	ColorScale         string          `json:"color_scale"`
	DetectedTargets    []domain.Target `json:"detected_targets"`
	Summary            string          `json:"summary"`
	UserNotes          string          `json:"user_notes,omitempty"`
}

// Build converts rec into an export document.
func Build(rec *domain.ScanRecord) Document {
	params := make(map[string]any, len(rec.Parameters))
	for k, v := range rec.Parameters {
		params[k] = plainScalar(v)
	}
	targets := rec.DetectedTargets
	if targets == nil {
		targets = []domain.Target{}
	}
	return Document{
		ScanID:             rec.ScanID,
		SonarType:          rec.SonarType,
		Timestamp:          rec.Timestamp,
		Location:           rec.Location,
		Parameters:         params,
		IntensityGridShape: rec.IntensityGrid.Shape(),
		ColorScale:         rec.ColorScale,
		DetectedTargets:    targets,
		Summary:            rec.Summary,
		UserNotes:          rec.UserNotes,
	}
}

// Marshal returns the indented JSON export of rec.
func Marshal(rec *domain.ScanRecord) ([]byte, error) {
	if rec == nil {
		return nil, fmt.Errorf("export scan: nil record")
	}
	data, err := json.MarshalIndent(Build(rec), "", "    ")
	if err != nil {
		return nil, fmt.Errorf("export scan %s: %w", rec.ScanID, err)
	}
	return data, nil
}

// Filename returns the download name for rec.
func Filename(rec *domain.ScanRecord) string {
	return rec.ScanID + "_export.json"
}

// plainScalar widens sized numeric types to int64 or float64.
func plainScalar(v any) any {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int8:
		return int64(n)
	case int16:
		return int64(n)
	case int32:
		return int64(n)
	case uint8:
		return int64(n)
	case uint16:
		return int64(n)
	case uint32:
		return int64(n)
	case float32:
		return float64(n)
	default:
		return v
	}
}
