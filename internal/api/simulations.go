package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/sonar-hub/internal/domain"
	"github.com/ashureev/sonar-hub/internal/identity"
	"github.com/ashureev/sonar-hub/internal/scanexport"
	"github.com/ashureev/sonar-hub/internal/simulate"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
	maxSimulationBody   = 64 << 10
)

// Simulation form defaults.
const (
	DefaultFormFrequency = 100
	DefaultFormRange     = 50
)

// SonarTypeOptions are the sonar types offered by the simulation form.
var SonarTypeOptions = []string{
	"Sea (Side-Scan Sonar type)",
	"Land (GPR type)",
	"Air (Ultrasonic type)",
	"Generic Sonar",
}

// SimulationRequest is the body of POST /api/simulations.
type SimulationRequest struct {
	SonarType     string  `json:"sonar_type"`
	AreaName      string  `json:"area_name"`
	Frequency     float64 `json:"frequency"`
	RangeM        float64 `json:"range_m"`
	Notes         string  `json:"notes"`
	KeepInCatalog bool    `json:"keep_in_catalog"`
	Seed          *int64  `json:"seed,omitempty"`
}

// SimulationResponse is returned for a completed simulation.
type SimulationResponse struct {
	Scan      scanexport.Document `json:"scan"`
	InCatalog bool                `json:"in_catalog"`
}

// RunSimulation generates a scan from the form parameters. The record is
// remembered by the session and added to its catalog when keep_in_catalog
// is set.
func (h *Handler) RunSimulation(w http.ResponseWriter, r *http.Request) {
	st, ok := h.state(w, r)
	if !ok {
		return
	}

	var req SimulationRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSimulationBody)).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.SonarType = strings.TrimSpace(req.SonarType)
	if req.SonarType == "" {
		Error(w, http.StatusBadRequest, "sonar_type is required")
		return
	}
	if req.Frequency < 0 || req.RangeM < 0 {
		Error(w, http.StatusBadRequest, "frequency and range_m must not be negative")
		return
	}

	rec, err := h.orch.Run(simulate.Request{
		SonarType:    req.SonarType,
		AreaName:     req.AreaName,
		Frequency:    req.Frequency,
		RangeOrDepth: req.RangeM,
		Notes:        req.Notes,
		Seed:         req.Seed,
	})
	if err != nil {
		logRequestError(r, "Simulation failed", err, "sonar_type", req.SonarType)
		Error(w, http.StatusInternalServerError, "simulation failed")
		return
	}

	st.RememberSimulation(rec)
	simulate.SetMembership(st.Catalog, rec, req.KeepInCatalog)
	h.metrics.Simulation(string(rec.Domain()))

	entry := &domain.SimulationEntry{
		ScanID:      rec.ScanID,
		UserID:      st.UserID,
		SonarType:   rec.SonarType,
		AreaName:    rec.Location,
		TargetCount: len(rec.DetectedTargets),
		CreatedAt:   time.Now().UTC(),
	}
	// History is best effort.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 5*time.Second)
	defer cancel()
	if err := h.store.RecordSimulation(ctx, entry); err != nil {
		logRequestError(r, "Failed to record simulation", err, "scan_id", rec.ScanID)
	}

	JSON(w, http.StatusCreated, SimulationResponse{
		Scan:      scanexport.Build(rec),
		InCatalog: st.Catalog.Has(rec.ScanID),
	})
}

// KeepSimulation adds a session simulation to the catalog.
func (h *Handler) KeepSimulation(w http.ResponseWriter, r *http.Request) {
	h.setSimulationMembership(w, r, true)
}

// DropSimulation removes a session simulation from the catalog.
func (h *Handler) DropSimulation(w http.ResponseWriter, r *http.Request) {
	h.setSimulationMembership(w, r, false)
}

func (h *Handler) setSimulationMembership(w http.ResponseWriter, r *http.Request, keep bool) {
	st, ok := h.state(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	rec, ok := st.Simulation(id)
	if !ok {
		ErrorDetail(w, http.StatusNotFound, "scan_not_found", "no simulation with id "+strconv.Quote(id))
		return
	}
	simulate.SetMembership(st.Catalog, rec, keep)
	JSON(w, http.StatusOK, map[string]interface{}{
		"scan_id":    rec.ScanID,
		"in_catalog": st.Catalog.Has(rec.ScanID),
	})
}

// ListSimulations returns the visitor's simulation history.
func (h *Handler) ListSimulations(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	entries, err := h.store.ListSimulations(r.Context(), userID, limit)
	if err != nil {
		logRequestError(r, "Failed to list simulations", err)
		Error(w, http.StatusInternalServerError, "failed to load simulation history")
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"simulations": entries})
}
