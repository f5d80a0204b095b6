package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/sonar-hub/internal/domain"
	"github.com/ashureev/sonar-hub/internal/metrics"
	"github.com/ashureev/sonar-hub/internal/render"
	"github.com/ashureev/sonar-hub/internal/scanexport"
	"github.com/ashureev/sonar-hub/internal/session"
)

// fixtureCacheKey is shared by every session since fixture records are
// identical across catalogs.
const fixtureCacheKey = "fixtures"

// domainCard is one dashboard overview tile.
type domainCard struct {
	Domain domain.Domain `json:"domain"`
	Title  string        `json:"title"`
	Label  string        `json:"label"`
	Count  int           `json:"count"`
}

var dashboardCards = []domainCard{
	{Domain: domain.DomainSea, Title: "Sea Scans", Label: "Side-Scan & MBES Concepts"},
	{Domain: domain.DomainLand, Title: "Land Scans (GPR)", Label: "Subsurface Imaging"},
	{Domain: domain.DomainAir, Title: "Air Scans (Ultrasonic)", Label: "Ranging & Detection"},
}

// scanView is the detail representation of a scan record.
type scanView struct {
	*domain.ScanRecord
	Domain             domain.Domain `json:"domain"`
	Simulated          bool          `json:"simulated"`
	InCatalog          bool          `json:"in_catalog"`
	IntensityGridShape string        `json:"intensity_grid_shape"`
	IntensityGrid      [][]float64   `json:"intensity_grid,omitempty"`
}

// GetDashboard returns per-domain scan counts for the session's catalog.
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	st, ok := h.state(w, r)
	if !ok {
		return
	}
	counts := st.Catalog.CountByDomain()
	cards := make([]domainCard, 0, len(dashboardCards))
	for _, c := range dashboardCards {
		c.Count = counts[c.Domain]
		cards = append(cards, c)
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"cards": cards,
		"total": st.Catalog.Len(),
	})
}

// ListScans returns the IDs in the session's catalog in display order.
func (h *Handler) ListScans(w http.ResponseWriter, r *http.Request) {
	st, ok := h.state(w, r)
	if !ok {
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"scan_ids": st.Catalog.IDs()})
}

// GetScan returns one scan. The raw grid is included only with ?grid=1.
func (h *Handler) GetScan(w http.ResponseWriter, r *http.Request) {
	st, ok := h.state(w, r)
	if !ok {
		return
	}
	rec, ok := h.lookupScan(w, r, st)
	if !ok {
		return
	}

	view := scanView{
		ScanRecord:         rec,
		Domain:             rec.Domain(),
		Simulated:          rec.IsSimulated(),
		InCatalog:          st.Catalog.Has(rec.ScanID),
		IntensityGridShape: rec.IntensityGrid.Shape(),
	}
	if r.URL.Query().Get("grid") == "1" {
		view.IntensityGrid = rec.IntensityGrid.Matrix()
	}
	JSON(w, http.StatusOK, view)
}

// ExportScan serves the JSON export of a scan as a download.
func (h *Handler) ExportScan(w http.ResponseWriter, r *http.Request) {
	st, ok := h.state(w, r)
	if !ok {
		return
	}
	rec, ok := h.lookupScan(w, r, st)
	if !ok {
		return
	}

	data, err := scanexport.Marshal(rec)
	if err != nil {
		logRequestError(r, "Failed to export scan", err, "scan_id", rec.ScanID)
		Error(w, http.StatusInternalServerError, "failed to export scan")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+scanexport.Filename(rec)+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// ScanImage renders a scan's intensity grid as a PNG heatmap.
func (h *Handler) ScanImage(w http.ResponseWriter, r *http.Request) {
	st, ok := h.state(w, r)
	if !ok {
		return
	}
	rec, ok := h.lookupScan(w, r, st)
	if !ok {
		return
	}

	width, err := optionalInt(r, "w")
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid width")
		return
	}
	height, err := optionalInt(r, "h")
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid height")
		return
	}

	png, err := h.renderer.Heatmap(heatmapCacheKey(st, rec), rec, width, height)
	if err != nil {
		h.metrics.HeatmapRender(metrics.ResultError)
		if errors.Is(err, render.ErrEmptyGrid) {
			Error(w, http.StatusUnprocessableEntity, "scan has no intensity data")
			return
		}
		logRequestError(r, "Failed to render heatmap", err, "scan_id", rec.ScanID)
		Error(w, http.StatusInternalServerError, "failed to render heatmap")
		return
	}
	h.metrics.HeatmapRender(metrics.ResultSuccess)

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// lookupScan finds the {id} scan in the session catalog, falling back to
// simulations the session generated without keeping. Unknown IDs get a 404.
func (h *Handler) lookupScan(w http.ResponseWriter, r *http.Request, st *session.State) (*domain.ScanRecord, bool) {
	id := chi.URLParam(r, "id")
	if rec, ok := st.Catalog.Get(id); ok {
		h.metrics.ScanLookup(metrics.ResultSuccess)
		return rec, true
	}
	if rec, ok := st.Simulation(id); ok {
		h.metrics.ScanLookup(metrics.ResultSuccess)
		return rec, true
	}
	h.metrics.ScanLookup(metrics.ResultNotFound)
	ErrorDetail(w, http.StatusNotFound, "scan_not_found", "no scan with id "+strconv.Quote(id))
	return nil, false
}

// HeatmapCacheKey returns the render cache scope for a session.
func HeatmapCacheKey(userID, sessionID string) string {
	return userID + ":" + sessionID
}

func heatmapCacheKey(st *session.State, rec *domain.ScanRecord) string {
	if !rec.IsSimulated() {
		return fixtureCacheKey
	}
	return HeatmapCacheKey(st.UserID, st.SessionID)
}

func optionalInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
