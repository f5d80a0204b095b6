// Package api provides HTTP handlers for the sonar hub API.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/sonar-hub/internal/domain"
	"github.com/ashureev/sonar-hub/internal/identity"
	"github.com/ashureev/sonar-hub/internal/metrics"
	"github.com/ashureev/sonar-hub/internal/render"
	"github.com/ashureev/sonar-hub/internal/session"
	"github.com/ashureev/sonar-hub/internal/simulate"
)

// defaultMaxUploadBytes caps multipart bodies when Options leaves it unset.
const defaultMaxUploadBytes = 10 << 20

// SimulationStore persists simulation history.
type SimulationStore interface {
	RecordSimulation(ctx context.Context, entry *domain.SimulationEntry) error
	ListSimulations(ctx context.Context, userID string, limit int) ([]domain.SimulationEntry, error)
}

// Options tunes the handler.
type Options struct {
	ChatEnabled    bool
	MaxUploadBytes int64
}

// Handler serves the scan, simulation, upload and content endpoints.
type Handler struct {
	store    SimulationStore
	sessions *session.Manager
	renderer *render.Renderer
	orch     *simulate.Orchestrator
	metrics  *metrics.Metrics
	opts     Options
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(store SimulationStore, sessions *session.Manager, renderer *render.Renderer, orch *simulate.Orchestrator, m *metrics.Metrics, opts Options) *Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	if orch == nil {
		orch = simulate.New()
	}
	return &Handler{
		store:    store,
		sessions: sessions,
		renderer: renderer,
		orch:     orch,
		metrics:  m,
		opts:     opts,
	}
}

// RegisterRoutes registers the API routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/config", h.GetConfig)
		r.Get("/dashboard", h.GetDashboard)
		r.Get("/technologies", h.ListTechnologies)
		r.Post("/contact", h.SubmitContact)

		r.Route("/scans", func(r chi.Router) {
			r.Get("/", h.ListScans)
			r.Get("/{id}", h.GetScan)
			r.Get("/{id}/export", h.ExportScan)
			r.Get("/{id}/image.png", h.ScanImage)
		})

		r.Route("/simulations", func(r chi.Router) {
			r.Get("/", h.ListSimulations)
			r.Post("/", h.RunSimulation)
			r.Put("/{id}/catalog", h.KeepSimulation)
			r.Delete("/{id}/catalog", h.DropSimulation)
		})

		r.Route("/uploads", func(r chi.Router) {
			r.Post("/image", h.UploadImage)
			r.Post("/data", h.UploadData)
			r.Get("/pending", h.GetPendingUpload)
			r.Get("/pending/thumbnail.png", h.PendingThumbnail)
		})
	})
}

// state resolves the caller's session, writing 401 when the identity
// middleware did not run.
func (h *Handler) state(w http.ResponseWriter, r *http.Request) (*session.State, bool) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}
	return h.sessions.Get(userID, identity.SessionIDFromContext(r.Context())), true
}

// GetConfig returns the server configuration for the frontend.
func (h *Handler) GetConfig(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{
		"chat_enabled": h.opts.ChatEnabled,
		"palettes":     render.PaletteNames(),
		"patterns":     domain.Patterns(),
		"simulation_form": map[string]interface{}{
			"sonar_types":       SonarTypeOptions,
			"default_frequency": DefaultFormFrequency,
			"default_range":     DefaultFormRange,
		},
	})
}

func logRequestError(r *http.Request, msg string, err error, args ...any) {
	attrs := append([]any{
		"user_id", identity.UserIDFromContext(r.Context()),
		"session_id", identity.SessionIDFromContext(r.Context()),
		"error", err,
	}, args...)
	slog.Error(msg, attrs...)
}
