package statusfeed

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	apperrors "github.com/kshitijomkar/ledger/internal/errors"
	"github.com/kshitijomkar/ledger/internal/logging"
	"github.com/kshitijomkar/ledger/internal/models"
	syncpkg "github.com/kshitijomkar/ledger/internal/sync"
	"github.com/kshitijomkar/ledger/internal/sync/scheduler"
)

// Syncer is the orchestrator surface the feed exposes.
type Syncer interface {
	Status() scheduler.SchedulerStatus
	SyncNow(ctx context.Context) (*syncpkg.Result, error)
}

// ConflictLister lists the conflicts awaiting a decision.
type ConflictLister interface {
	Conflicts(ctx context.Context) ([]*models.ConflictLog, error)
}

// Handler serves the status endpoints.
type Handler struct {
	syncer    Syncer
	conflicts ConflictLister
}

// NewHandler creates a Handler. conflicts may be nil.
func NewHandler(syncer Syncer, conflicts ConflictLister) *Handler {
	return &Handler{syncer: syncer, conflicts: conflicts}
}

// Routes registers the handler's endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/status", h.status)
	r.Post("/sync", h.sync)
	if h.conflicts != nil {
		r.Get("/conflicts", h.listConflicts)
	}
}

// New builds the feed router.
func New(h *Handler, hub *Hub, allowedOrigins []string) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	router.Route("/api/v1", h.Routes)
	router.Handle("/ws", hub)

	return router
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.syncer.Status())
}

func (h *Handler) sync(w http.ResponseWriter, r *http.Request) {
	res, err := h.syncer.SyncNow(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res)
	case apperrors.Is(err, apperrors.ErrSyncInProgress):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case apperrors.Is(err, apperrors.ErrTransport):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	default:
		logging.Error("Requested sync failed", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func (h *Handler) listConflicts(w http.ResponseWriter, r *http.Request) {
	list, err := h.conflicts.Conflicts(r.Context())
	if err != nil {
		logging.Error("Failed to list conflicts", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"conflicts": list})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("Failed to encode response", err)
	}
}
