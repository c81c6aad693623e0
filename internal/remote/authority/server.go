package authority

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kshitijomkar/ledger/internal/logging"
	"github.com/kshitijomkar/ledger/internal/models"
)

// Handler serves the authority endpoints over a Store.
type Handler struct {
	store *Store
}

// NewHandler creates a Handler.
func NewHandler(store *Store) *Handler {
	return &Handler{store: store}
}

// SetupRouter configures the authority routes. The sync endpoints require a
// bearer token when secret is set.
func SetupRouter(h *Handler, secret string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/health", h.Health)

	v1 := r.Group("/api/v1")
	if secret != "" {
		v1.Use(AuthRequired(secret))
	}
	{
		v1.POST("/sync", h.Sync)
		v1.GET("/sync-status", h.SyncStatus)
		v1.GET("/sync-logs", h.SyncLogs)
	}
	return r
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		logging.Info("Authority request", map[string]interface{}{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(started).Milliseconds(),
		})
	}
}

// Health reports that the authority is up.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Sync applies a batch of changes and returns the records the server
// derived from them.
func (h *Handler) Sync(c *gin.Context) {
	var req models.PushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updates, err := h.store.Apply(&req, Subject(c))
	if err != nil {
		respondError(c, err)
		return
	}

	logging.Info("Changes applied", map[string]interface{}{
		"device_id": req.DeviceID,
		"changes":   len(req.Changes),
		"derived":   len(updates),
	})
	c.JSON(http.StatusOK, models.PushResponse{Updates: updates})
}

// SyncStatus returns one page of changes after the since parameter.
func (h *Handler) SyncStatus(c *gin.Context) {
	var since *time.Time
	if raw := c.Query("since"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be an RFC 3339 timestamp"})
			return
		}
		since = &t
	}

	resp, err := h.store.Pull(since, c.Query("cursor"), c.Query("device_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// SyncLogs lists accepted pushes, optionally for one device.
func (h *Handler) SyncLogs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"logs": h.store.Logs(c.Query("device_id"))})
}

func respondError(c *gin.Context, err error) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
		return
	}
	logging.Error("Authority request failed", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
