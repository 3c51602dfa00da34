package analytics

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/medcamp-hub/backend/internal/middleware"
	"github.com/medcamp-hub/backend/pkg/response"
)

// Handler handles the analytics endpoints.
type Handler struct {
	agg    *Aggregator
	logger *zap.Logger
}

// NewHandler creates an analytics handler.
func NewHandler(agg *Aggregator, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{agg: agg, logger: logger}
}

// Dashboard handles GET /analytics/dashboard (organizer only).
func (h *Handler) Dashboard(c *gin.Context) {
	d, err := h.agg.Dashboard(c.Request.Context())
	if err != nil {
		h.logger.Error("dashboard failed", zap.Error(err))
		response.Error(c, err)
		return
	}
	response.OK(c, d)
}

// RegisteredCampsCount handles GET /analytics/registered-camps-count?email=. The caller's own
// email is used when the query omits it.
func (h *Handler) RegisteredCampsCount(c *gin.Context) {
	email := c.Query("email")
	if email == "" {
		email = middleware.UserEmail(c)
	}
	n, err := h.agg.RegisteredCamps(c.Request.Context(), email)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"count": n})
}
