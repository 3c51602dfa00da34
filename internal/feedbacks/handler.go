package feedbacks

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/medcamp-hub/backend/internal/middleware"
	"github.com/medcamp-hub/backend/internal/models"
	"github.com/medcamp-hub/backend/pkg/apperr"
	"github.com/medcamp-hub/backend/pkg/response"
)

// CreateRequest is the body for POST /feedbacks. participantEmail defaults to the caller's.
type CreateRequest struct {
	CampID           string `json:"campId" binding:"required"`
	ParticipantEmail string `json:"participantEmail"`
	ParticipantName  string `json:"participantName"`
	Rating           int    `json:"rating" binding:"required,min=1,max=5"`
	Comment          string `json:"comment"`
}

// Handler handles feedback HTTP endpoints.
type Handler struct {
	store  *Store
	logger *zap.Logger
}

// NewHandler creates a feedback handler.
func NewHandler(store *Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, logger: logger}
}

// List handles GET /feedbacks with an optional ?campId= filter.
func (h *Handler) List(c *gin.Context) {
	list, err := h.store.List(c.Request.Context(), c.Query("campId"))
	if err != nil {
		h.logger.Error("list feedback failed", zap.Error(err))
		response.Error(c, err)
		return
	}
	response.OK(c, list)
}

// Create handles POST /feedbacks.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	email := req.ParticipantEmail
	if email == "" {
		email = middleware.UserEmail(c)
	}
	fb := &models.Feedback{
		CampID:           req.CampID,
		ParticipantEmail: email,
		ParticipantName:  req.ParticipantName,
		Rating:           req.Rating,
		Comment:          req.Comment,
	}
	if err := h.store.Create(c.Request.Context(), fb); err != nil {
		if apperr.KindOf(err) == apperr.KindUpstream {
			h.logger.Error("create feedback failed", zap.Error(err), zap.String("camp_id", req.CampID))
		}
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"insertedId": fb.ID, "feedback": fb})
}
