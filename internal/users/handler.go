package users

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/medcamp-hub/backend/internal/models"
	"github.com/medcamp-hub/backend/pkg/apperr"
	"github.com/medcamp-hub/backend/pkg/response"
)

// CreateRequest is the body for POST /users.
type CreateRequest struct {
	Email   string `json:"email" binding:"required,email"`
	Name    string `json:"name"`
	Photo   string `json:"photo"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// Handler handles user directory HTTP endpoints.
type Handler struct {
	dir    *Directory
	logger *zap.Logger
}

// NewHandler creates a users handler.
func NewHandler(dir *Directory, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{dir: dir, logger: logger}
}

// Create handles POST /users. New users always start with role "user".
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	u := &models.User{
		Email:   req.Email,
		Name:    req.Name,
		Photo:   req.Photo,
		Phone:   req.Phone,
		Address: req.Address,
		Role:    models.RoleUser,
	}
	if err := h.dir.Create(c.Request.Context(), u); err != nil {
		h.logUpstream("create user failed", err)
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"insertedId": u.ID, "user": u})
}

// List handles GET /users (organizer only).
func (h *Handler) List(c *gin.Context) {
	list, err := h.dir.List(c.Request.Context())
	if err != nil {
		h.logUpstream("list users failed", err)
		response.Error(c, err)
		return
	}
	response.OK(c, list)
}

// GetByEmail handles GET /users/:email.
func (h *Handler) GetByEmail(c *gin.Context) {
	u, err := h.dir.GetByEmail(c.Request.Context(), c.Param("email"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, u)
}

// Role handles GET /users/role/:email. Unknown users report "user".
func (h *Handler) Role(c *gin.Context) {
	role, err := h.dir.Role(c.Request.Context(), c.Param("email"))
	if err != nil {
		h.logUpstream("load role failed", err)
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"role": role})
}

// UpdateByEmail handles PATCH /users/:email.
func (h *Handler) UpdateByEmail(c *gin.Context) {
	var p Profile
	if err := c.ShouldBindJSON(&p); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	u, err := h.dir.UpdateByEmail(c.Request.Context(), c.Param("email"), p)
	if err != nil {
		h.logUpstream("update user failed", err)
		response.Error(c, err)
		return
	}
	response.OK(c, u)
}

// UpdateByID handles PUT /users/:id.
func (h *Handler) UpdateByID(c *gin.Context) {
	var p Profile
	if err := c.ShouldBindJSON(&p); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	u, err := h.dir.UpdateByID(c.Request.Context(), c.Param("id"), p)
	if err != nil {
		h.logUpstream("update user failed", err)
		response.Error(c, err)
		return
	}
	response.OK(c, u)
}

func (h *Handler) logUpstream(msg string, err error) {
	if apperr.KindOf(err) == apperr.KindUpstream {
		h.logger.Error(msg, zap.Error(err))
	}
}
