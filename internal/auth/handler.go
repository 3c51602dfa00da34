package auth

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/medcamp-hub/backend/internal/models"
	"github.com/medcamp-hub/backend/pkg/response"
)

// TokenRequest is the body for POST /jwt.
type TokenRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// TokenResponse carries the issued token and the role baked into it.
type TokenResponse struct {
	Token string      `json:"token"`
	Role  models.Role `json:"role"`
}

// RoleLookup resolves the current role of an email. *users.Directory implements it.
type RoleLookup interface {
	Role(ctx context.Context, email string) (models.Role, error)
}

// Handler issues tokens for identities already verified by the external identity provider.
type Handler struct {
	roles  RoleLookup
	jwt    *JWTService
	logger *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(roles RoleLookup, jwt *JWTService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{roles: roles, jwt: jwt, logger: logger}
}

// Token handles POST /jwt.
func (h *Handler) Token(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	email := models.NormalizeEmail(req.Email)
	role, err := h.roles.Role(c.Request.Context(), email)
	if err != nil {
		h.logger.Error("role lookup failed", zap.Error(err), zap.String("email", email))
		response.Error(c, err)
		return
	}
	token, err := h.jwt.Generate("", email, string(role))
	if err != nil {
		h.logger.Error("token generation failed", zap.Error(err))
		response.Internal(c, "failed to issue token")
		return
	}
	response.OK(c, TokenResponse{Token: token, Role: role})
}
