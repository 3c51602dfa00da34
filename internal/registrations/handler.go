package registrations

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/medcamp-hub/backend/internal/middleware"
	"github.com/medcamp-hub/backend/pkg/apperr"
	"github.com/medcamp-hub/backend/pkg/response"
)

// RegisterRequest is the body for POST /registrations. participantEmail defaults to the caller's.
type RegisterRequest struct {
	CampID           string `json:"campId" binding:"required"`
	ParticipantEmail string `json:"participantEmail"`
	ParticipantName  string `json:"participantName"`
	Age              int    `json:"age"`
	Phone            string `json:"phone"`
	Gender           string `json:"gender"`
	EmergencyContact string `json:"emergencyContact"`
}

// StatusRequest is the body for PATCH /registrations/:id.
type StatusRequest struct {
	ConfirmationStatus string `json:"confirmationStatus"`
}

// PaymentRequest is the body for PATCH /registrations/:id/payment.
type PaymentRequest struct {
	TransactionID string   `json:"transactionId"`
	PaymentStatus string   `json:"paymentStatus"`
	PaymentDate   string   `json:"paymentDate"`
	Amount        *float64 `json:"amount"`
}

// Handler handles registration HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a registrations handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Register handles POST /registrations.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	email := req.ParticipantEmail
	if email == "" {
		email = middleware.UserEmail(c)
	}
	res, err := h.svc.Register(c.Request.Context(), RegisterInput{
		CampID:           req.CampID,
		ParticipantEmail: email,
		ParticipantName:  req.ParticipantName,
		Age:              req.Age,
		Phone:            req.Phone,
		Gender:           req.Gender,
		EmergencyContact: req.EmergencyContact,
	})
	if err != nil {
		h.logError("register failed", err, zap.String("camp_id", req.CampID))
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

// List handles GET /registrations with an optional ?email= filter.
func (h *Handler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context(), c.Query("email"))
	if err != nil {
		h.logError("list registrations failed", err)
		response.Error(c, err)
		return
	}
	response.OK(c, list)
}

// GetByID handles GET /registrations/:id.
func (h *Handler) GetByID(c *gin.Context) {
	reg, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logError("get registration failed", err)
		response.Error(c, err)
		return
	}
	response.OK(c, reg)
}

// ListByCamp handles GET /registrations/camps/:campId.
func (h *Handler) ListByCamp(c *gin.Context) {
	list, err := h.svc.ListByCamp(c.Request.Context(), c.Param("campId"))
	if err != nil {
		h.logError("list camp registrations failed", err)
		response.Error(c, err)
		return
	}
	response.OK(c, list)
}

// UpdateStatus handles PATCH /registrations/:id.
func (h *Handler) UpdateStatus(c *gin.Context) {
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	reg, err := h.svc.UpdateStatus(c.Request.Context(), c.Param("id"), req.ConfirmationStatus)
	if err != nil {
		h.logError("update registration status failed", err, zap.String("registration_id", c.Param("id")))
		response.Error(c, err)
		return
	}
	response.OK(c, reg)
}

// RecordPayment handles PATCH /registrations/:id/payment.
func (h *Handler) RecordPayment(c *gin.Context) {
	var req PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	id := c.Param("id")
	res, err := h.svc.RecordPayment(c.Request.Context(), id, PaymentInput{
		TransactionID: req.TransactionID,
		PaymentStatus: req.PaymentStatus,
		PaymentDate:   req.PaymentDate,
		Amount:        req.Amount,
	})
	if err != nil {
		h.logError("record payment failed", err, zap.String("registration_id", id))
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

// Delete handles DELETE /registrations/:id.
func (h *Handler) Delete(c *gin.Context) {
	id := c.Param("id")
	res, err := h.svc.Delete(c.Request.Context(), id)
	if err != nil {
		h.logError("delete registration failed", err, zap.String("registration_id", id))
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

func (h *Handler) logError(msg string, err error, fields ...zap.Field) {
	if apperr.KindOf(err) == apperr.KindUpstream {
		h.logger.Error(msg, append(fields, zap.Error(err))...)
	}
}
