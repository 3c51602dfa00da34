package payments

import (
	"math"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/medcamp-hub/backend/internal/middleware"
	"github.com/medcamp-hub/backend/internal/models"
	"github.com/medcamp-hub/backend/pkg/apperr"
	"github.com/medcamp-hub/backend/pkg/response"
)

// CreateRequest is the body for POST /payments.
type CreateRequest struct {
	Email          string  `json:"email" binding:"required,email"`
	CampName       string  `json:"campName"`
	RegistrationID string  `json:"registrationId"`
	Amount         float64 `json:"amount" binding:"gte=0"`
	Status         string  `json:"status" binding:"required"`
	TransactionID  string  `json:"transactionId" binding:"required"`
	PaymentDate    string  `json:"paymentDate" binding:"required"`
}

// IntentBody is the body for POST /create-payment-intent.
type IntentBody struct {
	Price  float64 `json:"price" binding:"required,gt=0"`
	CampID string  `json:"campId"`
}

// Handler handles payment HTTP endpoints.
type Handler struct {
	ledger   *Ledger
	intents  IntentCreator
	currency string
	logger   *zap.Logger
}

// NewHandler creates a payments handler. intents may be nil when no provider is configured.
func NewHandler(ledger *Ledger, intents IntentCreator, currency string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if currency == "" {
		currency = "usd"
	}
	return &Handler{ledger: ledger, intents: intents, currency: currency, logger: logger}
}

// List handles GET /payments?email=.
func (h *Handler) List(c *gin.Context) {
	list, err := h.ledger.List(c.Request.Context(), c.Query("email"))
	if err != nil {
		h.logger.Error("list payments failed", zap.Error(err))
		response.Error(c, err)
		return
	}
	response.OK(c, list)
}

// Create handles POST /payments: a raw ledger insert.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	p := &models.Payment{
		Email:          req.Email,
		CampName:       req.CampName,
		RegistrationID: req.RegistrationID,
		Amount:         req.Amount,
		Status:         req.Status,
		TransactionID:  req.TransactionID,
		PaymentDate:    req.PaymentDate,
	}
	if err := h.ledger.Insert(c.Request.Context(), p); err != nil {
		if apperr.KindOf(err) == apperr.KindUpstream {
			h.logger.Error("insert payment failed", zap.Error(err), zap.String("transaction_id", req.TransactionID))
		}
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"insertedId": p.ID, "payment": p})
}

// CreateIntent handles POST /create-payment-intent. price is in major currency units.
func (h *Handler) CreateIntent(c *gin.Context) {
	if h.intents == nil {
		response.ServiceUnavailable(c, "payment provider not configured")
		return
	}
	var req IntentBody
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	amount := int64(math.Round(req.Price * 100))
	secret, err := h.intents.CreateIntent(c.Request.Context(), IntentRequest{
		AmountCents: amount,
		Currency:    h.currency,
		Email:       middleware.UserEmail(c),
		CampID:      req.CampID,
	})
	if err != nil {
		h.logger.Error("create payment intent failed", zap.Error(err), zap.Int64("amount_cents", amount))
		response.Error(c, apperr.Upstream("failed to create payment intent", err))
		return
	}
	response.OK(c, gin.H{"clientSecret": secret})
}
