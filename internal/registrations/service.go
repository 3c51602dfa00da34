package registrations

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/medcamp-hub/backend/internal/camps"
	"github.com/medcamp-hub/backend/internal/models"
	"github.com/medcamp-hub/backend/internal/payments"
	"github.com/medcamp-hub/backend/internal/users"
	"github.com/medcamp-hub/backend/pkg/apperr"
	"github.com/medcamp-hub/backend/pkg/docstore"
	"github.com/medcamp-hub/backend/pkg/queue"
)

// Promoter elevates a paying participant's role. *users.Directory implements it.
type Promoter interface {
	PromoteToParticipant(ctx context.Context, email string) (users.PromotionResult, error)
}

// DriftReporter queues a camp for counter reconciliation. *queue.Queue implements it.
type DriftReporter interface {
	EnqueueReconcile(ctx context.Context, payload queue.ReconcilePayload) error
}

// RegisterInput is the participant data for a new registration.
type RegisterInput struct {
	CampID           string
	ParticipantEmail string
	ParticipantName  string
	Age              int
	Phone            string
	Gender           string
	EmergencyContact string
}

// RegisterResult is the outcome of Register.
type RegisterResult struct {
	InsertedID       string `json:"insertedId"`
	CounterUpdated   bool   `json:"counterUpdated"`
	ParticipantCount int64  `json:"participant_count"`
}

// PaymentInput is the body of a payment completion.
type PaymentInput struct {
	TransactionID string
	PaymentStatus string
	PaymentDate   string
	Amount        *float64
}

// PaymentResult reports each write of RecordPayment. Registration and payment are durable once
// it is returned; a failed promotion only shows up in RoleUpdated and RoleError.
type PaymentResult struct {
	Registration    *models.Registration `json:"registration"`
	PaymentID       string               `json:"paymentId,omitempty"`
	Amount          float64              `json:"amount"`
	PaymentInserted bool                 `json:"paymentInserted"`
	AlreadyRecorded bool                 `json:"alreadyRecorded"`
	UserFound       bool                 `json:"userFound"`
	RoleUpdated     bool                 `json:"roleUpdated"`
	RoleError       string               `json:"roleError,omitempty"`
}

// DeleteResult is the outcome of Delete. CounterUpdated is false when the camp counter could not
// be brought back in line with the deletion.
type DeleteResult struct {
	Deleted          bool   `json:"deleted"`
	CampID           string `json:"campId"`
	CounterUpdated   bool   `json:"counterUpdated"`
	ReconcileQueued  bool   `json:"reconcileQueued,omitempty"`
	ParticipantCount *int64 `json:"participant_count,omitempty"`
}

// Service runs the registration lifecycle: register, confirm, pay, delete.
type Service struct {
	store    docstore.Store
	repo     *Repository
	camps    *camps.Registry
	ledger   *payments.Ledger
	promoter Promoter
	drift    DriftReporter
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates the lifecycle service. drift may be nil, in which case counter drift is only
// logged.
func NewService(store docstore.Store, registry *camps.Registry, ledger *payments.Ledger, promoter Promoter, drift DriftReporter, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:    store,
		repo:     NewRepository(store),
		camps:    registry,
		ledger:   ledger,
		promoter: promoter,
		drift:    drift,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Register inserts a pending, unpaid registration and increments the camp's participant_count in
// the same transaction.
func (s *Service) Register(ctx context.Context, in RegisterInput) (RegisterResult, error) {
	in.CampID = strings.TrimSpace(in.CampID)
	in.ParticipantEmail = models.NormalizeEmail(in.ParticipantEmail)
	switch {
	case in.CampID == "":
		return RegisterResult{}, apperr.Validation("campId is required")
	case in.ParticipantEmail == "" || !strings.Contains(in.ParticipantEmail, "@"):
		return RegisterResult{}, apperr.Validation("valid participantEmail is required")
	case in.Age < 0:
		return RegisterResult{}, apperr.Validation("age must not be negative")
	}

	var out RegisterResult
	err := s.store.WithTx(ctx, func(tx docstore.Store) error {
		registry := s.camps.Tx(tx)
		camp, err := registry.Get(ctx, in.CampID)
		if err != nil {
			return err
		}
		reg := &models.Registration{
			CampID:             camp.ID,
			CampName:           camp.Title,
			CampFees:           camp.Fees,
			Location:           camp.Location,
			ParticipantEmail:   in.ParticipantEmail,
			ParticipantName:    strings.TrimSpace(in.ParticipantName),
			Age:                in.Age,
			Phone:              in.Phone,
			Gender:             in.Gender,
			EmergencyContact:   in.EmergencyContact,
			PaymentStatus:      models.PaymentUnpaid,
			ConfirmationStatus: models.ConfirmationPending,
			CreatedAt:          s.now(),
		}
		if err := s.repo.Tx(tx).Insert(ctx, reg); err != nil {
			return err
		}
		count, err := registry.AdjustParticipantCount(ctx, camp.ID, 1)
		if err != nil {
			return err
		}
		out = RegisterResult{InsertedID: reg.ID, CounterUpdated: true, ParticipantCount: count}
		return nil
	})
	if err != nil {
		return RegisterResult{}, err
	}
	s.logger.Info("registration created",
		zap.String("registration_id", out.InsertedID),
		zap.String("camp_id", in.CampID),
		zap.Int64("participant_count", out.ParticipantCount))
	return out, nil
}

// Get returns one registration.
func (s *Service) Get(ctx context.Context, id string) (*models.Registration, error) {
	return s.repo.Get(ctx, id)
}

// List returns all registrations, or only those of one participant email.
func (s *Service) List(ctx context.Context, email string) ([]models.Registration, error) {
	var f docstore.Filter
	if email = models.NormalizeEmail(email); email != "" {
		f = docstore.Filter{"participantEmail": email}
	}
	return s.repo.Find(ctx, f)
}

// ListByCamp returns the registrations of one camp.
func (s *Service) ListByCamp(ctx context.Context, campID string) ([]models.Registration, error) {
	return s.repo.Find(ctx, docstore.Filter{"campId": campID})
}

// UpdateStatus moves a registration to a new confirmation status along an allowed edge.
func (s *Service) UpdateStatus(ctx context.Context, id, status string) (*models.Registration, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if status == "" {
		return nil, apperr.Validation("confirmationStatus is required")
	}
	var updated *models.Registration
	err := s.store.WithTx(ctx, func(tx docstore.Store) error {
		repo := s.repo.Tx(tx)
		reg, err := repo.Lock(ctx, id)
		if err != nil {
			return err
		}
		if err := checkTransition(reg, status); err != nil {
			return err
		}
		if reg.ConfirmationStatus == status {
			updated = reg
			return nil
		}
		updated, err = repo.Set(ctx, id, map[string]any{"confirmationStatus": status})
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// RecordPayment marks a registration paid and confirmed, appends the payment to the ledger and
// promotes the participant. The registration and ledger writes commit together; promotion runs
// afterwards and its failure does not fail the call. Repeating a call with the same transaction
// reference writes nothing new.
func (s *Service) RecordPayment(ctx context.Context, id string, in PaymentInput) (PaymentResult, error) {
	in.TransactionID = strings.TrimSpace(in.TransactionID)
	in.PaymentStatus = strings.ToLower(strings.TrimSpace(in.PaymentStatus))
	in.PaymentDate = strings.TrimSpace(in.PaymentDate)
	switch {
	case in.TransactionID == "":
		return PaymentResult{}, apperr.Validation("transactionId is required")
	case in.PaymentStatus == "":
		return PaymentResult{}, apperr.Validation("paymentStatus is required")
	case in.PaymentDate == "":
		return PaymentResult{}, apperr.Validation("paymentDate is required")
	case in.PaymentStatus != models.PaymentPaid:
		return PaymentResult{}, apperr.Validation("paymentStatus must be " + models.PaymentPaid)
	case in.Amount != nil && *in.Amount < 0:
		return PaymentResult{}, apperr.Validation("amount must not be negative")
	}

	var out PaymentResult
	err := s.store.WithTx(ctx, func(tx docstore.Store) error {
		repo := s.repo.Tx(tx)
		ledger := s.ledger.Tx(tx)

		// Concurrent payments for one registration queue here, so the paid check below sees
		// whatever the previous one committed.
		reg, err := repo.Lock(ctx, id)
		if err != nil {
			return err
		}
		existing, err := ledger.FindByTransaction(ctx, in.TransactionID)
		switch {
		case err == nil:
			if existing.RegistrationID != reg.ID {
				return apperr.Conflict("transaction already recorded for another registration")
			}
			out = PaymentResult{Registration: reg, PaymentID: existing.ID, Amount: existing.Amount, AlreadyRecorded: true}
			return nil
		case !apperr.Is(err, apperr.KindNotFound):
			return err
		}
		if reg.PaymentStatus == models.PaymentPaid && reg.TransactionID != "" && reg.TransactionID != in.TransactionID {
			return apperr.Conflict("registration already paid under another transaction")
		}
		if reg.ConfirmationStatus == models.ConfirmationCancelled {
			return apperr.Validation("cannot pay for a cancelled registration")
		}

		if _, err := repo.Set(ctx, id, map[string]any{
			"paymentStatus":      in.PaymentStatus,
			"transactionId":      in.TransactionID,
			"paymentDate":        in.PaymentDate,
			"confirmationStatus": models.ConfirmationConfirmed,
		}); err != nil {
			return err
		}
		reg, err = repo.Get(ctx, id)
		if err != nil {
			return err
		}

		p := &models.Payment{
			Email:          reg.ParticipantEmail,
			CampName:       reg.CampName,
			RegistrationID: reg.ID,
			Amount:         paymentAmount(reg, in.Amount),
			Status:         in.PaymentStatus,
			TransactionID:  in.TransactionID,
			PaymentDate:    in.PaymentDate,
		}
		if err := ledger.Insert(ctx, p); err != nil {
			return err
		}
		out = PaymentResult{Registration: reg, PaymentID: p.ID, Amount: p.Amount, PaymentInserted: true}
		return nil
	})
	if err != nil {
		return PaymentResult{}, err
	}

	// A retried call still promotes, so a promotion that failed the first time gets another chance.
	s.promote(ctx, out.Registration, &out)
	return out, nil
}

func (s *Service) promote(ctx context.Context, reg *models.Registration, out *PaymentResult) {
	if s.promoter == nil {
		return
	}
	fields := []zap.Field{zap.String("registration_id", reg.ID), zap.String("email", reg.ParticipantEmail)}
	res, err := s.promoter.PromoteToParticipant(ctx, reg.ParticipantEmail)
	if err != nil {
		s.logger.Error("role promotion failed", append(fields, zap.Error(err))...)
		out.RoleError = "role promotion failed"
		return
	}
	out.UserFound = res.Found
	out.RoleUpdated = res.Promoted
	if !res.Found {
		s.logger.Warn("no user to promote for paid registration", fields...)
	}
}

// paymentAmount is the camp fee snapshot, else the caller's amount, else zero.
func paymentAmount(reg *models.Registration, fallback *float64) float64 {
	if reg.CampFees > 0 {
		return reg.CampFees
	}
	if fallback != nil {
		return *fallback
	}
	return 0
}

// Delete removes a registration and then decrements its camp's participant_count. A decrement
// that fails or drives the counter negative does not fail the delete: it is logged, the camp is
// reconciled or queued for reconciliation, and CounterUpdated reports false.
func (s *Service) Delete(ctx context.Context, id string) (DeleteResult, error) {
	reg, err := s.repo.Get(ctx, id)
	if err != nil {
		return DeleteResult{}, err
	}
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return DeleteResult{}, err
	}
	if !deleted {
		return DeleteResult{}, apperr.NotFound("registration not found")
	}
	out := DeleteResult{Deleted: true, CampID: reg.CampID}
	fields := []zap.Field{zap.String("registration_id", id), zap.String("camp_id", reg.CampID)}

	count, err := s.camps.AdjustParticipantCount(ctx, reg.CampID, -1)
	switch {
	case apperr.Is(err, apperr.KindNotFound):
		s.logger.Warn("registration deleted for missing camp", fields...)
		return out, nil
	case err != nil:
		s.logger.Error("participant count decrement failed", append(fields, zap.Error(err))...)
		out.ReconcileQueued = s.reportDrift(ctx, reg, "decrement failed")
		return out, nil
	case count < 0:
		s.logger.Warn("participant count went negative", append(fields, zap.Int64("participant_count", count))...)
		fixed, err := s.camps.Reconcile(ctx, reg.CampID)
		if err != nil {
			s.logger.Error("reconcile after negative count failed", append(fields, zap.Error(err))...)
			out.ReconcileQueued = s.reportDrift(ctx, reg, "negative count")
			return out, nil
		}
		count = fixed
	}
	out.CounterUpdated = true
	out.ParticipantCount = &count
	return out, nil
}

func (s *Service) reportDrift(ctx context.Context, reg *models.Registration, reason string) bool {
	if s.drift == nil {
		return false
	}
	err := s.drift.EnqueueReconcile(ctx, queue.ReconcilePayload{CampID: reg.CampID, RegistrationID: reg.ID, Reason: reason})
	if err != nil {
		s.logger.Error("enqueue reconcile failed", zap.String("camp_id", reg.CampID), zap.Error(err))
		return false
	}
	return true
}
