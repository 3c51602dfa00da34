package payments

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/medcamp-hub/backend/internal/models"
	"github.com/medcamp-hub/backend/pkg/apperr"
	"github.com/medcamp-hub/backend/pkg/docstore"
)

// Ledger is the append-only record of completed payments. It has no update or delete surface.
type Ledger struct {
	store docstore.Store
	now   func() time.Time
}

// NewLedger creates a payment ledger.
func NewLedger(store docstore.Store) *Ledger {
	return &Ledger{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// Tx returns a ledger bound to a transactional store view.
func (l *Ledger) Tx(tx docstore.Store) *Ledger {
	return &Ledger{store: tx, now: l.now}
}

// Insert appends a payment. A transaction reference already in the ledger is a conflict.
func (l *Ledger) Insert(ctx context.Context, p *models.Payment) error {
	p.Email = models.NormalizeEmail(p.Email)
	p.TransactionID = strings.TrimSpace(p.TransactionID)
	if p.TransactionID == "" {
		return apperr.Validation("transactionId is required")
	}
	if p.Email == "" {
		return apperr.Validation("email is required")
	}
	if p.Amount < 0 {
		return apperr.Validation("amount must not be negative")
	}
	p.ID = ""
	p.CreatedAt = l.now()
	doc, err := docstore.Encode(p)
	if err != nil {
		return apperr.Upstream("failed to record payment", err)
	}
	return l.store.WithTx(ctx, func(tx docstore.Store) error {
		n, err := tx.Count(ctx, models.CollectionPayments, docstore.Filter{"transactionId": p.TransactionID})
		if err != nil {
			return apperr.Upstream("failed to record payment", err)
		}
		if n > 0 {
			return apperr.Conflict("payment already recorded for this transaction")
		}
		id, err := tx.InsertOne(ctx, models.CollectionPayments, doc)
		if errors.Is(err, docstore.ErrDuplicate) {
			return apperr.Conflict("payment already recorded for this transaction")
		}
		if err != nil {
			return apperr.Upstream("failed to record payment", err)
		}
		p.ID = id
		return nil
	})
}

// FindByTransaction returns the payment recorded for a transaction reference.
func (l *Ledger) FindByTransaction(ctx context.Context, transactionID string) (*models.Payment, error) {
	doc, err := l.store.FindOne(ctx, models.CollectionPayments, docstore.Filter{"transactionId": transactionID})
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, apperr.NotFound("payment not found")
	}
	if err != nil {
		return nil, apperr.Upstream("failed to load payment", err)
	}
	var p models.Payment
	if err := docstore.Decode(doc, &p); err != nil {
		return nil, apperr.Upstream("failed to load payment", err)
	}
	return &p, nil
}

// List returns payments, optionally only those of one email.
func (l *Ledger) List(ctx context.Context, email string) ([]models.Payment, error) {
	var f docstore.Filter
	if email = models.NormalizeEmail(email); email != "" {
		f = docstore.Filter{"email": email}
	}
	docs, err := l.store.Find(ctx, models.CollectionPayments, f)
	if err != nil {
		return nil, apperr.Upstream("failed to list payments", err)
	}
	list, err := docstore.DecodeAll[models.Payment](docs)
	if err != nil {
		return nil, apperr.Upstream("failed to list payments", err)
	}
	return list, nil
}

// Count returns the number of payments matching f.
func (l *Ledger) Count(ctx context.Context, f docstore.Filter) (int64, error) {
	n, err := l.store.Count(ctx, models.CollectionPayments, f)
	if err != nil {
		return 0, apperr.Upstream("failed to count payments", err)
	}
	return n, nil
}

// Sum adds amount over payments matching f; 0 when none match.
func (l *Ledger) Sum(ctx context.Context, f docstore.Filter) (float64, error) {
	total, err := l.store.Sum(ctx, models.CollectionPayments, "amount", f)
	if err != nil {
		return 0, apperr.Upstream("failed to sum payments", err)
	}
	return total, nil
}
