package analytics

import (
	"context"

	"github.com/medcamp-hub/backend/internal/models"
	"github.com/medcamp-hub/backend/internal/payments"
	"github.com/medcamp-hub/backend/pkg/apperr"
	"github.com/medcamp-hub/backend/pkg/docstore"
)

// Dashboard is the JSON shape of GET /analytics/dashboard.
type Dashboard struct {
	TotalCamps         int64   `json:"totalCamps"`
	TotalRegistrations int64   `json:"totalRegistrations"`
	TotalPayments      int64   `json:"totalPayments"`
	TotalUsers         int64   `json:"totalUsers"`
	TotalParticipants  int64   `json:"totalParticipants"`
	TotalRevenue       float64 `json:"totalRevenue"`
}

// Aggregator computes read-only counts over the document store.
type Aggregator struct {
	store  docstore.Store
	ledger *payments.Ledger
}

// NewAggregator creates an analytics aggregator.
func NewAggregator(store docstore.Store, ledger *payments.Ledger) *Aggregator {
	return &Aggregator{store: store, ledger: ledger}
}

// Dashboard returns platform-wide totals. Revenue is 0 when no payments exist.
func (a *Aggregator) Dashboard(ctx context.Context) (Dashboard, error) {
	var d Dashboard
	counts := []struct {
		coll string
		f    docstore.Filter
		dst  *int64
	}{
		{models.CollectionCamps, nil, &d.TotalCamps},
		{models.CollectionRegistrations, nil, &d.TotalRegistrations},
		{models.CollectionUsers, nil, &d.TotalUsers},
		{models.CollectionUsers, docstore.Filter{"role": string(models.RoleParticipant)}, &d.TotalParticipants},
	}
	for _, c := range counts {
		n, err := a.store.Count(ctx, c.coll, c.f)
		if err != nil {
			return Dashboard{}, apperr.Upstream("failed to load dashboard", err)
		}
		*c.dst = n
	}
	var err error
	if d.TotalPayments, err = a.ledger.Count(ctx, nil); err != nil {
		return Dashboard{}, err
	}
	if d.TotalRevenue, err = a.ledger.Sum(ctx, nil); err != nil {
		return Dashboard{}, err
	}
	return d, nil
}

// RegisteredCamps returns the number of registrations held by one participant email.
func (a *Aggregator) RegisteredCamps(ctx context.Context, email string) (int64, error) {
	email = models.NormalizeEmail(email)
	if email == "" {
		return 0, apperr.Validation("email is required")
	}
	n, err := a.store.Count(ctx, models.CollectionRegistrations, docstore.Filter{"participantEmail": email})
	if err != nil {
		return 0, apperr.Upstream("failed to count registrations", err)
	}
	return n, nil
}
