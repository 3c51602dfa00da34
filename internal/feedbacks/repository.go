package feedbacks

import (
	"context"
	"strings"
	"time"

	"github.com/medcamp-hub/backend/internal/camps"
	"github.com/medcamp-hub/backend/internal/models"
	"github.com/medcamp-hub/backend/pkg/apperr"
	"github.com/medcamp-hub/backend/pkg/docstore"
)

// Store persists participant feedback on camps.
type Store struct {
	store docstore.Store
	camps *camps.Registry
	now   func() time.Time
}

// NewStore creates a feedback store. Feedback for a camp that does not exist is rejected.
func NewStore(store docstore.Store, registry *camps.Registry) *Store {
	return &Store{store: store, camps: registry, now: func() time.Time { return time.Now().UTC() }}
}

// Create validates and inserts feedback, copying the camp title onto it.
func (s *Store) Create(ctx context.Context, fb *models.Feedback) error {
	fb.CampID = strings.TrimSpace(fb.CampID)
	fb.ParticipantEmail = models.NormalizeEmail(fb.ParticipantEmail)
	switch {
	case fb.CampID == "":
		return apperr.Validation("campId is required")
	case fb.ParticipantEmail == "":
		return apperr.Validation("participantEmail is required")
	case fb.Rating < 1 || fb.Rating > 5:
		return apperr.Validation("rating must be between 1 and 5")
	}
	camp, err := s.camps.Get(ctx, fb.CampID)
	if err != nil {
		return err
	}
	fb.ID = ""
	fb.CampName = camp.Title
	fb.CreatedAt = s.now()
	doc, err := docstore.Encode(fb)
	if err != nil {
		return apperr.Upstream("failed to save feedback", err)
	}
	id, err := s.store.InsertOne(ctx, models.CollectionFeedbacks, doc)
	if err != nil {
		return apperr.Upstream("failed to save feedback", err)
	}
	fb.ID = id
	return nil
}

// List returns all feedback, or only that of one camp.
func (s *Store) List(ctx context.Context, campID string) ([]models.Feedback, error) {
	var f docstore.Filter
	if campID != "" {
		f = docstore.Filter{"campId": campID}
	}
	docs, err := s.store.Find(ctx, models.CollectionFeedbacks, f)
	if err != nil {
		return nil, apperr.Upstream("failed to list feedback", err)
	}
	list, err := docstore.DecodeAll[models.Feedback](docs)
	if err != nil {
		return nil, apperr.Upstream("failed to list feedback", err)
	}
	return list, nil
}
