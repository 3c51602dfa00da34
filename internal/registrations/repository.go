package registrations

import (
	"context"
	"errors"

	"github.com/medcamp-hub/backend/internal/models"
	"github.com/medcamp-hub/backend/pkg/apperr"
	"github.com/medcamp-hub/backend/pkg/docstore"
)

// Repository handles registration persistence.
type Repository struct {
	store docstore.Store
}

// NewRepository creates a registrations repository.
func NewRepository(store docstore.Store) *Repository {
	return &Repository{store: store}
}

// Tx returns a repository bound to a transactional store view.
func (r *Repository) Tx(tx docstore.Store) *Repository {
	return &Repository{store: tx}
}

// Insert stores a registration and sets its ID.
func (r *Repository) Insert(ctx context.Context, reg *models.Registration) error {
	reg.ID = ""
	doc, err := docstore.Encode(reg)
	if err != nil {
		return apperr.Upstream("failed to register", err)
	}
	id, err := r.store.InsertOne(ctx, models.CollectionRegistrations, doc)
	if err != nil {
		return apperr.Upstream("failed to register", err)
	}
	reg.ID = id
	return nil
}

// Get returns a registration by ID.
func (r *Repository) Get(ctx context.Context, id string) (*models.Registration, error) {
	doc, err := r.store.FindOne(ctx, models.CollectionRegistrations, docstore.Filter{docstore.IDField: id})
	return decodeOne(doc, err)
}

// Lock returns a registration and holds it against concurrent writers until the surrounding
// transaction ends.
func (r *Repository) Lock(ctx context.Context, id string) (*models.Registration, error) {
	doc, err := r.store.Lock(ctx, models.CollectionRegistrations, docstore.Filter{docstore.IDField: id})
	return decodeOne(doc, err)
}

// Find returns registrations matching f in creation order.
func (r *Repository) Find(ctx context.Context, f docstore.Filter) ([]models.Registration, error) {
	docs, err := r.store.Find(ctx, models.CollectionRegistrations, f)
	if err != nil {
		return nil, apperr.Upstream("failed to list registrations", err)
	}
	list, err := docstore.DecodeAll[models.Registration](docs)
	if err != nil {
		return nil, apperr.Upstream("failed to list registrations", err)
	}
	return list, nil
}

// Set writes fields on a registration and returns the updated document.
func (r *Repository) Set(ctx context.Context, id string, fields map[string]any) (*models.Registration, error) {
	doc, err := r.store.FindOneAndUpdate(ctx, models.CollectionRegistrations, docstore.Filter{docstore.IDField: id}, docstore.Update{Set: fields})
	return decodeOne(doc, err)
}

// Delete removes a registration and reports whether it existed.
func (r *Repository) Delete(ctx context.Context, id string) (bool, error) {
	n, err := r.store.DeleteOne(ctx, models.CollectionRegistrations, docstore.Filter{docstore.IDField: id})
	if err != nil {
		return false, apperr.Upstream("failed to delete registration", err)
	}
	return n > 0, nil
}

func decodeOne(doc docstore.Document, err error) (*models.Registration, error) {
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, apperr.NotFound("registration not found")
	}
	if err != nil {
		return nil, apperr.Upstream("failed to load registration", err)
	}
	var reg models.Registration
	if err := docstore.Decode(doc, &reg); err != nil {
		return nil, apperr.Upstream("failed to load registration", err)
	}
	return &reg, nil
}
