package camps

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/medcamp-hub/backend/internal/models"
	"github.com/medcamp-hub/backend/pkg/apperr"
	"github.com/medcamp-hub/backend/pkg/docstore"
)

// Patch holds the fields PUT /camps/:id may change. Nil fields are left as they are.
type Patch struct {
	Title                  *string   `json:"title"`
	Date                   *string   `json:"date"`
	Time                   *string   `json:"time"`
	Location               *string   `json:"location"`
	Fees                   *float64  `json:"fees"`
	HealthcareProfessional *string   `json:"healthcareProfessional"`
	Description            *string   `json:"description"`
	Images                 *[]string `json:"images"`
}

// DeleteResult reports both halves of a camp delete.
type DeleteResult struct {
	Deleted              bool  `json:"deleted"`
	RegistrationsDeleted int64 `json:"registrationsDeleted"`
}

// Registry owns camp documents and their participant_count counter.
type Registry struct {
	store docstore.Store
	now   func() time.Time
}

// NewRegistry creates a camp registry.
func NewRegistry(store docstore.Store) *Registry {
	return &Registry{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// Tx returns a registry bound to a transactional store view.
func (r *Registry) Tx(tx docstore.Store) *Registry {
	return &Registry{store: tx, now: r.now}
}

// Create validates and inserts a camp. participant_count and createdAt are always set here.
func (r *Registry) Create(ctx context.Context, camp *models.Camp) error {
	if err := validateCamp(camp); err != nil {
		return err
	}
	camp.ID = ""
	camp.ParticipantCount = 0
	camp.CreatedAt = r.now()
	camp.UpdatedAt = nil
	doc, err := docstore.Encode(camp)
	if err != nil {
		return apperr.Upstream("failed to create camp", err)
	}
	id, err := r.store.InsertOne(ctx, models.CollectionCamps, doc)
	if err != nil {
		return apperr.Upstream("failed to create camp", err)
	}
	camp.ID = id
	return nil
}

// Get returns a camp by ID.
func (r *Registry) Get(ctx context.Context, id string) (*models.Camp, error) {
	doc, err := r.store.FindOne(ctx, models.CollectionCamps, docstore.Filter{docstore.IDField: id})
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, apperr.NotFound("camp not found")
	}
	if err != nil {
		return nil, apperr.Upstream("failed to load camp", err)
	}
	var camp models.Camp
	if err := docstore.Decode(doc, &camp); err != nil {
		return nil, apperr.Upstream("failed to load camp", err)
	}
	return &camp, nil
}

// List returns all camps in creation order.
func (r *Registry) List(ctx context.Context) ([]models.Camp, error) {
	docs, err := r.store.Find(ctx, models.CollectionCamps, nil)
	if err != nil {
		return nil, apperr.Upstream("failed to list camps", err)
	}
	list, err := docstore.DecodeAll[models.Camp](docs)
	if err != nil {
		return nil, apperr.Upstream("failed to list camps", err)
	}
	return list, nil
}

// Update applies p to the camp, creating it when id does not exist yet. The counter and
// creation time are only written on insert. A created camp must pass the same checks as Create.
func (r *Registry) Update(ctx context.Context, id string, p Patch) (upserted bool, err error) {
	set, err := p.fields()
	if err != nil {
		return false, err
	}
	now := r.now()
	set["updatedAt"] = now
	err = r.store.WithTx(ctx, func(tx docstore.Store) error {
		res, err := tx.UpdateOne(ctx, models.CollectionCamps, docstore.Filter{docstore.IDField: id}, docstore.Update{
			Set:         set,
			SetOnInsert: map[string]any{"participant_count": 0, "createdAt": now},
		}, true)
		if err != nil {
			return apperr.Upstream("failed to update camp", err)
		}
		if res.UpsertedID == "" {
			return nil
		}
		created, err := r.Tx(tx).Get(ctx, id)
		if err != nil {
			return err
		}
		if err := validateCamp(created); err != nil {
			return err
		}
		upserted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return upserted, nil
}

// Delete removes the camp and every registration referencing it in one transaction.
func (r *Registry) Delete(ctx context.Context, id string) (DeleteResult, error) {
	var out DeleteResult
	err := r.store.WithTx(ctx, func(tx docstore.Store) error {
		n, err := tx.DeleteOne(ctx, models.CollectionCamps, docstore.Filter{docstore.IDField: id})
		if err != nil {
			return apperr.Upstream("failed to delete camp", err)
		}
		if n == 0 {
			return apperr.NotFound("camp not found")
		}
		out.Deleted = true
		removed, err := tx.DeleteMany(ctx, models.CollectionRegistrations, docstore.Filter{"campId": id})
		if err != nil {
			return apperr.Upstream("failed to delete camp registrations", err)
		}
		out.RegistrationsDeleted = removed
		return nil
	})
	if err != nil {
		return DeleteResult{}, err
	}
	return out, nil
}

// AdjustParticipantCount atomically adds delta to participant_count and returns the new value.
// The result is not clamped; callers decide what a negative value means.
func (r *Registry) AdjustParticipantCount(ctx context.Context, id string, delta int64) (int64, error) {
	doc, err := r.store.FindOneAndUpdate(ctx, models.CollectionCamps, docstore.Filter{docstore.IDField: id}, docstore.Update{
		Inc: map[string]int64{"participant_count": delta},
	})
	if errors.Is(err, docstore.ErrNotFound) {
		return 0, apperr.NotFound("camp not found")
	}
	if err != nil {
		return 0, apperr.Upstream("failed to update participant count", err)
	}
	var camp models.Camp
	if err := docstore.Decode(doc, &camp); err != nil {
		return 0, apperr.Upstream("failed to update participant count", err)
	}
	return camp.ParticipantCount, nil
}

// Reconcile recomputes participant_count from the registrations that reference the camp.
// The camp row is locked before counting, so a concurrent Register either commits before the
// count or increments after the reconciled value is written.
func (r *Registry) Reconcile(ctx context.Context, id string) (int64, error) {
	var count int64
	err := r.store.WithTx(ctx, func(tx docstore.Store) error {
		if _, err := r.Tx(tx).lock(ctx, id); err != nil {
			return err
		}
		n, err := tx.Count(ctx, models.CollectionRegistrations, docstore.Filter{"campId": id})
		if err != nil {
			return apperr.Upstream("failed to count registrations", err)
		}
		if _, err := tx.UpdateOne(ctx, models.CollectionCamps, docstore.Filter{docstore.IDField: id}, docstore.Update{
			Set: map[string]any{"participant_count": n},
		}, false); err != nil {
			return apperr.Upstream("failed to reconcile participant count", err)
		}
		count = n
		return nil
	})
	return count, err
}

// lock returns the camp and holds its row until the surrounding transaction ends.
func (r *Registry) lock(ctx context.Context, id string) (docstore.Document, error) {
	doc, err := r.store.Lock(ctx, models.CollectionCamps, docstore.Filter{docstore.IDField: id})
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, apperr.NotFound("camp not found")
	}
	if err != nil {
		return nil, apperr.Upstream("failed to load camp", err)
	}
	return doc, nil
}

func validateCamp(c *models.Camp) error {
	switch {
	case strings.TrimSpace(c.Title) == "":
		return apperr.Validation("title is required")
	case strings.TrimSpace(c.Date) == "":
		return apperr.Validation("date is required")
	case strings.TrimSpace(c.Time) == "":
		return apperr.Validation("time is required")
	}
	c.Images = compact(c.Images)
	if len(c.Images) == 0 {
		return apperr.Validation("at least one image is required")
	}
	if c.Fees < 0 {
		return apperr.Validation("fees must not be negative")
	}
	return nil
}

func (p Patch) fields() (map[string]any, error) {
	set := map[string]any{}
	str := func(key string, v *string, required bool) error {
		if v == nil {
			return nil
		}
		if required && strings.TrimSpace(*v) == "" {
			return apperr.Validation(key + " must not be empty")
		}
		set[key] = *v
		return nil
	}
	for _, f := range []struct {
		key      string
		v        *string
		required bool
	}{
		{"title", p.Title, true},
		{"date", p.Date, true},
		{"time", p.Time, true},
		{"location", p.Location, false},
		{"healthcareProfessional", p.HealthcareProfessional, false},
		{"description", p.Description, false},
	} {
		if err := str(f.key, f.v, f.required); err != nil {
			return nil, err
		}
	}
	if p.Fees != nil {
		if *p.Fees < 0 {
			return nil, apperr.Validation("fees must not be negative")
		}
		set["fees"] = *p.Fees
	}
	if p.Images != nil {
		images := compact(*p.Images)
		if len(images) == 0 {
			return nil, apperr.Validation("at least one image is required")
		}
		set["images"] = images
	}
	return set, nil
}

func compact(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
