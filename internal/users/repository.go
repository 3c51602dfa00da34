package users

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/medcamp-hub/backend/internal/models"
	"github.com/medcamp-hub/backend/pkg/apperr"
	"github.com/medcamp-hub/backend/pkg/docstore"
)

// Profile holds the user fields PATCH/PUT may change. Nil fields are left as they are.
type Profile struct {
	Name    *string `json:"name"`
	Photo   *string `json:"photo"`
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
}

// PromotionResult reports what PromoteToParticipant did.
type PromotionResult struct {
	Found    bool        `json:"found"`
	Promoted bool        `json:"promoted"`
	Role     models.Role `json:"role,omitempty"`
}

// Directory owns user identity and role records.
type Directory struct {
	store             docstore.Store
	preserveOrganizer bool
	now               func() time.Time
}

// NewDirectory creates a user directory. With preserveOrganizer, payment-driven promotion leaves
// organizers as they are.
func NewDirectory(store docstore.Store, preserveOrganizer bool) *Directory {
	return &Directory{store: store, preserveOrganizer: preserveOrganizer, now: func() time.Time { return time.Now().UTC() }}
}

// Create inserts a user with role "user" unless a known role is given. A lowercased email that
// already exists is a conflict.
func (d *Directory) Create(ctx context.Context, u *models.User) error {
	u.Email = models.NormalizeEmail(u.Email)
	if u.Email == "" || !strings.Contains(u.Email, "@") {
		return apperr.Validation("valid email is required")
	}
	if u.Role == "" {
		u.Role = models.RoleUser
	}
	if !u.Role.Valid() {
		return apperr.Validation("invalid role")
	}
	u.ID = ""
	u.CreatedAt = d.now()
	u.UpdatedAt = nil
	doc, err := docstore.Encode(u)
	if err != nil {
		return apperr.Upstream("failed to create user", err)
	}
	return d.store.WithTx(ctx, func(tx docstore.Store) error {
		n, err := tx.Count(ctx, models.CollectionUsers, docstore.Filter{"email": u.Email})
		if err != nil {
			return apperr.Upstream("failed to create user", err)
		}
		if n > 0 {
			return apperr.Conflict("user already exists")
		}
		id, err := tx.InsertOne(ctx, models.CollectionUsers, doc)
		if errors.Is(err, docstore.ErrDuplicate) {
			return apperr.Conflict("user already exists")
		}
		if err != nil {
			return apperr.Upstream("failed to create user", err)
		}
		u.ID = id
		return nil
	})
}

// List returns all users.
func (d *Directory) List(ctx context.Context) ([]models.User, error) {
	docs, err := d.store.Find(ctx, models.CollectionUsers, nil)
	if err != nil {
		return nil, apperr.Upstream("failed to list users", err)
	}
	list, err := docstore.DecodeAll[models.User](docs)
	if err != nil {
		return nil, apperr.Upstream("failed to list users", err)
	}
	return list, nil
}

// GetByEmail returns the user with the given email, compared case-insensitively.
func (d *Directory) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return d.getOne(ctx, docstore.Filter{"email": models.NormalizeEmail(email)})
}

func (d *Directory) getOne(ctx context.Context, f docstore.Filter) (*models.User, error) {
	doc, err := d.store.FindOne(ctx, models.CollectionUsers, f)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, apperr.NotFound("user not found")
	}
	if err != nil {
		return nil, apperr.Upstream("failed to load user", err)
	}
	var u models.User
	if err := docstore.Decode(doc, &u); err != nil {
		return nil, apperr.Upstream("failed to load user", err)
	}
	return &u, nil
}

// UpdateByEmail applies profile changes to the user with the given email.
func (d *Directory) UpdateByEmail(ctx context.Context, email string, p Profile) (*models.User, error) {
	return d.update(ctx, docstore.Filter{"email": models.NormalizeEmail(email)}, p)
}

// UpdateByID applies profile changes to the user with the given id.
func (d *Directory) UpdateByID(ctx context.Context, id string, p Profile) (*models.User, error) {
	return d.update(ctx, docstore.Filter{docstore.IDField: id}, p)
}

func (d *Directory) update(ctx context.Context, f docstore.Filter, p Profile) (*models.User, error) {
	set := map[string]any{"updatedAt": d.now()}
	if p.Name != nil {
		if strings.TrimSpace(*p.Name) == "" {
			return nil, apperr.Validation("name must not be empty")
		}
		set["name"] = *p.Name
	}
	if p.Photo != nil {
		set["photo"] = *p.Photo
	}
	if p.Phone != nil {
		set["phone"] = *p.Phone
	}
	if p.Address != nil {
		set["address"] = *p.Address
	}
	doc, err := d.store.FindOneAndUpdate(ctx, models.CollectionUsers, f, docstore.Update{Set: set})
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, apperr.NotFound("user not found")
	}
	if err != nil {
		return nil, apperr.Upstream("failed to update user", err)
	}
	var u models.User
	if err := docstore.Decode(doc, &u); err != nil {
		return nil, apperr.Upstream("failed to update user", err)
	}
	return &u, nil
}

// Role returns the user's role, or "user" when the email is unknown.
func (d *Directory) Role(ctx context.Context, email string) (models.Role, error) {
	u, err := d.GetByEmail(ctx, email)
	if apperr.Is(err, apperr.KindNotFound) {
		return models.RoleUser, nil
	}
	if err != nil {
		return "", err
	}
	if u.Role == "" {
		return models.RoleUser, nil
	}
	return u.Role, nil
}

// PromoteToParticipant sets the role of the user with the given email to participant.
// An unknown email is not an error: the result reports Found=false.
func (d *Directory) PromoteToParticipant(ctx context.Context, email string) (PromotionResult, error) {
	f := docstore.Filter{"email": models.NormalizeEmail(email)}
	if d.preserveOrganizer {
		u, err := d.getOne(ctx, f)
		if apperr.Is(err, apperr.KindNotFound) {
			return PromotionResult{}, nil
		}
		if err != nil {
			return PromotionResult{}, err
		}
		if u.Role == models.RoleOrganizer {
			return PromotionResult{Found: true, Role: u.Role}, nil
		}
	}
	res, err := d.store.UpdateOne(ctx, models.CollectionUsers, f, docstore.Update{
		Set: map[string]any{"role": string(models.RoleParticipant), "updatedAt": d.now()},
	}, false)
	if err != nil {
		return PromotionResult{}, apperr.Upstream("failed to promote user", err)
	}
	if res.Matched == 0 {
		return PromotionResult{}, nil
	}
	return PromotionResult{Found: true, Promoted: true, Role: models.RoleParticipant}, nil
}
