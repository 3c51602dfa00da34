package camps

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medcamp-hub/backend/internal/models"
	"github.com/medcamp-hub/backend/pkg/apperr"
	"github.com/medcamp-hub/backend/pkg/docstore"
)

func newCamp() *models.Camp {
	return &models.Camp{Title: "Health Camp", Date: "2024-01-01", Time: "10:00", Fees: 25, Images: []string{"x.png"}}
}

func TestCreateValidation(t *testing.T) {
	r := NewRegistry(docstore.NewMemory())
	tests := []struct {
		name   string
		mutate func(c *models.Camp)
	}{
		{"no title", func(c *models.Camp) { c.Title = " " }},
		{"no date", func(c *models.Camp) { c.Date = "" }},
		{"no time", func(c *models.Camp) { c.Time = "" }},
		{"no images", func(c *models.Camp) { c.Images = nil }},
		{"blank images", func(c *models.Camp) { c.Images = []string{"", " "} }},
		{"negative fees", func(c *models.Camp) { c.Fees = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCamp()
			tt.mutate(c)
			err := r.Create(context.Background(), c)
			assert.True(t, apperr.Is(err, apperr.KindValidation), "got %v", err)
		})
	}
}

func TestCreateStartsAtZero(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(docstore.NewMemory())
	c := newCamp()
	c.ParticipantCount = 42
	require.NoError(t, r.Create(ctx, c))
	assert.NotEmpty(t, c.ID)

	got, err := r.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.ParticipantCount)
	assert.Equal(t, "Health Camp", got.Title)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestUpdatePatchesAndUpserts(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(docstore.NewMemory())
	c := newCamp()
	require.NoError(t, r.Create(ctx, c))
	_, err := r.AdjustParticipantCount(ctx, c.ID, 2)
	require.NoError(t, err)

	title := "Eye Camp"
	upserted, err := r.Update(ctx, c.ID, Patch{Title: &title})
	require.NoError(t, err)
	assert.False(t, upserted)
	got, err := r.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Eye Camp", got.Title)
	assert.Equal(t, "2024-01-01", got.Date)
	assert.Equal(t, int64(2), got.ParticipantCount)
	assert.NotNil(t, got.UpdatedAt)

	date, tm := "2024-03-01", "08:00"
	upserted, err = r.Update(ctx, "fresh", Patch{Title: &title, Date: &date, Time: &tm, Images: &[]string{"e.png"}})
	require.NoError(t, err)
	assert.True(t, upserted)
	fresh, err := r.Get(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, int64(0), fresh.ParticipantCount)
	assert.Equal(t, "Eye Camp", fresh.Title)
	assert.False(t, fresh.CreatedAt.IsZero())

	for name, p := range map[string]Patch{
		"empty":       {},
		"title only":  {Title: &title},
		"no images":   {Title: &title, Date: &date, Time: &tm},
		"no schedule": {Title: &title, Images: &[]string{"e.png"}},
	} {
		_, err := r.Update(ctx, "ghost", p)
		assert.True(t, apperr.Is(err, apperr.KindValidation), "%s: got %v", name, err)
		_, err = r.Get(ctx, "ghost")
		assert.True(t, apperr.Is(err, apperr.KindNotFound), "%s: invalid upsert left a camp behind", name)
	}

	empty := ""
	_, err = r.Update(ctx, c.ID, Patch{Title: &empty})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	_, err = r.Update(ctx, c.ID, Patch{Images: &[]string{}})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestDeleteCascades(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	r := NewRegistry(store)
	keep, gone := newCamp(), newCamp()
	require.NoError(t, r.Create(ctx, keep))
	require.NoError(t, r.Create(ctx, gone))
	for _, campID := range []string{keep.ID, gone.ID, gone.ID} {
		_, err := store.InsertOne(ctx, models.CollectionRegistrations, docstore.Document{"campId": campID})
		require.NoError(t, err)
	}

	res, err := r.Delete(ctx, gone.ID)
	require.NoError(t, err)
	assert.Equal(t, DeleteResult{Deleted: true, RegistrationsDeleted: 2}, res)

	n, err := store.Count(ctx, models.CollectionRegistrations, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = r.Delete(ctx, gone.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestAdjustAndReconcile(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	r := NewRegistry(store)
	c := newCamp()
	require.NoError(t, r.Create(ctx, c))

	n, err := r.AdjustParticipantCount(ctx, c.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = r.AdjustParticipantCount(ctx, c.ID, -3)
	require.NoError(t, err)
	assert.Equal(t, int64(-2), n)

	_, err = r.AdjustParticipantCount(ctx, "missing", 1)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = store.InsertOne(ctx, models.CollectionRegistrations, docstore.Document{"campId": c.ID})
	require.NoError(t, err)
	n, err = r.Reconcile(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	got, err := r.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.ParticipantCount)

	_, err = r.Reconcile(ctx, "missing")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
