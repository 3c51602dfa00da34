package docstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	storeContract(t, func(*testing.T) Store {
		return NewMemory(UniqueKey{Collection: "users", Field: "email"})
	})
}

func TestMemoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	id, err := m.InsertOne(ctx, "users", Document{"name": "a"})
	require.NoError(t, err)

	doc, err := m.FindOne(ctx, "users", Filter{IDField: id})
	require.NoError(t, err)
	doc["name"] = "mutated"

	again, err := m.FindOne(ctx, "users", Filter{IDField: id})
	require.NoError(t, err)
	assert.Equal(t, "a", again["name"])
}

func TestEncodeDecode(t *testing.T) {
	type camp struct {
		ID    string  `json:"_id,omitempty"`
		Title string  `json:"title"`
		Fees  float64 `json:"fees"`
		Count int64   `json:"participant_count"`
	}
	doc, err := Encode(camp{Title: "A", Fees: 5, Count: 3})
	require.NoError(t, err)
	assert.Empty(t, doc.ID())
	assert.Equal(t, 3.0, doc["participant_count"])

	doc[IDField] = "x"
	var out camp
	require.NoError(t, Decode(doc, &out))
	assert.Equal(t, camp{ID: "x", Title: "A", Fees: 5, Count: 3}, out)

	list, err := DecodeAll[camp]([]Document{doc, doc})
	require.NoError(t, err)
	assert.Len(t, list, 2)
}
