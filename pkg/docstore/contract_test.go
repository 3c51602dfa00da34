package docstore

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeContract is the behavior every Store implementation shares. newStore must return an empty
// store that enforces a unique users.email.
func storeContract(t *testing.T, newStore func(t *testing.T) Store) {
	cases := []struct {
		name string
		run  func(t *testing.T, s Store)
	}{
		{"insert and find", testInsertAndFind},
		{"unique keys", testUniqueKeys},
		{"upsert", testUpdateOneUpsert},
		{"concurrent upsert", testConcurrentUpsert},
		{"concurrent increments", testConcurrentIncrements},
		{"lock serializes transactions", testLockSerializesTransactions},
		{"delete count sum", testDeleteCountSum},
		{"tx rolls back", testWithTxRollsBack},
		{"tx commits", testWithTxCommits},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.run(t, newStore(t))
		})
	}
}

func testInsertAndFind(t *testing.T, s Store) {
	ctx := context.Background()

	id, err := s.InsertOne(ctx, "camps", Document{"title": "A", "fees": 10})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	_, err = s.InsertOne(ctx, "camps", Document{"title": "B", "fees": 20})
	require.NoError(t, err)

	doc, err := s.FindOne(ctx, "camps", Filter{IDField: id})
	require.NoError(t, err)
	assert.Equal(t, "A", doc["title"])
	assert.Equal(t, 10.0, doc["fees"])

	locked, err := s.Lock(ctx, "camps", Filter{IDField: id})
	require.NoError(t, err)
	assert.Equal(t, doc, locked)

	docs, err := s.Find(ctx, "camps", Filter{"fees": 20})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "B", docs[0]["title"])

	all, err := s.Find(ctx, "camps", nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "A", all[0]["title"], "insertion order")

	_, err = s.FindOne(ctx, "camps", Filter{"title": "C"})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Lock(ctx, "camps", Filter{"title": "C"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func testUniqueKeys(t *testing.T, s Store) {
	ctx := context.Background()

	_, err := s.InsertOne(ctx, "users", Document{"email": "a@x.com"})
	require.NoError(t, err)
	_, err = s.InsertOne(ctx, "users", Document{"email": "a@x.com"})
	assert.ErrorIs(t, err, ErrDuplicate)

	id, err := s.InsertOne(ctx, "users", Document{"email": "b@x.com"})
	require.NoError(t, err)
	_, err = s.InsertOne(ctx, "users", Document{IDField: id, "email": "c@x.com"})
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = s.FindOneAndUpdate(ctx, "users", Filter{IDField: id}, Update{Set: map[string]any{"email": "a@x.com"}})
	assert.ErrorIs(t, err, ErrDuplicate)

	// Unique keys are per collection.
	_, err = s.InsertOne(ctx, "feedbacks", Document{"email": "a@x.com"})
	assert.NoError(t, err)
}

func testUpdateOneUpsert(t *testing.T, s Store) {
	ctx := context.Background()
	u := Update{
		Set:         map[string]any{"title": "New"},
		SetOnInsert: map[string]any{"participant_count": 0},
	}

	res, err := s.UpdateOne(ctx, "camps", Filter{IDField: "c1"}, u, true)
	require.NoError(t, err)
	assert.Equal(t, "c1", res.UpsertedID)

	_, err = s.FindOneAndUpdate(ctx, "camps", Filter{IDField: "c1"}, Update{Inc: map[string]int64{"participant_count": 2}})
	require.NoError(t, err)

	res, err = s.UpdateOne(ctx, "camps", Filter{IDField: "c1"}, Update{Set: map[string]any{"title": "Renamed"}, SetOnInsert: map[string]any{"participant_count": 0}}, true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Matched)
	assert.Empty(t, res.UpsertedID)

	doc, err := s.FindOne(ctx, "camps", Filter{IDField: "c1"})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", doc["title"])
	assert.Equal(t, 2.0, doc["participant_count"])

	res, err = s.UpdateOne(ctx, "camps", Filter{IDField: "missing"}, u, false)
	require.NoError(t, err)
	assert.Equal(t, UpdateResult{}, res)
	_, err = s.FindOne(ctx, "camps", Filter{IDField: "missing"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func testConcurrentUpsert(t *testing.T, s Store) {
	ctx := context.Background()
	const writers = 20

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		upserted int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.UpdateOne(ctx, "camps", Filter{IDField: "c1"}, Update{
				Set:         map[string]any{"title": "Same"},
				SetOnInsert: map[string]any{"participant_count": 0},
			}, true)
			if !assert.NoError(t, err) {
				return
			}
			if res.UpsertedID != "" {
				mu.Lock()
				upserted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, upserted)
	n, err := s.Count(ctx, "camps", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func testConcurrentIncrements(t *testing.T, s Store) {
	ctx := context.Background()
	id, err := s.InsertOne(ctx, "camps", Document{"participant_count": 0})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := s.FindOneAndUpdate(ctx, "camps", Filter{IDField: id}, Update{Inc: map[string]int64{"participant_count": 1}})
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := s.FindOneAndUpdate(ctx, "camps", Filter{IDField: id}, Update{Inc: map[string]int64{"participant_count": 2}})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	doc, err := s.FindOne(ctx, "camps", Filter{IDField: id})
	require.NoError(t, err)
	assert.Equal(t, 150.0, doc["participant_count"])
}

// A read-check-write under Lock must not lose updates.
func testLockSerializesTransactions(t *testing.T, s Store) {
	ctx := context.Background()
	id, err := s.InsertOne(ctx, "registrations", Document{"attempts": 0})
	require.NoError(t, err)

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.WithTx(ctx, func(tx Store) error {
				doc, err := tx.Lock(ctx, "registrations", Filter{IDField: id})
				if err != nil {
					return err
				}
				n, _ := doc["attempts"].(float64)
				_, err = tx.UpdateOne(ctx, "registrations", Filter{IDField: id}, Update{Set: map[string]any{"attempts": n + 1}}, false)
				return err
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	doc, err := s.FindOne(ctx, "registrations", Filter{IDField: id})
	require.NoError(t, err)
	assert.Equal(t, float64(writers), doc["attempts"])
}

func testDeleteCountSum(t *testing.T, s Store) {
	ctx := context.Background()

	total, err := s.Sum(ctx, "payments", "amount", nil)
	require.NoError(t, err)
	assert.Zero(t, total)

	for _, amount := range []any{10, 2.5, "not a number"} {
		_, err := s.InsertOne(ctx, "payments", Document{"amount": amount, "email": "a@x.com"})
		require.NoError(t, err)
	}
	total, err = s.Sum(ctx, "payments", "amount", Filter{"email": "a@x.com"})
	require.NoError(t, err)
	assert.Equal(t, 12.5, total)

	n, err := s.DeleteOne(ctx, "payments", Filter{"email": "a@x.com"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = s.Count(ctx, "payments", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = s.DeleteMany(ctx, "payments", Filter{"email": "a@x.com"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	n, err = s.Count(ctx, "payments", nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func testWithTxRollsBack(t *testing.T, s Store) {
	ctx := context.Background()
	_, err := s.InsertOne(ctx, "camps", Document{IDField: "c1", "participant_count": 0})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = s.WithTx(ctx, func(tx Store) error {
		if _, err := tx.InsertOne(ctx, "registrations", Document{"campId": "c1"}); err != nil {
			return err
		}
		if _, err := tx.FindOneAndUpdate(ctx, "camps", Filter{IDField: "c1"}, Update{Inc: map[string]int64{"participant_count": 1}}); err != nil {
			return err
		}
		// Nested WithTx joins the outer transaction.
		return tx.WithTx(ctx, func(inner Store) error { return boom })
	})
	assert.ErrorIs(t, err, boom)

	n, err := s.Count(ctx, "registrations", nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	doc, err := s.FindOne(ctx, "camps", Filter{IDField: "c1"})
	require.NoError(t, err)
	assert.Equal(t, 0.0, doc["participant_count"])
}

func testWithTxCommits(t *testing.T, s Store) {
	ctx := context.Background()
	err := s.WithTx(ctx, func(tx Store) error {
		if _, err := tx.InsertOne(ctx, "camps", Document{"title": "A"}); err != nil {
			return err
		}
		return tx.WithTx(ctx, func(inner Store) error {
			_, err := inner.InsertOne(ctx, "camps", Document{"title": "B"})
			return err
		})
	})
	require.NoError(t, err)
	n, err := s.Count(ctx, "camps", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
