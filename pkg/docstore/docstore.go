// Package docstore is a collection-oriented document store over JSON documents.
//
// Every single-document operation is atomic. Multi-document sequences that must hold together
// run inside WithTx.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// IDField is the key holding a document's identifier.
const IDField = "_id"

var (
	// ErrNotFound is returned when no document matches a filter.
	ErrNotFound = errors.New("docstore: document not found")
	// ErrDuplicate is returned when an insert violates a unique key.
	ErrDuplicate = errors.New("docstore: duplicate key")
)

// Document is a decoded JSON object.
type Document map[string]any

// ID returns the document identifier or "".
func (d Document) ID() string {
	id, _ := d[IDField].(string)
	return id
}

// Filter matches documents whose top-level fields equal every given value.
type Filter map[string]any

// Update describes a single-document modification. Set and Inc apply to every match;
// SetOnInsert applies only when an upsert creates the document.
type Update struct {
	Set         map[string]any
	Inc         map[string]int64
	SetOnInsert map[string]any
}

// UpdateResult reports what UpdateOne did.
type UpdateResult struct {
	Matched    int64
	UpsertedID string
}

// Store is the adapter every repository depends on.
type Store interface {
	Find(ctx context.Context, coll string, f Filter) ([]Document, error)
	FindOne(ctx context.Context, coll string, f Filter) (Document, error)
	// Lock is FindOne that also holds the matched document against concurrent writers until the
	// surrounding transaction ends. Outside WithTx it behaves like FindOne.
	Lock(ctx context.Context, coll string, f Filter) (Document, error)
	InsertOne(ctx context.Context, coll string, doc Document) (string, error)
	UpdateOne(ctx context.Context, coll string, f Filter, u Update, upsert bool) (UpdateResult, error)
	// FindOneAndUpdate applies u to the first match and returns the updated document.
	FindOneAndUpdate(ctx context.Context, coll string, f Filter, u Update) (Document, error)
	DeleteOne(ctx context.Context, coll string, f Filter) (int64, error)
	DeleteMany(ctx context.Context, coll string, f Filter) (int64, error)
	Count(ctx context.Context, coll string, f Filter) (int64, error)
	// Sum adds the numeric field over matching documents. The empty set sums to 0.
	Sum(ctx context.Context, coll, field string, f Filter) (float64, error)
	// WithTx runs fn against a transactional view. A nested call joins the outer transaction.
	WithTx(ctx context.Context, fn func(tx Store) error) error
}

// Encode converts a tagged struct into a Document.
func Encode(v any) (Document, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return doc, nil
}

// Decode fills out from a Document.
func Decode(doc Document, out any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}

// DecodeAll decodes a result set into a slice of T.
func DecodeAll[T any](docs []Document) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		var v T
		if err := Decode(d, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
