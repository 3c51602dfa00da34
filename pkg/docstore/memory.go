package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sync"

	"github.com/google/uuid"
)

// UniqueKey declares a field whose value must be unique within a collection.
type UniqueKey struct {
	Collection string
	Field      string
}

// Memory is an in-process Store. A single mutex serializes all operations, so every operation
// and every WithTx body is linearizable.
type Memory struct {
	mu    sync.Mutex
	state *memState
}

// NewMemory returns an empty in-memory store enforcing the given unique keys.
func NewMemory(uniques ...UniqueKey) *Memory {
	return &Memory{state: &memState{colls: map[string][]Document{}, uniques: uniques}}
}

func (m *Memory) Find(ctx context.Context, coll string, f Filter) ([]Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.find(coll, f)
}

func (m *Memory) FindOne(ctx context.Context, coll string, f Filter) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.findOne(coll, f)
}

// Lock is FindOne: WithTx already holds the store lock for the whole body.
func (m *Memory) Lock(ctx context.Context, coll string, f Filter) (Document, error) {
	return m.FindOne(ctx, coll, f)
}

func (m *Memory) InsertOne(ctx context.Context, coll string, doc Document) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.insertOne(coll, doc)
}

func (m *Memory) UpdateOne(ctx context.Context, coll string, f Filter, u Update, upsert bool) (UpdateResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.updateOne(coll, f, u, upsert)
}

func (m *Memory) FindOneAndUpdate(ctx context.Context, coll string, f Filter, u Update) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.findOneAndUpdate(coll, f, u)
}

func (m *Memory) DeleteOne(ctx context.Context, coll string, f Filter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.delete(coll, f, 1)
}

func (m *Memory) DeleteMany(ctx context.Context, coll string, f Filter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.delete(coll, f, -1)
}

func (m *Memory) Count(ctx context.Context, coll string, f Filter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	docs, err := m.state.find(coll, f)
	return int64(len(docs)), err
}

func (m *Memory) Sum(ctx context.Context, coll, field string, f Filter) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.sum(coll, field, f)
}

// WithTx holds the store lock for the whole of fn and restores a snapshot if fn fails.
func (m *Memory) WithTx(ctx context.Context, fn func(tx Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := m.state.clone()
	if err := fn(&memTx{state: m.state}); err != nil {
		m.state.colls = snapshot.colls
		return err
	}
	return nil
}

// memTx is the lock-free view handed to WithTx bodies.
type memTx struct {
	state *memState
}

func (t *memTx) Find(ctx context.Context, coll string, f Filter) ([]Document, error) {
	return t.state.find(coll, f)
}

func (t *memTx) FindOne(ctx context.Context, coll string, f Filter) (Document, error) {
	return t.state.findOne(coll, f)
}

func (t *memTx) Lock(ctx context.Context, coll string, f Filter) (Document, error) {
	return t.state.findOne(coll, f)
}

func (t *memTx) InsertOne(ctx context.Context, coll string, doc Document) (string, error) {
	return t.state.insertOne(coll, doc)
}

func (t *memTx) UpdateOne(ctx context.Context, coll string, f Filter, u Update, upsert bool) (UpdateResult, error) {
	return t.state.updateOne(coll, f, u, upsert)
}

func (t *memTx) FindOneAndUpdate(ctx context.Context, coll string, f Filter, u Update) (Document, error) {
	return t.state.findOneAndUpdate(coll, f, u)
}

func (t *memTx) DeleteOne(ctx context.Context, coll string, f Filter) (int64, error) {
	return t.state.delete(coll, f, 1)
}

func (t *memTx) DeleteMany(ctx context.Context, coll string, f Filter) (int64, error) {
	return t.state.delete(coll, f, -1)
}

func (t *memTx) Count(ctx context.Context, coll string, f Filter) (int64, error) {
	docs, err := t.state.find(coll, f)
	return int64(len(docs)), err
}

func (t *memTx) Sum(ctx context.Context, coll, field string, f Filter) (float64, error) {
	return t.state.sum(coll, field, f)
}

func (t *memTx) WithTx(ctx context.Context, fn func(tx Store) error) error {
	return fn(t)
}

type memState struct {
	colls   map[string][]Document
	uniques []UniqueKey
}

func (s *memState) clone() *memState {
	out := &memState{colls: make(map[string][]Document, len(s.colls)), uniques: s.uniques}
	for name, docs := range s.colls {
		cp := make([]Document, len(docs))
		for i, d := range docs {
			cp[i] = copyDoc(d)
		}
		out.colls[name] = cp
	}
	return out
}

func (s *memState) find(coll string, f Filter) ([]Document, error) {
	nf, err := normalize(f)
	if err != nil {
		return nil, err
	}
	var out []Document
	for _, d := range s.colls[coll] {
		if matches(d, nf) {
			out = append(out, copyDoc(d))
		}
	}
	return out, nil
}

func (s *memState) findOne(coll string, f Filter) (Document, error) {
	i, err := s.index(coll, f)
	if err != nil {
		return nil, err
	}
	if i < 0 {
		return nil, ErrNotFound
	}
	return copyDoc(s.colls[coll][i]), nil
}

func (s *memState) index(coll string, f Filter) (int, error) {
	nf, err := normalize(f)
	if err != nil {
		return -1, err
	}
	for i, d := range s.colls[coll] {
		if matches(d, nf) {
			return i, nil
		}
	}
	return -1, nil
}

func (s *memState) insertOne(coll string, doc Document) (string, error) {
	nd, err := normalize(doc)
	if err != nil {
		return "", err
	}
	if nd.ID() == "" {
		nd[IDField] = uuid.NewString()
	}
	if err := s.checkUnique(coll, nd, -1); err != nil {
		return "", err
	}
	s.colls[coll] = append(s.colls[coll], nd)
	return nd.ID(), nil
}

func (s *memState) checkUnique(coll string, doc Document, skip int) error {
	keys := []string{IDField}
	for _, u := range s.uniques {
		if u.Collection == coll {
			keys = append(keys, u.Field)
		}
	}
	for _, key := range keys {
		v, ok := doc[key]
		if !ok {
			continue
		}
		for i, other := range s.colls[coll] {
			if i != skip && reflect.DeepEqual(other[key], v) {
				return fmt.Errorf("%w: %s.%s", ErrDuplicate, coll, key)
			}
		}
	}
	return nil
}

func (s *memState) updateOne(coll string, f Filter, u Update, upsert bool) (UpdateResult, error) {
	i, err := s.index(coll, f)
	if err != nil {
		return UpdateResult{}, err
	}
	if i >= 0 {
		if err := s.apply(coll, i, u); err != nil {
			return UpdateResult{}, err
		}
		return UpdateResult{Matched: 1}, nil
	}
	if !upsert {
		return UpdateResult{}, nil
	}
	doc := Document{}
	for k, v := range f {
		doc[k] = v
	}
	for k, v := range u.SetOnInsert {
		doc[k] = v
	}
	for k, v := range u.Set {
		doc[k] = v
	}
	for k, v := range u.Inc {
		doc[k] = v
	}
	id, err := s.insertOne(coll, doc)
	if err != nil {
		return UpdateResult{}, err
	}
	return UpdateResult{UpsertedID: id}, nil
}

func (s *memState) findOneAndUpdate(coll string, f Filter, u Update) (Document, error) {
	i, err := s.index(coll, f)
	if err != nil {
		return nil, err
	}
	if i < 0 {
		return nil, ErrNotFound
	}
	if err := s.apply(coll, i, u); err != nil {
		return nil, err
	}
	return copyDoc(s.colls[coll][i]), nil
}

func (s *memState) apply(coll string, i int, u Update) error {
	set, err := normalize(u.Set)
	if err != nil {
		return err
	}
	next := copyDoc(s.colls[coll][i])
	for k, v := range set {
		next[k] = v
	}
	for k, delta := range u.Inc {
		cur, _ := next[k].(float64)
		next[k] = cur + float64(delta)
	}
	if err := s.checkUnique(coll, next, i); err != nil {
		return err
	}
	s.colls[coll][i] = next
	return nil
}

func (s *memState) delete(coll string, f Filter, limit int) (int64, error) {
	nf, err := normalize(f)
	if err != nil {
		return 0, err
	}
	var kept []Document
	var n int64
	for _, d := range s.colls[coll] {
		if (limit < 0 || n < int64(limit)) && matches(d, nf) {
			n++
			continue
		}
		kept = append(kept, d)
	}
	s.colls[coll] = kept
	return n, nil
}

func (s *memState) sum(coll, field string, f Filter) (float64, error) {
	docs, err := s.find(coll, f)
	if err != nil {
		return 0, err
	}
	var total float64
	for _, d := range docs {
		if v, ok := d[field].(float64); ok {
			total += v
		}
	}
	return total, nil
}

func matches(d Document, f map[string]any) bool {
	for k, want := range f {
		if !reflect.DeepEqual(d[k], want) {
			return false
		}
	}
	return true
}

// normalize round-trips through JSON so values compare the way they will after storage
// (numbers become float64, structs become maps).
func normalize[M ~map[string]any](m M) (Document, error) {
	if m == nil {
		return Document{}, nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("docstore: normalize: %w", err)
	}
	var out Document
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("docstore: normalize: %w", err)
	}
	return out, nil
}

func copyDoc(d Document) Document {
	out, _ := normalize(d)
	return out
}
