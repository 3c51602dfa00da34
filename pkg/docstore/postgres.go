package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres stores every collection in the documents table (see pkg/database/migrations).
// Filters use JSONB containment, so they are served by the GIN index on body.
type Postgres struct {
	pool *pgxpool.Pool
	q    querier
}

// NewPostgres creates a Postgres-backed store.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool, q: pool}
}

func (p *Postgres) Find(ctx context.Context, coll string, f Filter) ([]Document, error) {
	fj, err := filterJSON(f)
	if err != nil {
		return nil, err
	}
	rows, err := p.q.Query(ctx, `SELECT body FROM documents WHERE collection = $1 AND body @> $2::jsonb ORDER BY seq`, coll, fj)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", coll, err)
	}
	defer rows.Close()
	var out []Document
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("find %s: %w", coll, err)
		}
		doc, err := unmarshalDoc(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func (p *Postgres) FindOne(ctx context.Context, coll string, f Filter) (Document, error) {
	fj, err := filterJSON(f)
	if err != nil {
		return nil, err
	}
	var raw []byte
	err = p.q.QueryRow(ctx, `SELECT body FROM documents WHERE collection = $1 AND body @> $2::jsonb ORDER BY seq LIMIT 1`, coll, fj).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find one %s: %w", coll, err)
	}
	return unmarshalDoc(raw)
}

func (p *Postgres) Lock(ctx context.Context, coll string, f Filter) (Document, error) {
	fj, err := filterJSON(f)
	if err != nil {
		return nil, err
	}
	var raw []byte
	err = p.q.QueryRow(ctx, `SELECT body FROM documents WHERE collection = $1 AND body @> $2::jsonb ORDER BY seq LIMIT 1 FOR UPDATE`, coll, fj).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", coll, err)
	}
	return unmarshalDoc(raw)
}

func (p *Postgres) InsertOne(ctx context.Context, coll string, doc Document) (string, error) {
	cp := Document{}
	for k, v := range doc {
		cp[k] = v
	}
	if cp.ID() == "" {
		cp[IDField] = uuid.NewString()
	}
	body, err := json.Marshal(cp)
	if err != nil {
		return "", fmt.Errorf("insert %s: %w", coll, err)
	}
	if _, err := p.q.Exec(ctx, `INSERT INTO documents (collection, id, body) VALUES ($1, $2, $3::jsonb)`, coll, cp.ID(), body); err != nil {
		return "", mapWriteErr(coll, "insert", err)
	}
	return cp.ID(), nil
}

func (p *Postgres) UpdateOne(ctx context.Context, coll string, f Filter, u Update, upsert bool) (UpdateResult, error) {
	_, err := p.FindOneAndUpdate(ctx, coll, f, u)
	if err == nil {
		return UpdateResult{Matched: 1}, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return UpdateResult{}, err
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
	if doc.ID() == "" {
		doc[IDField] = uuid.NewString()
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("upsert %s: %w", coll, err)
	}
	// A concurrent upsert of the same id makes this insert a no-op; the row it committed is then
	// updated instead.
	tag, err := p.q.Exec(ctx, `INSERT INTO documents (collection, id, body) VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (collection, id) DO NOTHING`, coll, doc.ID(), body)
	if err != nil {
		return UpdateResult{}, mapWriteErr(coll, "upsert", err)
	}
	if tag.RowsAffected() == 1 {
		return UpdateResult{UpsertedID: doc.ID()}, nil
	}
	if _, err := p.FindOneAndUpdate(ctx, coll, f, u); err != nil {
		return UpdateResult{}, err
	}
	return UpdateResult{Matched: 1}, nil
}

// FindOneAndUpdate locks the first matching row and rewrites its body in one statement.
// Increments are computed from the locked row, so concurrent increments never lose updates.
func (p *Postgres) FindOneAndUpdate(ctx context.Context, coll string, f Filter, u Update) (Document, error) {
	fj, err := filterJSON(f)
	if err != nil {
		return nil, err
	}
	set, err := json.Marshal(nonNil(u.Set))
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", coll, err)
	}
	args := []any{coll, fj, set}
	expr := "d.body || $3::jsonb"
	for field, delta := range u.Inc {
		args = append(args, field, delta)
		k, v := len(args)-1, len(args)
		expr = fmt.Sprintf("jsonb_set(%s, ARRAY[$%d::text], to_jsonb(COALESCE((d.body->>$%d::text)::numeric, 0) + $%d::numeric))", expr, k, k, v)
	}
	q := `WITH target AS (
			SELECT id FROM documents WHERE collection = $1 AND body @> $2::jsonb ORDER BY seq LIMIT 1 FOR UPDATE
		)
		UPDATE documents d SET body = ` + expr + `
		FROM target WHERE d.collection = $1 AND d.id = target.id
		RETURNING d.body`
	var raw []byte
	err = p.q.QueryRow(ctx, q, args...).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, mapWriteErr(coll, "update", err)
	}
	return unmarshalDoc(raw)
}

func (p *Postgres) DeleteOne(ctx context.Context, coll string, f Filter) (int64, error) {
	fj, err := filterJSON(f)
	if err != nil {
		return 0, err
	}
	tag, err := p.q.Exec(ctx, `DELETE FROM documents WHERE collection = $1 AND id = (
		SELECT id FROM documents WHERE collection = $1 AND body @> $2::jsonb ORDER BY seq LIMIT 1)`, coll, fj)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", coll, err)
	}
	return tag.RowsAffected(), nil
}

func (p *Postgres) DeleteMany(ctx context.Context, coll string, f Filter) (int64, error) {
	fj, err := filterJSON(f)
	if err != nil {
		return 0, err
	}
	tag, err := p.q.Exec(ctx, `DELETE FROM documents WHERE collection = $1 AND body @> $2::jsonb`, coll, fj)
	if err != nil {
		return 0, fmt.Errorf("delete many %s: %w", coll, err)
	}
	return tag.RowsAffected(), nil
}

func (p *Postgres) Count(ctx context.Context, coll string, f Filter) (int64, error) {
	fj, err := filterJSON(f)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := p.q.QueryRow(ctx, `SELECT COUNT(*) FROM documents WHERE collection = $1 AND body @> $2::jsonb`, coll, fj).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", coll, err)
	}
	return n, nil
}

func (p *Postgres) Sum(ctx context.Context, coll, field string, f Filter) (float64, error) {
	fj, err := filterJSON(f)
	if err != nil {
		return 0, err
	}
	var total float64
	const q = `SELECT COALESCE(SUM((body->>$2::text)::numeric), 0)::float8 FROM documents
		WHERE collection = $1 AND body @> $3::jsonb AND jsonb_typeof(body->$2::text) = 'number'`
	if err := p.q.QueryRow(ctx, q, coll, field, fj).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum %s.%s: %w", coll, field, err)
	}
	return total, nil
}

func (p *Postgres) WithTx(ctx context.Context, fn func(tx Store) error) error {
	if _, inTx := p.q.(pgx.Tx); inTx {
		return fn(p)
	}
	return pgx.BeginTxFunc(ctx, p.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return fn(&Postgres{pool: p.pool, q: tx})
	})
}

func filterJSON(f Filter) ([]byte, error) {
	raw, err := json.Marshal(nonNil(f))
	if err != nil {
		return nil, fmt.Errorf("docstore: encode filter: %w", err)
	}
	return raw, nil
}

func nonNil[M ~map[string]any](m M) M {
	if m == nil {
		return M{}
	}
	return m
}

func unmarshalDoc(raw []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("docstore: decode body: %w", err)
	}
	return doc, nil
}

func mapWriteErr(coll, op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s (%s)", ErrDuplicate, coll, pgErr.ConstraintName)
	}
	return fmt.Errorf("%s %s: %w", op, coll, err)
}

var _ Store = (*Postgres)(nil)
var _ Store = (*Memory)(nil)
