package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createDocumentsTable = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT        NOT NULL,
	id         TEXT        NOT NULL,
	data       JSONB       NOT NULL DEFAULT '{}'::jsonb,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (collection, id)
)`

// Postgres is a Store over a single JSONB documents table.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to databaseURL and ensures the documents table exists.
func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	// Connection pool settings
	config.MaxConns = 10
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, createDocumentsTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create documents table: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

// Get implements Store.
func (p *Postgres) Get(ctx context.Context, ref Ref) (Document, error) {
	var raw []byte
	err := p.pool.QueryRow(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND id = $2`,
		ref.Collection, ref.ID,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", ref, err)
	}
	return decodeDocument(raw)
}

// Set implements Store.
func (p *Postgres) Set(ctx context.Context, ref Ref, doc Document, merge bool) error {
	data, err := encodeDocument(doc)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`
	if merge {
		query = `
		INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (collection, id) DO UPDATE SET data = documents.data || EXCLUDED.data, updated_at = now()`
	}

	if _, err := p.pool.Exec(ctx, query, ref.Collection, ref.ID, data); err != nil {
		return fmt.Errorf("set %s: %w", ref, err)
	}
	return nil
}

// Create implements Store.
func (p *Postgres) Create(ctx context.Context, ref Ref, doc Document) error {
	data, err := encodeDocument(doc)
	if err != nil {
		return err
	}

	tag, err := p.pool.Exec(ctx, `
		INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (collection, id) DO NOTHING`,
		ref.Collection, ref.ID, data,
	)
	if err != nil {
		return fmt.Errorf("create %s: %w", ref, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyExists
	}
	return nil
}

// Delete implements Store.
func (p *Postgres) Delete(ctx context.Context, ref Ref) error {
	if _, err := p.pool.Exec(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`,
		ref.Collection, ref.ID,
	); err != nil {
		return fmt.Errorf("delete %s: %w", ref, err)
	}
	return nil
}

// List implements Store. Entries are ordered by id.
func (p *Postgres) List(ctx context.Context, collection string, opts ListOptions) ([]Entry, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 1000
	}

	rows, err := p.pool.Query(ctx,
		`SELECT id, data FROM documents WHERE collection = $1 ORDER BY id LIMIT $2`,
		collection, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("list %s: %w", collection, err)
		}
		doc, err := decodeDocument(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, Entry{ID: id, Data: doc})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	return out, nil
}

// ArrayUnion implements Store. jsonb equality is structural, so an element
// equal to value in every field is never duplicated.
func (p *Postgres) ArrayUnion(ctx context.Context, ref Ref, field string, value any) error {
	el, err := encodeValue(value)
	if err != nil {
		return err
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO documents (collection, id, data)
		VALUES ($1, $2, jsonb_build_object($3::text, jsonb_build_array($4::jsonb)))
		ON CONFLICT (collection, id) DO UPDATE SET
			data = jsonb_set(
				documents.data,
				ARRAY[$3::text],
				CASE
					WHEN jsonb_typeof(documents.data -> $3::text) <> 'array' OR documents.data -> $3::text IS NULL
						THEN jsonb_build_array($4::jsonb)
					WHEN EXISTS (
						SELECT 1 FROM jsonb_array_elements(documents.data -> $3::text) AS e WHERE e = $4::jsonb
					) THEN documents.data -> $3::text
					ELSE (documents.data -> $3::text) || jsonb_build_array($4::jsonb)
				END,
				true
			),
			updated_at = now()`,
		ref.Collection, ref.ID, field, el,
	)
	if err != nil {
		return fmt.Errorf("array union %s.%s: %w", ref, field, err)
	}
	return nil
}

// ArrayRemove implements Store.
func (p *Postgres) ArrayRemove(ctx context.Context, ref Ref, field string, value any) error {
	el, err := encodeValue(value)
	if err != nil {
		return err
	}

	tag, err := p.pool.Exec(ctx, `
		UPDATE documents SET
			data = jsonb_set(
				data,
				ARRAY[$3::text],
				COALESCE((
					SELECT jsonb_agg(e)
					FROM jsonb_array_elements(
						CASE WHEN jsonb_typeof(data -> $3::text) = 'array' THEN data -> $3::text ELSE '[]'::jsonb END
					) AS e
					WHERE e <> $4::jsonb
				), '[]'::jsonb),
				true
			),
			updated_at = now()
		WHERE collection = $1 AND id = $2`,
		ref.Collection, ref.ID, field, el,
	)
	if err != nil {
		return fmt.Errorf("array remove %s.%s: %w", ref, field, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Ping implements Store.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close implements Store.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func encodeDocument(doc Document) (string, error) {
	if doc == nil {
		doc = Document{}
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	return string(data), nil
}

func encodeValue(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode value: %w", err)
	}
	return string(data), nil
}

func decodeDocument(raw []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if doc == nil {
		doc = Document{}
	}
	return doc, nil
}
