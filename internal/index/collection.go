package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

// querier is the subset of pgxpool.Pool the index depends on. Defined by
// the consumer so tests can substitute a fake without a live database.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// entry is one row of a collection: the generic persisted shape shared by
// both the catalog and the content collection.
type entry struct {
	id       string
	content  string
	metadata map[string]any
}

// hit is one nearest-neighbor result, ordered by ascending distance.
type hit struct {
	entry
	distance float64
}

// collection is a single pgvector-backed table of
// (id, content, embedding, metadata) rows. The index instantiates it twice:
// once for the course catalog and once for the content chunks.
type collection struct {
	table    string
	db       querier
	embedder ai.Embedder
}

// embed generates embeddings for a batch of texts in one request.
func (c *collection) embed(ctx context.Context, texts []string) ([]pgvector.Vector, error) {
	docs := make([]*ai.Document, len(texts))
	for i, t := range texts {
		docs[i] = ai.DocumentFromText(t, nil)
	}

	resp, err := c.embedder.Embed(ctx, &ai.EmbedRequest{Input: docs})
	if err != nil {
		return nil, fmt.Errorf("generating embeddings: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(resp.Embeddings), len(texts))
	}

	vecs := make([]pgvector.Vector, len(texts))
	for i, e := range resp.Embeddings {
		if len(e.Embedding) == 0 {
			return nil, fmt.Errorf("empty embedding for input %d", i)
		}
		vecs[i] = pgvector.NewVector(e.Embedding)
	}
	return vecs, nil
}

// upsert inserts or replaces entries keyed by id. The embedding for each
// entry is computed over embedTexts[i], which may differ from the stored
// content (the catalog embeds "title by instructor" but stores the title).
func (c *collection) upsert(ctx context.Context, entries []entry, embedTexts []string) error {
	if len(entries) == 0 {
		return nil
	}
	if len(embedTexts) != len(entries) {
		return fmt.Errorf("embed text count mismatch: got %d, want %d", len(embedTexts), len(entries))
	}

	vecs, err := c.embed(ctx, embedTexts)
	if err != nil {
		return unavailable("upserting into "+c.table, err)
	}

	stmt := fmt.Sprintf(`INSERT INTO %s (id, content, embedding, metadata)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET content = EXCLUDED.content,
		    embedding = EXCLUDED.embedding,
		    metadata = EXCLUDED.metadata`, c.table)

	for i, e := range entries {
		meta, err := json.Marshal(e.metadata)
		if err != nil {
			return fmt.Errorf("marshaling metadata for %q: %w", e.id, err)
		}
		if _, err := c.db.Exec(ctx, stmt, e.id, e.content, vecs[i], meta); err != nil {
			return unavailable("upserting into "+c.table, err)
		}
	}
	return nil
}

// query embeds the query text and returns up to limit nearest entries by
// cosine distance, optionally restricted to rows whose metadata contains
// the filter. An empty result is valid and signals no matching content.
func (c *collection) query(ctx context.Context, text string, filter map[string]any, limit int) ([]hit, error) {
	vecs, err := c.embed(ctx, []string{text})
	if err != nil {
		return nil, unavailable("querying "+c.table, err)
	}

	stmt := fmt.Sprintf(`SELECT id, content, metadata, embedding <=> $1 AS distance
		FROM %s`, c.table)
	args := []any{vecs[0]}
	if len(filter) > 0 {
		filterJSON, err := json.Marshal(filter)
		if err != nil {
			return nil, fmt.Errorf("marshaling filter: %w", err)
		}
		stmt += ` WHERE metadata @> $2`
		args = append(args, filterJSON)
	}
	stmt += fmt.Sprintf(` ORDER BY distance LIMIT %d`, limit)

	rows, err := c.db.Query(ctx, stmt, args...)
	if err != nil {
		return nil, unavailable("querying "+c.table, err)
	}
	defer rows.Close()

	var hits []hit
	for rows.Next() {
		var h hit
		var meta []byte
		if err := rows.Scan(&h.id, &h.content, &meta, &h.distance); err != nil {
			return nil, unavailable("scanning "+c.table, err)
		}
		if err := json.Unmarshal(meta, &h.metadata); err != nil {
			return nil, fmt.Errorf("parsing metadata for %q: %w", h.id, err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("querying "+c.table, err)
	}
	return hits, nil
}

// all returns every entry's metadata without touching the embedder.
func (c *collection) all(ctx context.Context) ([]entry, error) {
	rows, err := c.db.Query(ctx, fmt.Sprintf(`SELECT id, content, metadata FROM %s ORDER BY id`, c.table))
	if err != nil {
		return nil, unavailable("listing "+c.table, err)
	}
	defer rows.Close()

	var entries []entry
	for rows.Next() {
		var e entry
		var meta []byte
		if err := rows.Scan(&e.id, &e.content, &meta); err != nil {
			return nil, unavailable("scanning "+c.table, err)
		}
		if err := json.Unmarshal(meta, &e.metadata); err != nil {
			return nil, fmt.Errorf("parsing metadata for %q: %w", e.id, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("listing "+c.table, err)
	}
	return entries, nil
}

// get fetches a single entry's metadata by id. Missing ids return ok=false.
func (c *collection) get(ctx context.Context, id string) (entry, bool, error) {
	var e entry
	var meta []byte
	err := c.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT id, content, metadata FROM %s WHERE id = $1`, c.table), id,
	).Scan(&e.id, &e.content, &meta)
	if errors.Is(err, pgx.ErrNoRows) {
		return entry{}, false, nil
	}
	if err != nil {
		return entry{}, false, unavailable("reading "+c.table, err)
	}
	if err := json.Unmarshal(meta, &e.metadata); err != nil {
		return entry{}, false, fmt.Errorf("parsing metadata for %q: %w", id, err)
	}
	return e, true, nil
}

// count returns the number of entries in the collection.
func (c *collection) count(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRow(ctx, fmt.Sprintf(`SELECT count(*) FROM %s`, c.table)).Scan(&n); err != nil {
		return 0, unavailable("counting "+c.table, err)
	}
	return n, nil
}

// clear removes every entry.
func (c *collection) clear(ctx context.Context) error {
	if _, err := c.db.Exec(ctx, fmt.Sprintf(`DELETE FROM %s`, c.table)); err != nil {
		return unavailable("clearing "+c.table, err)
	}
	return nil
}
