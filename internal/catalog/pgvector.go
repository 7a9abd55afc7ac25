package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

const defaultSearchLimit = 100

// PgVectorCatalog implements Provider backed by Postgres + pgvector.
type PgVectorCatalog struct {
	db        *sql.DB
	dimension int
}

// NewPgVectorCatalog connects to Postgres (with pgvector) and ensures the table exists.
func NewPgVectorCatalog(dsn string, dimension int) (*PgVectorCatalog, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return NewPgVectorCatalogFromDB(db, dimension)
}

// NewPgVectorCatalogFromDB reuses an existing *sql.DB.
func NewPgVectorCatalogFromDB(db *sql.DB, dimension int) (*PgVectorCatalog, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if dimension <= 0 {
		dimension = 768
	}
	c := &PgVectorCatalog{db: db, dimension: dimension}
	if err := c.ensureTables(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *PgVectorCatalog) ensureTables() error {
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS learning_resources (
  id            text PRIMARY KEY,
  title         text NOT NULL,
  resource_type text NOT NULL,
  description   text,
  embedding     vector(%d),
  updated_at    timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS learning_resources_type_idx ON learning_resources (resource_type);
CREATE INDEX IF NOT EXISTS learning_resources_embedding_idx ON learning_resources USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);
`, c.dimension)
	_, err := c.db.Exec(ddl)
	return err
}

func (c *PgVectorCatalog) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Search returns candidates ordered by cosine similarity descending,
// keeping only rows at or above the shared minimum floor. The category
// tag is accepted for interface parity; the relational catalog ranks
// all resource types in one pass and leaves category policy to the caller.
func (c *PgVectorCatalog) Search(ctx context.Context, embedding []float32, minSimilarity float64, _ string, limit int) ([]Candidate, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	embLit, err := toVectorLiteral(embedding, c.dimension)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
SELECT id, title, resource_type, 1 - (embedding <=> $1::vector) AS similarity
FROM learning_resources
WHERE 1 - (embedding <=> $1::vector) >= $2
ORDER BY embedding <=> $1::vector
LIMIT %d;
`, limit)

	rows, err := c.db.QueryContext(ctx, query, embLit, minSimilarity)
	if err != nil {
		return nil, fmt.Errorf("catalog search: %w", err)
	}
	defer rows.Close()

	var results []Candidate
	for rows.Next() {
		var cand Candidate
		if err := rows.Scan(&cand.ID, &cand.Title, &cand.Type, &cand.Similarity); err != nil {
			return nil, err
		}
		results = append(results, cand)
	}
	return results, rows.Err()
}

// UpsertResources inserts or updates catalog rows with their embeddings.
func (c *PgVectorCatalog) UpsertResources(ctx context.Context, resources []Resource) error {
	if len(resources) == 0 {
		return nil
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt := `
INSERT INTO learning_resources (id, title, resource_type, description, embedding, updated_at)
 VALUES ($1,$2,$3,$4,$5,$6)
 ON CONFLICT (id) DO UPDATE SET
   title=EXCLUDED.title,
   resource_type=EXCLUDED.resource_type,
   description=EXCLUDED.description,
   embedding=EXCLUDED.embedding,
   updated_at=now();
`
	for _, r := range resources {
		embLit, err := toVectorLiteral(r.Embedding, c.dimension)
		if err != nil {
			return fmt.Errorf("resource %s: %w", r.ID, err)
		}
		if _, err := tx.ExecContext(ctx, stmt,
			r.ID, r.Title, r.Type, r.Description, embLit, time.Now().UTC(),
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func toVectorLiteral(embedding []float32, dim int) (string, error) {
	if len(embedding) == 0 {
		return "", errors.New("embedding is required")
	}
	if dim > 0 && len(embedding) != dim {
		return "", fmt.Errorf("embedding length %d does not match dimension %d", len(embedding), dim)
	}
	parts := make([]string, len(embedding))
	for i, v := range embedding {
		parts[i] = strconv.FormatFloat(float64(v), 'f', -1, 32)
	}
	return fmt.Sprintf("[%s]", strings.Join(parts, ",")), nil
}
