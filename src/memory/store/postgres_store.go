package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Protocol-Lattice/memory-mcp/src/memory/model"
)

// PostgresStore implements VectorStore using Postgres + pgvector.
type PostgresStore struct {
	DB      *pgxpool.Pool
	dims    int
	queries postgresQueries
}

type postgresQueries struct {
	insert, search, iterate, deleteUser, count, schema string
}

// NewPostgresStore connects to Postgres and returns a Postgres-backed VectorStore implementation.
func NewPostgresStore(ctx context.Context, connStr, table string, dims int) (*PostgresStore, error) {
	if connStr == "" {
		return nil, errors.New("postgres connection string is required")
	}
	if dims <= 0 {
		return nil, fmt.Errorf("postgres: invalid embedding dims %d", dims)
	}
	db, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping Postgres: %w", err)
	}
	return &PostgresStore{DB: db, dims: dims, queries: buildPostgresQueries(table, dims)}, nil
}

func buildPostgresQueries(table string, dims int) postgresQueries {
	if table == "" {
		table = "memories"
	}
	t := pgx.Identifier{table}.Sanitize()
	idx := func(suffix string) string { return pgx.Identifier{table + suffix}.Sanitize() }
	return postgresQueries{
		insert: fmt.Sprintf(`
                INSERT INTO %s (id, user_id, content, hash, metadata, embedding, created_at, updated_at)
                VALUES ($1, $2, $3, $4, $5::jsonb, $6::vector, $7, $8)`, t),
		search: fmt.Sprintf(`
        SELECT id, user_id, content, hash, metadata::text, created_at, updated_at, 1 - (embedding <=> $2::vector) AS score
        FROM %s
        WHERE user_id = $1
        ORDER BY embedding <=> $2::vector
        LIMIT $3`, t),
		iterate: fmt.Sprintf(`
        SELECT id, user_id, content, hash, metadata::text, created_at, updated_at
        FROM %s
        WHERE user_id = $1
        ORDER BY created_at ASC, id ASC`, t),
		deleteUser: fmt.Sprintf(`DELETE FROM %s WHERE user_id = $1`, t),
		count:      fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE user_id = $1`, t),
		schema: fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS %[1]s (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    content TEXT NOT NULL,
    hash TEXT NOT NULL DEFAULT '',
    metadata JSONB,
    embedding vector(%[2]d),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS %[3]s ON %[1]s (user_id, created_at);
CREATE INDEX IF NOT EXISTS %[4]s ON %[1]s USING hnsw (embedding vector_cosine_ops);
`, t, dims, idx("_user_idx"), idx("_embedding_idx")),
	}
}

// StoreMemory inserts a long-term record into Postgres.
func (ps *PostgresStore) StoreMemory(ctx context.Context, rec model.MemoryRecord) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	if len(rec.Embedding) != ps.dims {
		return fmt.Errorf("postgres: embedding has %d dims, table expects %d", len(rec.Embedding), ps.dims)
	}
	meta, err := json.Marshal(orEmpty(rec.Metadata))
	if err != nil {
		return fmt.Errorf("postgres: encode metadata: %w", err)
	}
	_, err = ps.DB.Exec(ctx, ps.queries.insert,
		rec.ID, rec.UserID, rec.Content, rec.Hash, string(meta), vectorLiteral(rec.Embedding), rec.CreatedAt, rec.UpdatedAt)
	return err
}

// SearchMemory returns the user's top-k memories by cosine similarity.
func (ps *PostgresStore) SearchMemory(ctx context.Context, userID string, queryEmbedding []float32, limit int) ([]model.MemoryRecord, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}
	rows, err := ps.DB.Query(ctx, ps.queries.search, userID, vectorLiteral(queryEmbedding), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.MemoryRecord
	for rows.Next() {
		var (
			rec  model.MemoryRecord
			meta string
		)
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Content, &rec.Hash, &meta, &rec.CreatedAt, &rec.UpdatedAt, &rec.Score); err != nil {
			return nil, err
		}
		rec.Metadata = decodeMetadata(meta)
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (ps *PostgresStore) Iterate(ctx context.Context, userID string, fn func(model.MemoryRecord) bool) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	rows, err := ps.DB.Query(ctx, ps.queries.iterate, userID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			rec  model.MemoryRecord
			meta string
		)
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Content, &rec.Hash, &meta, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return err
		}
		rec.Metadata = decodeMetadata(meta)
		if !fn(rec) {
			break
		}
	}
	return rows.Err()
}

func (ps *PostgresStore) DeleteUser(ctx context.Context, userID string) (int, error) {
	if err := requireUser(userID); err != nil {
		return 0, err
	}
	tag, err := ps.DB.Exec(ctx, ps.queries.deleteUser, userID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (ps *PostgresStore) Count(ctx context.Context, userID string) (int, error) {
	if err := requireUser(userID); err != nil {
		return 0, err
	}
	var count int
	err := ps.DB.QueryRow(ctx, ps.queries.count, userID).Scan(&count)
	return count, err
}

// CreateSchema ensures the pgvector extension, table and indexes exist.
func (ps *PostgresStore) CreateSchema(ctx context.Context) error {
	if _, err := ps.DB.Exec(ctx, ps.queries.schema); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

// Close releases the underlying Postgres connection pool.
func (ps *PostgresStore) Close() error {
	if ps == nil || ps.DB == nil {
		return nil
	}
	ps.DB.Close()
	return nil
}

// vectorLiteral renders vec in pgvector's text input format.
func vectorLiteral(vec []float32) string {
	var b strings.Builder
	b.Grow(len(vec)*10 + 2)
	b.WriteByte('[')
	for i, v := range vec {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

func decodeMetadata(raw string) map[string]any {
	if raw == "" || raw == "null" {
		return nil
	}
	var meta map[string]any
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return nil
	}
	return meta
}

func orEmpty(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return meta
}
