package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/Protocol-Lattice/memory-mcp/src/memory/model"
)

// Neo4jAccessMode controls whether a session is opened for read or write operations.
type Neo4jAccessMode string

const (
	AccessModeWrite Neo4jAccessMode = "write"
	AccessModeRead  Neo4jAccessMode = "read"
)

// Neo4jSessionConfig mirrors the minimal subset of Neo4j session configuration we require.
type Neo4jSessionConfig struct {
	AccessMode   Neo4jAccessMode
	DatabaseName string
}

// neo4jDriver abstracts the Neo4j driver capabilities used by the store so
// tests can supply fakes.
type neo4jDriver interface {
	NewSession(ctx context.Context, config Neo4jSessionConfig) (neo4jSession, error)
	Close(ctx context.Context) error
}

type neo4jSession interface {
	Run(ctx context.Context, query string, params map[string]any) (neo4jResult, error)
	Close(ctx context.Context) error
}

type neo4jResult interface {
	Next(ctx context.Context) bool
	Record() neo4jRecord
	Err() error
	Consume(ctx context.Context) error
}

type neo4jRecord interface {
	Get(key string) (any, bool)
}

// Neo4jStore keeps memories as (:Memory) nodes and searches them through a
// native vector index.
type Neo4jStore struct {
	driver     neo4jDriver
	database   string
	index      string
	dims       int
	oversample int
}

type Neo4jOption func(*Neo4jStore)

// WithNeo4jOversample sets how many index candidates are fetched per
// requested result. Values below 1 keep the default.
func WithNeo4jOversample(n int) Neo4jOption {
	return func(s *Neo4jStore) {
		if n >= 1 {
			s.oversample = n
		}
	}
}

// ErrNeo4jUnavailable is returned when operations are attempted without a configured driver.
var ErrNeo4jUnavailable = errors.New("neo4j driver not configured")

var cypherName = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// DefaultNeo4jOversample widens the ANN candidate set because the user_id
// predicate is applied after the index lookup.
const DefaultNeo4jOversample = 10

const neo4jCloseTimeout = 5 * time.Second

const (
	neo4jCreateQuery = `
CREATE (m:Memory {
  id: $id, user_id: $user_id, content: $content, hash: $hash, metadata: $metadata,
  embedding: $embedding, created_at: $created_at, updated_at: $updated_at
})`
	neo4jSearchQuery = `
CALL db.index.vector.queryNodes($index, $candidates, $embedding) YIELD node AS m, score
WHERE m.user_id = $user_id
RETURN m.id AS id, m.user_id AS user_id, m.content AS content, m.hash AS hash,
       m.metadata AS metadata, m.created_at AS created_at, m.updated_at AS updated_at, score
ORDER BY score DESC
LIMIT $limit`
	neo4jIterateQuery = `
MATCH (m:Memory {user_id: $user_id})
RETURN m.id AS id, m.user_id AS user_id, m.content AS content, m.hash AS hash,
       m.metadata AS metadata, m.created_at AS created_at, m.updated_at AS updated_at
ORDER BY m.created_at ASC, m.id ASC`
	neo4jDeleteQuery = `
MATCH (m:Memory {user_id: $user_id})
DETACH DELETE m
RETURN count(*) AS deleted`
	neo4jCountQuery = `MATCH (m:Memory {user_id: $user_id}) RETURN count(m) AS total`
)

// NewNeo4jStore builds a store on top of a wrapped driver. index names the
// vector index, which CreateSchema creates with dims dimensions.
func NewNeo4jStore(driver neo4jDriver, database, index string, dims int, opts ...Neo4jOption) (*Neo4jStore, error) {
	if driver == nil {
		return nil, ErrNeo4jUnavailable
	}
	if index == "" {
		index = "memory_embeddings"
	}
	if !cypherName.MatchString(index) {
		return nil, fmt.Errorf("neo4j: invalid index name %q", index)
	}
	s := &Neo4jStore{driver: driver, database: database, index: index, dims: dims, oversample: DefaultNeo4jOversample}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Neo4jStore) StoreMemory(ctx context.Context, rec model.MemoryRecord) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	meta, err := json.Marshal(orEmpty(rec.Metadata))
	if err != nil {
		return fmt.Errorf("neo4j: encode metadata: %w", err)
	}
	err = s.exec(ctx, AccessModeWrite, neo4jCreateQuery, map[string]any{
		"id":         rec.ID,
		"user_id":    rec.UserID,
		"content":    rec.Content,
		"hash":       rec.Hash,
		"metadata":   string(meta),
		"embedding":  float64Embedding(rec.Embedding),
		"created_at": rec.CreatedAt.UnixMilli(),
		"updated_at": rec.UpdatedAt.UnixMilli(),
	}, nil)
	return err
}

// SearchMemory queries the shared vector index for limit*oversample
// candidates and keeps only userID's nodes among them. When other users
// dominate the neighbourhood of the query, fewer than limit of userID's
// memories can come back even though more exist; raise the oversample for
// large shared indexes.
func (s *Neo4jStore) SearchMemory(ctx context.Context, userID string, queryEmbedding []float32, limit int) ([]model.MemoryRecord, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}
	var records []model.MemoryRecord
	err := s.exec(ctx, AccessModeRead, neo4jSearchQuery, map[string]any{
		"index":      s.index,
		"candidates": int64(limit * s.oversample),
		"embedding":  float64Embedding(queryEmbedding),
		"user_id":    userID,
		"limit":      int64(limit),
	}, func(r neo4jRecord) bool {
		rec := recordFromNeo4j(r)
		rec.Score = floatValue(r, "score")
		records = append(records, rec)
		return true
	})
	return records, err
}

func (s *Neo4jStore) Iterate(ctx context.Context, userID string, fn func(model.MemoryRecord) bool) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	return s.exec(ctx, AccessModeRead, neo4jIterateQuery, map[string]any{"user_id": userID}, func(r neo4jRecord) bool {
		return fn(recordFromNeo4j(r))
	})
}

func (s *Neo4jStore) DeleteUser(ctx context.Context, userID string) (int, error) {
	if err := requireUser(userID); err != nil {
		return 0, err
	}
	var deleted int
	err := s.exec(ctx, AccessModeWrite, neo4jDeleteQuery, map[string]any{"user_id": userID}, func(r neo4jRecord) bool {
		deleted = int(intValue(r, "deleted"))
		return false
	})
	return deleted, err
}

func (s *Neo4jStore) Count(ctx context.Context, userID string) (int, error) {
	if err := requireUser(userID); err != nil {
		return 0, err
	}
	var total int
	err := s.exec(ctx, AccessModeRead, neo4jCountQuery, map[string]any{"user_id": userID}, func(r neo4jRecord) bool {
		total = int(intValue(r, "total"))
		return false
	})
	return total, err
}

// CreateSchema ensures the id constraint, the user_id index and the vector index.
func (s *Neo4jStore) CreateSchema(ctx context.Context) error {
	if s.dims <= 0 {
		return fmt.Errorf("neo4j: invalid embedding dims %d", s.dims)
	}
	queries := []string{
		"CREATE CONSTRAINT memory_id IF NOT EXISTS FOR (m:Memory) REQUIRE m.id IS UNIQUE",
		"CREATE INDEX memory_user_id IF NOT EXISTS FOR (m:Memory) ON (m.user_id)",
		fmt.Sprintf("CREATE VECTOR INDEX %s IF NOT EXISTS FOR (m:Memory) ON m.embedding "+
			"OPTIONS {indexConfig: {`vector.dimensions`: %d, `vector.similarity_function`: 'cosine'}}", s.index, s.dims),
	}
	for _, q := range queries {
		if err := s.exec(ctx, AccessModeWrite, q, nil, nil); err != nil {
			return fmt.Errorf("neo4j schema: %w", err)
		}
	}
	return nil
}

// Close releases the driver.
func (s *Neo4jStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), neo4jCloseTimeout)
	defer cancel()
	return s.driver.Close(ctx)
}

// exec runs one auto-commit query and streams its records to fn until fn
// returns false. The result is always consumed.
func (s *Neo4jStore) exec(ctx context.Context, mode Neo4jAccessMode, query string, params map[string]any, fn func(neo4jRecord) bool) error {
	session, err := s.driver.NewSession(ctx, Neo4jSessionConfig{AccessMode: mode, DatabaseName: s.database})
	if err != nil {
		return fmt.Errorf("neo4j new session: %w", err)
	}
	defer session.Close(ctx)

	res, err := session.Run(ctx, query, params)
	if err != nil {
		return err
	}
	for fn != nil && res.Next(ctx) {
		if !fn(res.Record()) {
			break
		}
	}
	if err := res.Err(); err != nil {
		return err
	}
	return res.Consume(ctx)
}

func recordFromNeo4j(r neo4jRecord) model.MemoryRecord {
	rec := model.MemoryRecord{
		ID:        stringValue(r, "id"),
		UserID:    stringValue(r, "user_id"),
		Content:   stringValue(r, "content"),
		Hash:      stringValue(r, "hash"),
		CreatedAt: time.UnixMilli(intValue(r, "created_at")).UTC(),
		UpdatedAt: time.UnixMilli(intValue(r, "updated_at")).UTC(),
	}
	rec.Metadata = decodeMetadata(stringValue(r, "metadata"))
	return rec
}

func stringValue(r neo4jRecord, key string) string {
	v, _ := r.Get(key)
	s, _ := v.(string)
	return s
}

func intValue(r neo4jRecord, key string) int64 {
	v, _ := r.Get(key)
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}

func floatValue(r neo4jRecord, key string) float64 {
	v, _ := r.Get(key)
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	}
	return 0
}
