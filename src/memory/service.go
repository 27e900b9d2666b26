// Package memory stores, searches and deletes per-user memories on top of an
// embedder and a vector store.
package memory

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Protocol-Lattice/memory-mcp/src/concurrent"
	"github.com/Protocol-Lattice/memory-mcp/src/memory/embed"
	"github.com/Protocol-Lattice/memory-mcp/src/memory/model"
	"github.com/Protocol-Lattice/memory-mcp/src/memory/store"
	"github.com/Protocol-Lattice/memory-mcp/src/models"
)

// DefaultSearchLimit applies when a search asks for zero or fewer results.
const DefaultSearchLimit = 3

// embedConcurrency bounds parallel embedding of extracted facts.
const embedConcurrency = 4

// Service is safe for concurrent use; it holds no per-request state.
type Service struct {
	embedder    embed.Embedder
	store       store.VectorStore
	llm         models.LLM
	logger      *slog.Logger
	searchLimit int
	now         func() time.Time
	newID       func() string
}

type Option func(*Service)

// WithFactExtraction turns each saved text into LLM-extracted facts, each
// stored as its own memory. Facts already stored for the user are skipped.
func WithFactExtraction(llm models.LLM) Option {
	return func(s *Service) { s.llm = llm }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithDefaultSearchLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.searchLimit = n
		}
	}
}

func NewService(embedder embed.Embedder, vs store.VectorStore, opts ...Option) *Service {
	s := &Service{
		embedder:    embedder,
		store:       vs,
		logger:      slog.Default(),
		searchLimit: DefaultSearchLimit,
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add stores text for userID and returns the records written. Without fact
// extraction exactly one record is written.
func (s *Service) Add(ctx context.Context, userID, text string, metadata map[string]any) ([]model.MemoryRecord, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUserRequired
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}

	facts := []string{text}
	if s.llm != nil {
		extracted, err := s.extract(ctx, userID, text)
		if err != nil {
			return nil, err
		}
		facts = extracted
	}

	vecs, err := concurrent.Map(ctx, facts, embedConcurrency, s.embedder.Embed)
	if err != nil {
		return nil, upstream("embed", err)
	}

	written := make([]model.MemoryRecord, 0, len(facts))
	for i, fact := range facts {
		now := s.now()
		rec := model.MemoryRecord{
			ID:        s.newID(),
			UserID:    userID,
			Content:   fact,
			Hash:      model.ContentHash(fact),
			Metadata:  model.CloneMetadata(metadata),
			Embedding: vecs[i],
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.store.StoreMemory(ctx, rec); err != nil {
			return written, upstream("store", err)
		}
		rec.Embedding = nil
		written = append(written, rec)
	}
	s.logger.DebugContext(ctx, "memories added", "count", len(written))
	return written, nil
}

// extract falls back to the raw text when the model yields no usable facts,
// and drops facts the user already has.
func (s *Service) extract(ctx context.Context, userID, text string) ([]string, error) {
	out, err := s.llm.Generate(ctx, factPrompt(text))
	if err != nil {
		return nil, upstream("extract", err)
	}
	facts := parseFacts(out)
	if len(facts) == 0 {
		s.logger.WarnContext(ctx, "fact extraction returned nothing usable, storing raw text")
		return []string{text}, nil
	}

	seen := make(map[string]struct{})
	err = s.store.Iterate(ctx, userID, func(rec model.MemoryRecord) bool {
		seen[rec.Hash] = struct{}{}
		return true
	})
	if err != nil {
		return nil, upstream("iterate", err)
	}
	fresh := facts[:0]
	for _, f := range facts {
		h := model.ContentHash(f)
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		fresh = append(fresh, f)
	}
	return fresh, nil
}

// Search returns the user's memories most similar to query, best first.
func (s *Service) Search(ctx context.Context, userID, query string, limit int) ([]model.MemoryRecord, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUserRequired
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyText
	}
	if limit <= 0 {
		limit = s.searchLimit
	}
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, upstream("embed", err)
	}
	recs, err := s.store.SearchMemory(ctx, userID, vec, limit)
	if err != nil {
		return nil, upstream("search", err)
	}
	for i := range recs {
		recs[i].Embedding = nil
	}
	return recs, nil
}

// GetAll returns every memory of the user, oldest first.
func (s *Service) GetAll(ctx context.Context, userID string) ([]model.MemoryRecord, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUserRequired
	}
	var recs []model.MemoryRecord
	err := s.store.Iterate(ctx, userID, func(rec model.MemoryRecord) bool {
		rec.Embedding = nil
		recs = append(recs, rec)
		return true
	})
	if err != nil {
		return nil, upstream("iterate", err)
	}
	return recs, nil
}

// DeleteAll removes every memory of the user and reports how many went.
func (s *Service) DeleteAll(ctx context.Context, userID string) (int, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, ErrUserRequired
	}
	n, err := s.store.DeleteUser(ctx, userID)
	if err != nil {
		return 0, upstream("delete", err)
	}
	s.logger.InfoContext(ctx, "memories deleted", "count", n)
	return n, nil
}
