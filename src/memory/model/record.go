package model

import (
	"crypto/md5"
	"encoding/hex"
	"maps"
	"time"
)

// MemoryRecord is one stored memory, always owned by exactly one user.
type MemoryRecord struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Content   string         `json:"memory"`
	Hash      string         `json:"hash,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Embedding []float32      `json:"-"`
	Score     float64        `json:"score,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at,omitzero"`
}

// Clone returns a copy that shares no slices or maps with r.
func (r MemoryRecord) Clone() MemoryRecord {
	r.Metadata = CloneMetadata(r.Metadata)
	if r.Embedding != nil {
		r.Embedding = append([]float32(nil), r.Embedding...)
	}
	return r
}

// ContentHash is the md5 hex digest used to spot duplicate memories.
func ContentHash(content string) string {
	sum := md5.Sum([]byte(content))
	return hex.EncodeToString(sum[:])
}

func CloneMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return nil
	}
	return maps.Clone(meta)
}
