package store

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVectorLiteral(t *testing.T) {
	assert.Equal(t, "[]", vectorLiteral(nil))
	assert.Equal(t, "[1,-0.5,0.25]", vectorLiteral([]float32{1, -0.5, 0.25}))
}

func TestPostgresQueriesAreUserScoped(t *testing.T) {
	q := buildPostgresQueries("memories", 768)
	for name, sql := range map[string]string{
		"search":  q.search,
		"iterate": q.iterate,
		"delete":  q.deleteUser,
		"count":   q.count,
	} {
		assert.Contains(t, sql, "WHERE user_id = $1", name)
	}
	assert.Contains(t, q.schema, "vector(768)")
	assert.Contains(t, q.schema, `"memories_user_idx"`)
}

func TestPostgresQueriesQuoteTableName(t *testing.T) {
	q := buildPostgresQueries(`mem"; DROP TABLE x; --`, 3)
	assert.True(t, strings.Contains(q.count, `"mem""; DROP TABLE x; --"`), q.count)
	assert.Contains(t, buildPostgresQueries("", 3).count, `"memories"`)
}

func TestDecodeMetadata(t *testing.T) {
	assert.Nil(t, decodeMetadata(""))
	assert.Nil(t, decodeMetadata("null"))
	assert.Nil(t, decodeMetadata("{broken"))
	assert.Equal(t, map[string]any{"hash": "x"}, decodeMetadata(`{"hash":"x"}`))
}
