package memoryDB

import (
	"context"
	"testing"

	"github.com/imfeniljikadara/nexus-ai/internal/domain/docModel"
	"github.com/imfeniljikadara/nexus-ai/internal/domain/errorModel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chunks(doc string, texts ...string) []docModel.Chunk {
	out := make([]docModel.Chunk, len(texts))
	for i, text := range texts {
		out[i] = docModel.Chunk{DocumentId: doc, Seq: i, Text: text}
	}
	return out
}

func TestQuery_BestFirstWithTieBreak(t *testing.T) {
	ctx := context.Background()
	s := NewStorage(0)
	require.NoError(t, s.Add(ctx, "doc", chunks("doc", "a", "b", "c", "d"), [][]float32{
		{0, 1},
		{1, 0},
		{1, 0},
		{0.7, 0.7},
	}))

	got, err := s.Query(ctx, "doc", []float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{got[0].Seq, got[1].Seq, got[2].Seq})
	assert.InDelta(t, 1.0, got[0].Score, 1e-6)

	again, err := s.Query(ctx, "doc", []float32{1, 0}, 3)
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestQuery_DefaultK(t *testing.T) {
	ctx := context.Background()
	s := NewStorage(1)
	require.NoError(t, s.Add(ctx, "doc", chunks("doc", "1", "2", "3", "4", "5"), [][]float32{{1}, {1}, {1}, {1}, {1}}))
	got, err := s.Query(ctx, "doc", []float32{1}, 0)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestQuery_DocumentsAreIsolated(t *testing.T) {
	ctx := context.Background()
	s := NewStorage(2)
	require.NoError(t, s.Add(ctx, "one", chunks("one", "alpha"), [][]float32{{1, 0}}))
	require.NoError(t, s.Add(ctx, "two", chunks("two", "beta"), [][]float32{{1, 0}}))

	got, err := s.Query(ctx, "two", []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "beta", got[0].Text)

	_, err = s.Query(ctx, "three", []float32{1, 0}, 5)
	assert.ErrorIs(t, err, errorModel.ErrNotFound)
}

func TestAdd_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	s := NewStorage(0)
	require.NoError(t, s.Add(ctx, "doc", chunks("doc", "a"), [][]float32{{1, 2, 3}}))

	err := s.Add(ctx, "doc2", chunks("doc2", "b"), [][]float32{{1, 2}})
	assert.ErrorIs(t, err, errorModel.ErrDimensionMismatch)

	err = s.Add(ctx, "doc3", chunks("doc3", "c", "d"), [][]float32{{1, 2, 3}})
	assert.ErrorIs(t, err, errorModel.ErrDimensionMismatch)

	has, _ := s.Has(ctx, "doc2")
	assert.False(t, has)
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	s := NewStorage(1)
	require.NoError(t, s.Add(ctx, "doc", chunks("doc", "a"), [][]float32{{1}}))
	has, _ := s.Has(ctx, "doc")
	require.True(t, has)

	require.NoError(t, s.Remove(ctx, "doc"))
	has, _ = s.Has(ctx, "doc")
	assert.False(t, has)
}
