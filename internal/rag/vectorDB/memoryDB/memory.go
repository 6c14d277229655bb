package memoryDB

import (
	"context"
	"errors"
	"sync"

	"github.com/imfeniljikadara/nexus-ai/internal/domain/docModel"
	"github.com/imfeniljikadara/nexus-ai/internal/domain/errorModel"
	"github.com/imfeniljikadara/nexus-ai/internal/rag/vectorDB"
)

type entry struct {
	chunk  docModel.Chunk
	vector []float32
}

// Storage is a brute-force cosine index kept in process memory, rebuilt lazily after a restart.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	docs      map[string][]entry
}

var _ vectorDB.Index = (*Storage)(nil)

// NewStorage pins the dimension when it is positive, otherwise the first Add establishes it.
func NewStorage(dimension int) *Storage {
	return &Storage{dimension: dimension, docs: make(map[string][]entry)}
}

func (s *Storage) Add(_ context.Context, documentId string, chunks []docModel.Chunk, embeddings [][]float32) error {
	if len(embeddings) == 0 {
		return vectorDB.CheckAdd("memory.add", chunks, embeddings, s.dimension)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	dimension := s.dimension
	if dimension == 0 {
		dimension = len(embeddings[0])
	}
	if err := vectorDB.CheckAdd("memory.add", chunks, embeddings, dimension); err != nil {
		return err
	}
	s.dimension = dimension

	entries := s.docs[documentId]
	for i := range chunks {
		vector := make([]float32, len(embeddings[i]))
		copy(vector, embeddings[i])
		entries = append(entries, entry{chunk: chunks[i], vector: vector})
	}
	s.docs[documentId] = entries
	return nil
}

func (s *Storage) Query(_ context.Context, documentId string, embedding []float32, k int) ([]docModel.ScoredChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.docs[documentId]
	if len(entries) == 0 {
		return nil, errorModel.New(errorModel.NotFound, "memory.query", errors.New("document has no indexed chunks"))
	}
	if len(embedding) != s.dimension {
		return nil, errorModel.New(errorModel.DimensionMismatch, "memory.query", errors.New("query vector dimension differs from index"))
	}

	scored := make([]docModel.ScoredChunk, len(entries))
	for i, e := range entries {
		scored[i] = docModel.ScoredChunk{Chunk: e.chunk, Score: vectorDB.Cosine(e.vector, embedding)}
	}
	return vectorDB.Rank(scored, vectorDB.NormalizeK(k)), nil
}

func (s *Storage) Has(_ context.Context, documentId string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs[documentId]) > 0, nil
}

func (s *Storage) Remove(_ context.Context, documentId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, documentId)
	return nil
}
