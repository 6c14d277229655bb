package qdrantDB

import (
	"context"
	"errors"
	"testing"

	"github.com/imfeniljikadara/nexus-ai/internal/domain/docModel"
	"github.com/imfeniljikadara/nexus-ai/internal/domain/errorModel"
	"github.com/imfeniljikadara/nexus-ai/pkg/logger_i"
	"github.com/qdrant/go-client/qdrant"
)

func TestPointId_Deterministic(t *testing.T) {
	if pointId("doc", 3) != pointId("doc", 3) {
		t.Error("same document and sequence must map to the same point")
	}
	if pointId("doc", 3) == pointId("doc", 4) || pointId("doc", 3) == pointId("other", 3) {
		t.Error("distinct chunks collided")
	}
}

func TestPayloadRoundTripsChunk(t *testing.T) {
	chunk := docModel.Chunk{DocumentId: "doc", Seq: 7, Start: 4200, End: 5200, Overlap: 200, Text: "Bob appears here"}
	point := toPoint("doc", chunk, []float32{0.1, 0.2})

	got := fromPayload(point.Payload)
	if got != chunk {
		t.Errorf("payload mismatch: got %+v want %+v", got, chunk)
	}
	if point.Id.GetUuid() != pointId("doc", 7) {
		t.Errorf("unexpected point id %v", point.Id)
	}
}

func TestDocumentFilter(t *testing.T) {
	f := documentFilter("abc")
	if len(f.Must) != 1 {
		t.Fatalf("expected one condition, got %d", len(f.Must))
	}
	match := f.Must[0].GetField()
	if match.GetKey() != fieldDocumentId || match.GetMatch().GetKeyword() != "abc" {
		t.Errorf("filter does not match document_id=abc: %v", match)
	}
}

type fakePoints struct {
	hits      []*qdrant.ScoredPoint
	limits    []uint64
	upserts   int
	failAt    int
	deletes   []*qdrant.DeletePoints
	deleteErr error
}

func (f *fakePoints) Upsert(_ context.Context, _ *qdrant.UpsertPoints) (*qdrant.UpdateResult, error) {
	f.upserts++
	if f.upserts == f.failAt {
		return nil, errors.New("connection reset")
	}
	return &qdrant.UpdateResult{}, nil
}

func (f *fakePoints) Delete(_ context.Context, request *qdrant.DeletePoints) (*qdrant.UpdateResult, error) {
	f.deletes = append(f.deletes, request)
	return &qdrant.UpdateResult{}, f.deleteErr
}

func (f *fakePoints) Query(_ context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error) {
	limit := request.GetLimit()
	f.limits = append(f.limits, limit)
	if uint64(len(f.hits)) < limit {
		return f.hits, nil
	}
	return f.hits[:limit], nil
}

func (f *fakePoints) Count(context.Context, *qdrant.CountPoints) (uint64, error) {
	return 0, nil
}

func chunksFor(documentId string, n int) ([]docModel.Chunk, [][]float32) {
	chunks := make([]docModel.Chunk, n)
	vectors := make([][]float32, n)
	for i := range chunks {
		chunks[i] = docModel.Chunk{DocumentId: documentId, Seq: i, Start: i, End: i + 1, Text: "x"}
		vectors[i] = []float32{1, 0}
	}
	return chunks, vectors
}

func TestAdd_FailedBatchRemovesEarlierBatches(t *testing.T) {
	tests := []struct {
		name      string
		deleteErr error
	}{
		{"rollback succeeds", nil},
		{"rollback fails too", errors.New("still down")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakePoints{failAt: 2, deleteErr: tt.deleteErr}
			s := &Storage{points: fake, collection: "docs", dimension: 2, logger: logger_i.NewLogger("test")}
			chunks, vectors := chunksFor("big", upsertBatchSize+10)

			err := s.Add(context.Background(), "big", chunks, vectors)
			if err == nil {
				t.Fatal("expected the failed upsert to surface")
			}
			if fake.upserts != 2 {
				t.Errorf("expected to stop at the failing batch, made %d upserts", fake.upserts)
			}
			if len(fake.deletes) != 1 {
				t.Fatalf("expected one rollback delete, got %d", len(fake.deletes))
			}
			match := fake.deletes[0].GetPoints().GetFilter().GetMust()[0].GetField()
			if match.GetKey() != fieldDocumentId || match.GetMatch().GetKeyword() != "big" {
				t.Errorf("rollback must delete by document_id=big, got %v", match)
			}
		})
	}
}

func TestAdd_SuccessDoesNotDelete(t *testing.T) {
	fake := &fakePoints{}
	s := &Storage{points: fake, collection: "docs", dimension: 2, logger: logger_i.NewLogger("test")}
	chunks, vectors := chunksFor("doc", upsertBatchSize+1)

	if err := s.Add(context.Background(), "doc", chunks, vectors); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if fake.upserts != 2 || len(fake.deletes) != 0 {
		t.Errorf("upserts=%d deletes=%d", fake.upserts, len(fake.deletes))
	}
}

func hit(seq int, score float32) *qdrant.ScoredPoint {
	chunk := docModel.Chunk{DocumentId: "doc", Seq: seq, Text: "chunk"}
	return &qdrant.ScoredPoint{Payload: toPoint("doc", chunk, []float32{1, 0}).Payload, Score: score}
}

func TestQuery_TiesAcrossThePageAreOrderedBySequence(t *testing.T) {
	// best first as qdrant returns them, ties in no particular order
	fake := &fakePoints{hits: []*qdrant.ScoredPoint{
		hit(9, 0.9), hit(8, 0.5), hit(7, 0.5), hit(6, 0.5), hit(5, 0.5),
		hit(4, 0.5), hit(3, 0.5), hit(2, 0.5), hit(1, 0.5), hit(0, 0.1),
	}}
	s := &Storage{points: fake, collection: "docs", dimension: 2, logger: logger_i.NewLogger("test")}

	got, err := s.Query(context.Background(), "doc", []float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	var seqs []int
	for _, c := range got {
		seqs = append(seqs, c.Seq)
	}
	if len(seqs) != 3 || seqs[0] != 9 || seqs[1] != 1 || seqs[2] != 2 {
		t.Errorf("expected [9 1 2], got %v", seqs)
	}
	if len(fake.limits) != 2 || fake.limits[0] != 6 || fake.limits[1] != 12 {
		t.Errorf("expected one widened fetch, limits %v", fake.limits)
	}
}

func TestQuery_NoHitsIsNotFound(t *testing.T) {
	s := &Storage{points: &fakePoints{}, collection: "docs", dimension: 2, logger: logger_i.NewLogger("test")}
	_, err := s.Query(context.Background(), "doc", []float32{1, 0}, 3)
	if errorModel.KindOf(err) != errorModel.NotFound {
		t.Errorf("expected NotFound, got %v", err)
	}
}
