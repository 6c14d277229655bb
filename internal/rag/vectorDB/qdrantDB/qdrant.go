package qdrantDB

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/imfeniljikadara/nexus-ai/internal/config"
	"github.com/imfeniljikadara/nexus-ai/internal/domain/docModel"
	"github.com/imfeniljikadara/nexus-ai/internal/domain/errorModel"
	"github.com/imfeniljikadara/nexus-ai/internal/metrics"
	"github.com/imfeniljikadara/nexus-ai/internal/rag/vectorDB"
	"github.com/imfeniljikadara/nexus-ai/pkg/logger_i"
	"github.com/qdrant/go-client/qdrant"
)

const (
	fieldDocumentId = "document_id"
	fieldSeq        = "seq"
	fieldStart      = "start"
	fieldEnd        = "end"
	fieldOverlap    = "overlap"
	fieldText       = "text"
	upsertBatchSize = 256
	rollbackTimeout = 10 * time.Second
)

var pointNamespace = uuid.MustParse("6f1c3c1e-2b7a-4f0e-9d55-1f6b0f3a8c21")

// points is the part of the qdrant client the index reads and writes through.
type points interface {
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Delete(ctx context.Context, request *qdrant.DeletePoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Count(ctx context.Context, request *qdrant.CountPoints) (uint64, error)
}

// Storage keeps every document's chunks in one collection, separated by a keyword indexed document_id.
type Storage struct {
	client     *qdrant.Client
	points     points
	collection string
	dimension  int
	logger     *logger_i.Logger
}

var _ vectorDB.Index = (*Storage)(nil)

func NewStorage(ctx context.Context, cfg config.QdrantConfig, dimension int) (*Storage, error) {
	logger := logger_i.NewLogger("Qdrant")
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		APIKey:   cfg.APIKey,
		UseTLS:   cfg.UseTLS,
		PoolSize: uint(cfg.PoolSize),
	})
	if err != nil {
		logger.Error("could not instantiate", "error", err)
		return nil, fmt.Errorf("qdrant client: %w", err)
	}

	s := &Storage{client: client, points: client, collection: cfg.Collection, dimension: dimension, logger: logger}
	if err := s.createCollection(ctx); err != nil {
		logger.Error("could not create collection", "collectionName", cfg.Collection, "error", err)
		_ = client.Close()
		return nil, err
	}
	logger.Info("Qdrant ready", "host", cfg.Host, "port", cfg.Port, "collection", cfg.Collection)
	return s, nil
}

func (s *Storage) Close() error {
	s.logger.Info("Shutting down Qdrant")
	return s.client.Close()
}

func (s *Storage) createCollection(ctx context.Context) error {
	if s.collection == "" {
		return errors.New("empty collection name")
	}
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", s.collection, err)
	}

	_, err = s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: s.collection,
		FieldName:      fieldDocumentId,
		FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
	})
	if err != nil {
		return fmt.Errorf("create %s index: %w", fieldDocumentId, err)
	}
	return nil
}

func (s *Storage) Add(ctx context.Context, documentId string, chunks []docModel.Chunk, embeddings [][]float32) error {
	if err := vectorDB.CheckAdd("qdrant.add", chunks, embeddings, s.dimension); err != nil {
		return err
	}
	defer metrics.Since("vector_upsert", time.Now())

	for i := 0; i < len(chunks); i += upsertBatchSize {
		end := min(i+upsertBatchSize, len(chunks))
		points := make([]*qdrant.PointStruct, 0, end-i)
		for j := i; j < end; j++ {
			points = append(points, toPoint(documentId, chunks[j], embeddings[j]))
		}
		_, err := s.points.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.collection,
			Points:         points,
			Wait:           qdrant.PtrOf(true),
		})
		if err != nil {
			log := s.logger.WithTrace(ctx).With("documentId", documentId)
			log.Error("qdrant upsert failed", "batchStart", i, "error", err)
			// earlier batches may have landed, and Has would then report the document as indexed
			s.rollback(ctx, documentId, log)
			return errorModel.Classify(errorModel.Internal, "qdrant.add", err)
		}
	}
	return nil
}

func (s *Storage) rollback(ctx context.Context, documentId string, log *logger_i.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()
	if err := s.Remove(ctx, documentId); err != nil {
		log.Error("could not remove partially indexed document", "error", err)
	}
}

func (s *Storage) Query(ctx context.Context, documentId string, embedding []float32, k int) ([]docModel.ScoredChunk, error) {
	if len(embedding) != s.dimension {
		return nil, errorModel.New(errorModel.DimensionMismatch, "qdrant.query", errors.New("query vector dimension differs from collection"))
	}
	defer metrics.Since("vector_search", time.Now())
	k = vectorDB.NormalizeK(k)

	// over-fetch until the page ends below the k-th score, so every chunk tied at the cut is seen
	// and ties can be ordered by sequence
	var result []*qdrant.ScoredPoint
	for limit := k * 2; ; limit *= 2 {
		var err error
		result, err = s.points.Query(ctx, &qdrant.QueryPoints{
			CollectionName: s.collection,
			Query:          qdrant.NewQuery(embedding...),
			Filter:         documentFilter(documentId),
			Limit:          qdrant.PtrOf(uint64(limit)),
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			s.logger.WithTrace(ctx).Error("Error querying Qdrant", "error", err)
			return nil, errorModel.Classify(errorModel.Internal, "qdrant.query", err)
		}
		if !tiesPastPage(result, k, limit) {
			break
		}
	}
	if len(result) == 0 {
		return nil, errorModel.New(errorModel.NotFound, "qdrant.query", errors.New("document has no indexed chunks"))
	}

	scored := make([]docModel.ScoredChunk, 0, len(result))
	for _, hit := range result {
		scored = append(scored, docModel.ScoredChunk{Chunk: fromPayload(hit.Payload), Score: hit.Score})
	}
	return vectorDB.Rank(scored, k), nil
}

// tiesPastPage reports whether a full page still ends on the k-th best score, meaning more chunks
// with that score may follow.
func tiesPastPage(page []*qdrant.ScoredPoint, k, limit int) bool {
	if len(page) < limit || len(page) < k {
		return false
	}
	return page[len(page)-1].GetScore() >= page[k-1].GetScore()
}

func (s *Storage) Has(ctx context.Context, documentId string) (bool, error) {
	count, err := s.points.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
		Filter:         documentFilter(documentId),
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return false, errorModel.Classify(errorModel.Internal, "qdrant.has", err)
	}
	return count > 0, nil
}

func (s *Storage) Remove(ctx context.Context, documentId string) error {
	_, err := s.points.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelectorFilter(documentFilter(documentId)),
	})
	if err != nil {
		return errorModel.Classify(errorModel.Internal, "qdrant.remove", err)
	}
	return nil
}

func documentFilter(documentId string) *qdrant.Filter {
	return &qdrant.Filter{Must: []*qdrant.Condition{qdrant.NewMatch(fieldDocumentId, documentId)}}
}

// pointId is stable for (document, seq) so re-indexing a document overwrites instead of duplicating.
func pointId(documentId string, seq int) string {
	return uuid.NewSHA1(pointNamespace, []byte(documentId+"#"+strconv.Itoa(seq))).String()
}

func toPoint(documentId string, chunk docModel.Chunk, vector []float32) *qdrant.PointStruct {
	return &qdrant.PointStruct{
		Id:      qdrant.NewID(pointId(documentId, chunk.Seq)),
		Vectors: qdrant.NewVectors(vector...),
		Payload: qdrant.NewValueMap(map[string]any{
			fieldDocumentId: documentId,
			fieldSeq:        chunk.Seq,
			fieldStart:      chunk.Start,
			fieldEnd:        chunk.End,
			fieldOverlap:    chunk.Overlap,
			fieldText:       chunk.Text,
		}),
	}
}

func fromPayload(payload map[string]*qdrant.Value) docModel.Chunk {
	return docModel.Chunk{
		DocumentId: payload[fieldDocumentId].GetStringValue(),
		Seq:        int(payload[fieldSeq].GetIntegerValue()),
		Start:      int(payload[fieldStart].GetIntegerValue()),
		End:        int(payload[fieldEnd].GetIntegerValue()),
		Overlap:    int(payload[fieldOverlap].GetIntegerValue()),
		Text:       payload[fieldText].GetStringValue(),
	}
}
