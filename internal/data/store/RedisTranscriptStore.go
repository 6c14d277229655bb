package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/imfeniljikadara/nexus-ai/internal/data/redisStore"
	"github.com/imfeniljikadara/nexus-ai/internal/domain/chatModel"
	"github.com/imfeniljikadara/nexus-ai/pkg/logger_i"
)

const transcriptKeyPrefix = "transcript:"

// RedisTranscriptStore keeps one list per document, each element a json encoded exchange.
type RedisTranscriptStore struct {
	store  *redisStore.Store
	ttl    time.Duration
	logger *logger_i.Logger
}

func NewRedisTranscriptStore(store *redisStore.Store, ttl time.Duration) *RedisTranscriptStore {
	return &RedisTranscriptStore{
		store:  store,
		ttl:    ttl,
		logger: logger_i.NewLogger("TranscriptStore"),
	}
}

func (s *RedisTranscriptStore) Append(ctx context.Context, documentId string, exchange chatModel.Exchange) error {
	data, err := json.Marshal(exchange)
	if err != nil {
		return err
	}
	if err := s.store.ListAppend(ctx, transcriptKeyPrefix+documentId, data, s.ttl); err != nil {
		s.logger.WithTrace(ctx).Error("error saving exchange", "documentId", documentId, "error", err)
		return err
	}
	return nil
}

func (s *RedisTranscriptStore) History(ctx context.Context, documentId string) ([]chatModel.Exchange, error) {
	raw, err := s.store.ListGetAll(ctx, transcriptKeyPrefix+documentId)
	if err != nil {
		s.logger.WithTrace(ctx).Error("Error getting history", "documentId", documentId, "error", err)
		return nil, err
	}
	history := make([]chatModel.Exchange, 0, len(raw))
	for i, item := range raw {
		var exchange chatModel.Exchange
		if err := json.Unmarshal([]byte(item), &exchange); err != nil {
			return nil, fmt.Errorf("transcript %s entry %d: %w", documentId, i, err)
		}
		history = append(history, exchange)
	}
	return history, nil
}

func (s *RedisTranscriptStore) Clear(ctx context.Context, documentId string) error {
	return s.store.Del(ctx, transcriptKeyPrefix+documentId)
}
