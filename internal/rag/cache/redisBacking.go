package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/imfeniljikadara/nexus-ai/internal/data/redisStore"
	"github.com/imfeniljikadara/nexus-ai/internal/domain/docModel"
)

const textKeyPrefix = "text:"

// RedisBacking stores extractions as json. A ttl of 0 keeps them until invalidated.
type RedisBacking struct {
	store *redisStore.Store
	ttl   time.Duration
}

func NewRedisBacking(store *redisStore.Store, ttl time.Duration) *RedisBacking {
	return &RedisBacking{store: store, ttl: ttl}
}

func (b *RedisBacking) Load(ctx context.Context, documentId string) (docModel.Extraction, bool, error) {
	var extraction docModel.Extraction
	raw, err := b.store.Get(ctx, textKeyPrefix+documentId)
	if b.store.IsNil(err) {
		return extraction, false, nil
	}
	if err != nil {
		return extraction, false, err
	}
	if err := json.Unmarshal([]byte(raw), &extraction); err != nil {
		return extraction, false, err
	}
	return extraction, true, nil
}

func (b *RedisBacking) Store(ctx context.Context, documentId string, extraction docModel.Extraction) error {
	data, err := json.Marshal(extraction)
	if err != nil {
		return err
	}
	return b.store.Set(ctx, textKeyPrefix+documentId, data, b.ttl)
}

func (b *RedisBacking) Delete(ctx context.Context, documentId string) error {
	return b.store.Del(ctx, textKeyPrefix+documentId)
}
