package store

import (
	"context"
	"sync"

	"github.com/imfeniljikadara/nexus-ai/internal/domain/chatModel"
)

type InMemoryTranscriptStore struct {
	chatLock *sync.RWMutex
	chatMap  map[string][]chatModel.Exchange
}

func InitTranscriptStore() *InMemoryTranscriptStore {
	return &InMemoryTranscriptStore{
		chatLock: new(sync.RWMutex),
		chatMap:  make(map[string][]chatModel.Exchange),
	}
}

func (store *InMemoryTranscriptStore) Append(_ context.Context, documentId string, exchange chatModel.Exchange) error {
	store.chatLock.Lock()
	defer store.chatLock.Unlock()
	store.chatMap[documentId] = append(store.chatMap[documentId], exchange)
	return nil
}

func (store *InMemoryTranscriptStore) History(_ context.Context, documentId string) ([]chatModel.Exchange, error) {
	store.chatLock.RLock()
	defer store.chatLock.RUnlock()
	history := store.chatMap[documentId]
	out := make([]chatModel.Exchange, len(history))
	copy(out, history)
	return out, nil
}

func (store *InMemoryTranscriptStore) Clear(_ context.Context, documentId string) error {
	store.chatLock.Lock()
	defer store.chatLock.Unlock()
	delete(store.chatMap, documentId)
	return nil
}
