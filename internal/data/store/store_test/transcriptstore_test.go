package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/imfeniljikadara/nexus-ai/internal/data/redisStore"
	"github.com/imfeniljikadara/nexus-ai/internal/data/store"
	"github.com/imfeniljikadara/nexus-ai/internal/domain/chatModel"
	"github.com/redis/go-redis/v9"
)

func exerciseTranscriptStore(t *testing.T, ts chatModel.TranscriptStore) {
	t.Helper()
	ctx := context.Background()
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	first := chatModel.Exchange{Question: "Who is Alice?", Answer: "An engineer.", At: at}
	second := chatModel.Exchange{Question: "And Bob?", Answer: "A designer.", At: at.Add(time.Minute)}
	for _, ex := range []chatModel.Exchange{first, second} {
		if err := ts.Append(ctx, "doc-1", ex); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := ts.Append(ctx, "doc-2", chatModel.Exchange{Question: "other"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	history, err := ts.History(ctx, "doc-1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 exchanges, got %d", len(history))
	}
	if history[0].Question != first.Question || history[1].Answer != second.Answer {
		t.Errorf("history out of order: %+v", history)
	}
	if !history[1].At.Equal(second.At) {
		t.Errorf("timestamp lost: %v", history[1].At)
	}

	if err := ts.Clear(ctx, "doc-1"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	history, err = ts.History(ctx, "doc-1")
	if err != nil || len(history) != 0 {
		t.Errorf("expected empty history after clear, got %v %v", history, err)
	}
	if other, _ := ts.History(ctx, "doc-2"); len(other) != 1 {
		t.Errorf("clear leaked into another document: %v", other)
	}
}

func TestInMemoryTranscriptStore(t *testing.T) {
	exerciseTranscriptStore(t, store.InitTranscriptStore())
}

func TestRedisTranscriptStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	exerciseTranscriptStore(t, store.NewRedisTranscriptStore(redisStore.NewTestStore(client), time.Hour))
}

func TestRedisTranscriptStore_RefreshesTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	ts := store.NewRedisTranscriptStore(redisStore.NewTestStore(client), time.Hour)

	if err := ts.Append(context.Background(), "doc", chatModel.Exchange{Question: "q"}); err != nil {
		t.Fatal(err)
	}
	mr.FastForward(30 * time.Minute)
	if err := ts.Append(context.Background(), "doc", chatModel.Exchange{Question: "q2"}); err != nil {
		t.Fatal(err)
	}
	if ttl := mr.TTL("transcript:doc"); ttl != time.Hour {
		t.Errorf("ttl not refreshed, got %v", ttl)
	}
}
