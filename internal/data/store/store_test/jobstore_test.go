package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/imfeniljikadara/nexus-ai/internal/config"
	"github.com/imfeniljikadara/nexus-ai/internal/data/redisStore"
	"github.com/imfeniljikadara/nexus-ai/internal/data/store"
	"github.com/imfeniljikadara/nexus-ai/internal/domain/jobModel"
	"github.com/redis/go-redis/v9"
)

func TestRedisJobStore_Lifecycle(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	jobStore := store.NewRedisJobStore(redisStore.NewTestStore(client), time.Hour)

	ctx := context.WithValue(context.Background(), config.TRACE_ID_KEY, "test-trace")
	jobID := "job_abc_123"

	testJob := jobModel.Job{
		Id:         jobID,
		DocumentId: "3f2a",
		Status:     jobModel.JobStatusRunning,
		JobPayload: jobModel.JobPayload{
			DocumentName: "handbook.pdf",
		},
	}

	t.Run("Save and Get", func(t *testing.T) {
		if err := jobStore.SaveJob(ctx, testJob); err != nil {
			t.Fatalf("SaveJob failed: %v", err)
		}

		retrievedJob, found := jobStore.GetJob(ctx, jobID)
		if !found {
			t.Fatal("Job was saved but not found in Redis")
		}
		if retrievedJob.JobPayload.DocumentName != testJob.JobPayload.DocumentName || retrievedJob.DocumentId != "3f2a" {
			t.Errorf("Data mismatch! Got %+v, want %+v", retrievedJob, testJob)
		}
		if ttl := mr.TTL("job:" + jobID); ttl != time.Hour {
			t.Errorf("expected one hour ttl, got %v", ttl)
		}
	})

	t.Run("Get Non-Existent Job", func(t *testing.T) {
		if _, found := jobStore.GetJob(ctx, "ghost-id"); found {
			t.Error("Expected found=false for non-existent key")
		}
	})

	t.Run("Delete Job", func(t *testing.T) {
		jobStore.DeleteJob(ctx, jobID)
		if mr.Exists("job:" + jobID) {
			t.Error("Job still exists in Redis after DeleteJob call")
		}
	})
}

func TestRedisJobStore_Race(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	jobStore := store.NewRedisJobStore(redisStore.NewTestStore(client), 0)

	ctx := context.WithValue(context.Background(), config.TRACE_ID_KEY, "race-trace")
	job := jobModel.Job{Id: "race-job"}

	const workers = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = jobStore.SaveJob(ctx, job)
			_, _ = jobStore.GetJob(ctx, "race-job")
		}()
	}
	wg.Wait()

	if _, found := jobStore.GetJob(ctx, "race-job"); !found {
		t.Error("job missing after concurrent saves")
	}
}

func TestInMemoryJobStore_Expiry(t *testing.T) {
	ctx := context.Background()
	jobStore := store.InitInMemoryJobStore(10 * time.Millisecond)

	if err := jobStore.SaveJob(ctx, jobModel.Job{Id: "j1", Status: jobModel.JobStatusQueued}); err != nil {
		t.Fatal(err)
	}
	if got, found := jobStore.GetJob(ctx, "j1"); !found || got.Status != jobModel.JobStatusQueued {
		t.Fatalf("expected queued job, got %+v found=%v", got, found)
	}

	time.Sleep(30 * time.Millisecond)
	if _, found := jobStore.GetJob(ctx, "j1"); found {
		t.Error("expired job still returned")
	}
}
