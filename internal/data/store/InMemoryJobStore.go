package store

import (
	"context"
	"sync"
	"time"

	"github.com/imfeniljikadara/nexus-ai/internal/domain/jobModel"
	"github.com/imfeniljikadara/nexus-ai/pkg/logger_i"
)

type memoryJob struct {
	job     jobModel.Job
	expires time.Time
}

// InMemoryJobStore is the fallback when redis is disabled or offline. Entries expire lazily on read.
type InMemoryJobStore struct {
	jobMutex *sync.RWMutex
	jobMap   map[string]memoryJob
	ttl      time.Duration
	now      func() time.Time
	logger   *logger_i.Logger
}

func InitInMemoryJobStore(ttl time.Duration) *InMemoryJobStore {
	return &InMemoryJobStore{
		jobMutex: new(sync.RWMutex),
		jobMap:   make(map[string]memoryJob),
		ttl:      ttl,
		now:      time.Now,
		logger:   logger_i.NewLogger("InMem JobStore"),
	}
}

func (store *InMemoryJobStore) SaveJob(ctx context.Context, job jobModel.Job) error {
	store.jobMutex.Lock()
	defer store.jobMutex.Unlock()
	entry := memoryJob{job: job}
	if store.ttl > 0 {
		entry.expires = store.now().Add(store.ttl)
	}
	store.jobMap[job.Id] = entry
	store.logger.WithTrace(ctx).Debug("Saved job to store", "jobId", job.Id, "status", job.Status)
	return nil
}

func (store *InMemoryJobStore) GetJob(ctx context.Context, jobId string) (jobModel.Job, bool) {
	store.jobMutex.RLock()
	entry, found := store.jobMap[jobId]
	store.jobMutex.RUnlock()
	if found && !entry.expires.IsZero() && store.now().After(entry.expires) {
		store.DeleteJob(ctx, jobId)
		return jobModel.Job{}, false
	}
	return entry.job, found
}

func (store *InMemoryJobStore) DeleteJob(ctx context.Context, jobID string) {
	store.jobMutex.Lock()
	defer store.jobMutex.Unlock()
	delete(store.jobMap, jobID)
}
