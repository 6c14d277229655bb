package job

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/imfeniljikadara/nexus-ai/internal/config"
	"github.com/imfeniljikadara/nexus-ai/internal/data/registry"
	"github.com/imfeniljikadara/nexus-ai/internal/data/store"
	"github.com/imfeniljikadara/nexus-ai/internal/data/uploads"
	"github.com/imfeniljikadara/nexus-ai/internal/domain/docModel"
	"github.com/imfeniljikadara/nexus-ai/internal/domain/errorModel"
	"github.com/imfeniljikadara/nexus-ai/internal/domain/jobModel"
	"github.com/imfeniljikadara/nexus-ai/internal/rag/cache"
	"github.com/imfeniljikadara/nexus-ai/internal/rag/extract"
	"github.com/imfeniljikadara/nexus-ai/internal/rag/extract/extracttest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(buffer int, every int64) *Service {
	return InitJobService(ServiceConfig{
		JobChannel:           make(chan jobModel.Job, buffer),
		DispatcherChannel:    make(chan bool, 10),
		JobStore:             store.InitInMemoryJobStore(time.Hour),
		RequestsPerNewWorker: every,
	})
}

func TestEnqueue_RecordsQueuedJob(t *testing.T) {
	svc := newService(4, 10)
	ctx := context.WithValue(context.Background(), config.TRACE_ID_KEY, "trace-1")

	queued, err := svc.Enqueue(ctx, "doc-1", jobModel.JobPayload{DocumentName: "a.pdf"})
	require.NoError(t, err)

	assert.Equal(t, "trace-1", queued.TraceId)
	assert.Equal(t, jobModel.JobTypeWarmup, queued.JobType)

	stored, ok := svc.Status(ctx, queued.Id)
	require.True(t, ok)
	assert.Equal(t, jobModel.JobStatusQueued, stored.Status)
	assert.Equal(t, "doc-1", stored.DocumentId)

	got := <-svc.JobChannel
	assert.Equal(t, queued.Id, got.Id)

	_, ok = svc.Status(ctx, "")
	assert.False(t, ok)
}

func TestEnqueue_SignalsDispatcherEveryNthJob(t *testing.T) {
	svc := newService(10, 3)
	for i := 0; i < 6; i++ {
		_, err := svc.Enqueue(context.Background(), "doc", jobModel.JobPayload{})
		require.NoError(t, err)
		<-svc.JobChannel
	}
	assert.Len(t, svc.DispatcherChannel, 2)
}

func TestEnqueue_FullBufferHonoursDeadline(t *testing.T) {
	svc := newService(0, 10)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := svc.Enqueue(ctx, "doc", jobModel.JobPayload{})
	assert.ErrorIs(t, err, errorModel.ErrTimeout)
}

type warmupHarness struct {
	warmup   *Warmup
	cache    *cache.DocumentCache
	registry *registry.Registry
	blobs    *uploads.Store
}

func newWarmupHarness(t *testing.T) *warmupHarness {
	t.Helper()
	dir := t.TempDir()
	blobs, err := uploads.New(filepath.Join(dir, "uploads"))
	require.NoError(t, err)
	reg, err := registry.Open(filepath.Join(dir, "registry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })

	textCache := cache.New(nil)
	return &warmupHarness{
		warmup:   NewWarmup(textCache, extract.New(time.Second), blobs, reg),
		cache:    textCache,
		registry: reg,
		blobs:    blobs,
	}
}

func (h *warmupHarness) upload(t *testing.T, data []byte) string {
	t.Helper()
	id, size, err := h.blobs.Put(bytes.NewReader(data))
	require.NoError(t, err)
	_, _, err = h.registry.Register(docModel.Document{Id: id, Name: "a.pdf", Origin: docModel.OriginUpload, Size: size})
	require.NoError(t, err)
	return id
}

func TestWarmup_FillsCacheAndMarksReady(t *testing.T) {
	h := newWarmupHarness(t)
	id := h.upload(t, extracttest.BuildPDF("first page", "second page"))

	done := h.warmup.Run(context.Background(), jobModel.Job{Id: "j1", DocumentId: id})

	assert.Equal(t, jobModel.Complete, done.CurrentStep)
	assert.NotEqual(t, jobModel.JobStatusError, done.Status)
	assert.Equal(t, 2, done.JobPayload.Pages)

	cached, ok := h.cache.Peek(id)
	require.True(t, ok)
	assert.Contains(t, cached.Text, "second page")

	doc, err := h.registry.Get(id)
	require.NoError(t, err)
	assert.Equal(t, docModel.StatusReady, doc.Status)
	assert.Equal(t, 2, doc.Pages)
}

func TestWarmup_RecordsFailure(t *testing.T) {
	h := newWarmupHarness(t)
	id := h.upload(t, []byte("plain text, not a pdf"))

	done := h.warmup.Run(context.Background(), jobModel.Job{Id: "j2", DocumentId: id})

	assert.Equal(t, jobModel.JobStatusError, done.Status)
	assert.Equal(t, string(errorModel.InvalidFormat), done.Error.Kind)
	assert.Equal(t, 400, done.Error.Code)
	assert.False(t, done.Error.Retry)

	doc, err := h.registry.Get(id)
	require.NoError(t, err)
	assert.Equal(t, docModel.StatusFailed, doc.Status)
	assert.NotEmpty(t, doc.Error)
	assert.Equal(t, 0, h.cache.Len())
}
