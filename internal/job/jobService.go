package job

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/imfeniljikadara/nexus-ai/internal/config"
	"github.com/imfeniljikadara/nexus-ai/internal/domain/errorModel"
	"github.com/imfeniljikadara/nexus-ai/internal/domain/jobModel"
	"github.com/imfeniljikadara/nexus-ai/internal/metrics"
	"github.com/imfeniljikadara/nexus-ai/pkg/logger_i"
)

type Service struct {
	JobChannel        chan jobModel.Job
	RequestCount      int64
	DispatcherChannel chan bool
	JobStore          jobModel.JobStore

	requestsPerNewWorker int64
	logger               *logger_i.Logger
}

type ServiceConfig struct {
	JobChannel           chan jobModel.Job
	DispatcherChannel    chan bool
	JobStore             jobModel.JobStore
	RequestsPerNewWorker int64
}

func InitJobService(cfg ServiceConfig) *Service {
	every := cfg.RequestsPerNewWorker
	if every < 1 {
		every = config.RequestsPerNewWorkerCount
	}
	return &Service{
		JobChannel:           cfg.JobChannel,
		DispatcherChannel:    cfg.DispatcherChannel,
		JobStore:             cfg.JobStore,
		requestsPerNewWorker: every,
		logger:               logger_i.NewLogger("JobService"),
	}
}

// Enqueue records a queued warm-up job for an uploaded document and hands it to the worker pool.
// The hand-off blocks while the buffer is full, bounded by ctx.
func (s *Service) Enqueue(ctx context.Context, documentId string, payload jobModel.JobPayload) (jobModel.Job, error) {
	log := s.logger.WithTrace(ctx).With("documentId", documentId)

	newJob := jobModel.Job{
		Id:          uuid.NewString(),
		DocumentId:  documentId,
		JobType:     jobModel.JobTypeWarmup,
		JobPayload:  payload,
		CreatedTime: time.Now(),
		Status:      jobModel.JobStatusQueued,
		CurrentStep: jobModel.WarmupInit,
	}
	if traceId, ok := ctx.Value(config.TRACE_ID_KEY).(string); ok {
		newJob.TraceId = traceId
	}
	if err := s.JobStore.SaveJob(ctx, newJob); err != nil {
		log.Warn("could not record queued job", "jobId", newJob.Id, "error", err)
	}

	select {
	case s.JobChannel <- newJob:
	case <-ctx.Done():
		s.JobStore.DeleteJob(context.WithoutCancel(ctx), newJob.Id)
		return jobModel.Job{}, errorModel.New(errorModel.Timeout, "job.Enqueue", ctx.Err())
	}
	metrics.IncrementJobsInQueue()
	log.Info("queued warm-up job", "jobId", newJob.Id)

	// every n-th job, or a backlog, asks the dispatcher for another worker; idle ones retire on their own
	count := atomic.AddInt64(&s.RequestCount, 1)
	if count%s.requestsPerNewWorker == 0 || len(s.JobChannel) > 1 {
		select {
		case s.DispatcherChannel <- true:
			metrics.StartDispatcherSignalCount()
		default:
			log.Debug("dispatcher busy, skipping worker signal", "requests", count)
		}
	}
	return newJob, nil
}

func (s *Service) Status(ctx context.Context, id string) (jobModel.Job, bool) {
	if id == "" {
		return jobModel.Job{}, false
	}
	return s.JobStore.GetJob(ctx, id)
}
