package worker

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/imfeniljikadara/nexus-ai/internal/config"
	"github.com/imfeniljikadara/nexus-ai/internal/domain/jobModel"
	"github.com/imfeniljikadara/nexus-ai/internal/metrics"
)

func (p *Pool) executeJob(j jobModel.Job) {
	start := time.Now()
	defer func() {
		metrics.CaptureJobMetrics(string(j.Status), time.Since(start))
	}()
	ctxTrace := context.WithValue(context.Background(), config.TRACE_ID_KEY, j.TraceId)
	ctx, cancel := context.WithTimeout(ctxTrace, p.jobTimeout)
	defer cancel()
	log := p.logger.WithTrace(ctx)
	log.Debug("Processing job", "jobId", j.Id, "documentId", j.DocumentId)

	j = p.saveJobState(ctx, j, jobModel.JobStatusRunning)
	j = p.runner.Run(ctx, j)
	j.EndTime = time.Now()

	status := jobModel.JobStatusComplete
	if j.Status == jobModel.JobStatusError {
		status = jobModel.JobStatusError
	}
	// the record must land even when the job used up its own deadline
	j = p.saveJobState(context.WithoutCancel(ctx), j, status)
}

func (p *Pool) removeWorker(reason string) {
	count := atomic.AddInt64(&p.currentWorkerCount, -1)
	p.workerWaitGroup.Done()
	metrics.DecrementActiveWorkerCount()
	p.logger.Info("Removed worker", "reason", reason, "workerCount", count)
}

func (p *Pool) saveJobState(ctx context.Context, j jobModel.Job, status jobModel.JobStatus) jobModel.Job {
	j.Status = status
	if err := p.service.JobStore.SaveJob(ctx, j); err != nil {
		p.logger.WithTrace(ctx).Error("Failed to update job status", "jobId", j.Id, "error", err)
	}
	return j
}
