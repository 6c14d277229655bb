package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/imfeniljikadara/nexus-ai/internal/config"
	"github.com/imfeniljikadara/nexus-ai/internal/domain/jobModel"
	"github.com/imfeniljikadara/nexus-ai/internal/job"
	"github.com/imfeniljikadara/nexus-ai/internal/metrics"
	"github.com/imfeniljikadara/nexus-ai/pkg/logger_i"
)

// Runner does the actual work of a job and returns it with its outcome filled in.
type Runner interface {
	Run(ctx context.Context, j jobModel.Job) jobModel.Job
}

// Pool starts with the minimum number of workers, grows when the job service signals the dispatcher
// and shrinks again as workers sit idle.
type Pool struct {
	service *job.Service
	runner  Runner

	minWorkers  int64
	maxWorkers  int64
	idleTimeout time.Duration
	jobTimeout  time.Duration

	currentWorkerCount int64
	stopWorkerChannel  chan bool
	dispatcherDone     chan struct{}
	workerWaitGroup    sync.WaitGroup
	stopOnce           sync.Once
	logger             *logger_i.Logger
}

type PoolConfig struct {
	Service *job.Service
	Runner  Runner
	Workers config.WorkerConfig
}

func NewPool(cfg PoolConfig) *Pool {
	w := cfg.Workers
	if w.Min < 1 {
		w.Min = config.MinWorkerCount
	}
	if w.Max < w.Min {
		w.Max = w.Min
	}
	if w.IdleTimeout <= 0 {
		w.IdleTimeout = config.IdleWorkerTimeout
	}
	if w.JobTimeout <= 0 {
		w.JobTimeout = config.WarmupJobTimeout
	}
	return &Pool{
		service:           cfg.Service,
		runner:            cfg.Runner,
		minWorkers:        w.Min,
		maxWorkers:        w.Max,
		idleTimeout:       w.IdleTimeout,
		jobTimeout:        w.JobTimeout,
		stopWorkerChannel: make(chan bool),
		dispatcherDone:    make(chan struct{}),
		logger:            logger_i.NewLogger("WorkerPool"),
	}
}

func (p *Pool) Start() {
	p.logger.Info("Initializing worker pool", "min", p.minWorkers, "max", p.maxWorkers)
	for i := int64(0); i < p.minWorkers; i++ {
		p.createWorker()
	}
	go p.dispatcher()
}

// Stop retires every worker once its current job is done.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopWorkerChannel)
		<-p.dispatcherDone
		p.workerWaitGroup.Wait()
		p.logger.Info("Worker pool stopped")
	})
}

func (p *Pool) WorkerCount() int64 { return atomic.LoadInt64(&p.currentWorkerCount) }

func (p *Pool) dispatcher() {
	defer close(p.dispatcherDone)
	p.logger.Info("Dispatcher started")
	for {
		select {
		case <-p.service.DispatcherChannel:
			if p.WorkerCount() < p.maxWorkers {
				p.logger.Info("Creating new worker", "workerCount", p.WorkerCount())
				p.createWorker()
			}
		case <-p.stopWorkerChannel:
			return
		}
	}
}

func (p *Pool) createWorker() {
	p.workerWaitGroup.Add(1)
	atomic.AddInt64(&p.currentWorkerCount, 1)
	metrics.IncrementActiveWorkerCount()
	go p.worker()
}

func (p *Pool) worker() {
	idle := time.NewTimer(p.idleTimeout)
	defer idle.Stop()
	for {
		select {
		case currentJob := <-p.service.JobChannel:
			metrics.DecrementJobsInQueue()
			p.executeJob(currentJob)
			idle.Reset(p.idleTimeout)

		case <-p.stopWorkerChannel:
			p.removeWorker("Stop worker signal received")
			return

		case <-idle.C:
			if p.retireIdle() {
				return
			}
			idle.Reset(p.idleTimeout)
		}
	}
}

// retireIdle removes the calling worker unless that would drop the pool below its minimum.
func (p *Pool) retireIdle() bool {
	for {
		current := atomic.LoadInt64(&p.currentWorkerCount)
		if current <= p.minWorkers {
			return false
		}
		if atomic.CompareAndSwapInt64(&p.currentWorkerCount, current, current-1) {
			p.workerWaitGroup.Done()
			metrics.DecrementActiveWorkerCount()
			p.logger.Info("Removed worker", "reason", "idle worker timeout", "workerCount", current-1)
			return true
		}
	}
}
