package render

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"go-wiki-engine/internal/data"
	"go-wiki-engine/internal/logger"
)

// ErrSchedulerStopped is returned for renders requested after Stop.
var ErrSchedulerStopped = errors.New("render scheduler is stopped")

// JobStatus is the state of a render job.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusRendering JobStatus = "rendering"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
)

// Job tracks one page render from enqueue to completion.
type Job struct {
	ID        string
	PageID    int64
	Status    JobStatus
	CreatedAt time.Time

	page *data.Page
	done chan error
}

// RunFunc performs the actual render work for one page.
type RunFunc func(ctx context.Context, page *data.Page) error

// Scheduler fans page render jobs out to a fixed worker pool. Callers
// block until their job finishes, so lifecycle steps that depend on the
// rendered output keep their ordering.
type Scheduler struct {
	run     RunFunc
	log     logger.Logger
	queue   chan *Job
	workers int

	mu     sync.Mutex
	closed bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewScheduler(workers int, run RunFunc, log logger.Logger) *Scheduler {
	if workers < 1 {
		workers = 1
	}
	return &Scheduler{
		run:     run,
		log:     log,
		queue:   make(chan *Job, workers*4),
		workers: workers,
	}
}

// Start launches the worker goroutines.
func (s *Scheduler) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for {
				select {
				case <-workerCtx.Done():
					return
				case job := <-s.queue:
					s.process(workerCtx, job)
				}
			}
		}()
	}
}

func (s *Scheduler) process(ctx context.Context, job *Job) {
	job.Status = StatusRendering
	start := time.Now()
	log := s.log.With(map[string]interface{}{"job_id": job.ID, "page_id": job.PageID})
	err := s.run(ctx, job.page)
	if err != nil {
		job.Status = StatusFailed
		log.Error(err, "render job failed")
	} else {
		job.Status = StatusCompleted
		log.With(map[string]interface{}{"took": time.Since(start).String()}).Info("render job completed")
	}
	job.done <- err
}

// Render enqueues a job for the page and waits for it to finish.
func (s *Scheduler) Render(ctx context.Context, page *data.Page) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSchedulerStopped
	}
	s.mu.Unlock()

	job := &Job{
		ID:        uuid.NewString(),
		PageID:    page.ID,
		Status:    StatusQueued,
		CreatedAt: time.Now(),
		page:      page,
		done:      make(chan error, 1),
	}

	select {
	case s.queue <- job:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-job.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop rejects new jobs and waits for in-flight workers to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}
