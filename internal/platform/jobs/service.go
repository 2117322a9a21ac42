package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const JobTimesheetExport = "timesheet_export"

type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Finished() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

var (
	ErrQueueFull      = errors.New("job queue is full, try again later")
	ErrRunNotFound    = errors.New("job run not found")
	ErrRunNotFinished = errors.New("job run has not completed")
	ErrRunFinished    = errors.New("job run already finished")
	ErrNotStarted     = errors.New("job service not started")
)

type Run struct {
	ID          string     `json:"id"`
	Type        string     `json:"type"`
	OwnerID     string     `json:"ownerId"`
	Status      Status     `json:"status"`
	Error       string     `json:"error,omitempty"`
	Details     any        `json:"details,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Output is what a job produces for later download.
type Output struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Data        []byte `json:"data"`
	Details     any    `json:"details,omitempty"`
}

type Func func(ctx context.Context) (Output, error)

type Options struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
	ResultTTL time.Duration
}

type task struct {
	run    Run
	fn     Func
	ctx    context.Context
	cancel context.CancelFunc
}

// Service runs submitted jobs on a fixed worker pool.
type Service struct {
	Results  ResultStore
	Recorder RunRecorder
	Opts     Options
	// OnFinish observes every run that reaches a final status.
	OnFinish func(Run)
	Now      func() time.Time

	queue chan *task
	base  context.Context
	wg    sync.WaitGroup

	mu   sync.Mutex
	runs map[string]*task
}

func New(opts Options, results ResultStore, recorder RunRecorder) *Service {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1
	}
	if results == nil {
		results = NewMemoryResults()
	}
	return &Service{
		Results:  results,
		Recorder: recorder,
		Opts:     opts,
		Now:      time.Now,
		queue:    make(chan *task, opts.QueueSize),
		runs:     map[string]*task{},
	}
}

// Start launches the workers. They stop when ctx is done; Wait blocks until they have.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	s.base = ctx
	s.mu.Unlock()
	for i := 0; i < s.Opts.Workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx)
	}
}

func (s *Service) Wait() {
	s.wg.Wait()
}

// Submit queues fn without blocking.
func (s *Service) Submit(jobType, ownerID string, fn Func) (Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.base == nil {
		return Run{}, ErrNotStarted
	}
	s.pruneLocked()

	ctx, cancel := context.WithCancel(s.base)
	t := &task{
		run: Run{
			ID:        uuid.NewString(),
			Type:      jobType,
			OwnerID:   ownerID,
			Status:    StatusQueued,
			CreatedAt: s.Now(),
		},
		fn:     fn,
		ctx:    ctx,
		cancel: cancel,
	}
	select {
	case s.queue <- t:
	default:
		cancel()
		slog.Warn("job queue full", "jobType", jobType, "ownerId", ownerID)
		return Run{}, ErrQueueFull
	}
	s.runs[t.run.ID] = t
	return t.run, nil
}

func (s *Service) Get(id string) (Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.runs[id]
	if !ok {
		return Run{}, ErrRunNotFound
	}
	return t.run, nil
}

// Cancel stops a queued or running job.
func (s *Service) Cancel(id string) (Run, error) {
	s.mu.Lock()
	t, ok := s.runs[id]
	if !ok {
		s.mu.Unlock()
		return Run{}, ErrRunNotFound
	}
	if t.run.Status.Finished() {
		run := t.run
		s.mu.Unlock()
		return run, ErrRunFinished
	}
	t.cancel()
	queued := t.run.Status == StatusQueued
	if queued {
		s.finishLocked(t, StatusCancelled, "", nil)
	}
	run := t.run
	s.mu.Unlock()

	if queued {
		s.finished(run)
	}
	return run, nil
}

// Result returns the output of a completed job.
func (s *Service) Result(ctx context.Context, id string) (Output, error) {
	run, err := s.Get(id)
	if err != nil {
		return Output{}, err
	}
	if run.Status != StatusCompleted {
		return Output{}, ErrRunNotFinished
	}
	return s.Results.Load(ctx, id)
}

func (s *Service) worker(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-s.queue:
			s.runTask(t)
		}
	}
}

func (s *Service) runTask(t *task) {
	s.mu.Lock()
	if t.run.Status != StatusQueued {
		s.mu.Unlock()
		return
	}
	started := s.Now()
	t.run.Status = StatusRunning
	t.run.StartedAt = &started
	run := t.run
	s.mu.Unlock()

	if s.Recorder != nil {
		if err := s.Recorder.Started(t.ctx, run); err != nil {
			slog.Warn("job run insert failed", "runId", run.ID, "err", err)
		}
	}

	ctx := t.ctx
	if s.Opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(t.ctx, s.Opts.Timeout)
		defer cancel()
	}
	out, err := t.fn(ctx)
	if err == nil {
		if saveErr := s.Results.Save(context.WithoutCancel(ctx), run.ID, out, s.Opts.ResultTTL); saveErr != nil {
			slog.Error("job result save failed", "runId", run.ID, "err", saveErr)
			err = errors.New("storing the result failed")
		}
	}

	s.mu.Lock()
	switch {
	case err == nil:
		s.finishLocked(t, StatusCompleted, "", out.Details)
	case t.ctx.Err() != nil:
		s.finishLocked(t, StatusCancelled, "cancelled", nil)
	case errors.Is(err, context.DeadlineExceeded):
		s.finishLocked(t, StatusFailed, "timed out", nil)
	default:
		s.finishLocked(t, StatusFailed, err.Error(), nil)
	}
	run = t.run
	s.mu.Unlock()

	if err != nil && run.Status == StatusFailed {
		slog.Warn("job run failed", "jobType", run.Type, "runId", run.ID, "err", err)
	}
	s.finished(run)
}

func (s *Service) finishLocked(t *task, status Status, reason string, details any) {
	done := s.Now()
	t.run.Status = status
	t.run.Error = reason
	t.run.Details = details
	t.run.CompletedAt = &done
	t.cancel()
}

func (s *Service) finished(run Run) {
	if s.Recorder != nil {
		if err := s.Recorder.Finished(context.Background(), run); err != nil {
			slog.Warn("job run update failed", "runId", run.ID, "err", err)
		}
	}
	if s.OnFinish != nil {
		s.OnFinish(run)
	}
}

// pruneLocked forgets finished runs whose results have expired.
func (s *Service) pruneLocked() {
	if s.Opts.ResultTTL <= 0 {
		return
	}
	cutoff := s.Now().Add(-s.Opts.ResultTTL)
	for id, t := range s.runs {
		if t.run.CompletedAt != nil && t.run.CompletedAt.Before(cutoff) {
			delete(s.runs, id)
		}
	}
}
