package jobs

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/probelab/uitester/logger"
	"github.com/probelab/uitester/plan"
	"github.com/probelab/uitester/report"
)

// Executor runs one job end to end. *engine.Engine satisfies this.
type Executor interface {
	Execute(ctx context.Context, req plan.Request, p plan.Plan) report.Result
}

// Handle tracks one submitted job. Wait blocks until the job finishes;
// Done exposes the same completion for select loops.
type Handle struct {
	JobID  uuid.UUID
	done   chan struct{}
	result report.Result
}

func newHandle(id uuid.UUID) *Handle {
	return &Handle{JobID: id, done: make(chan struct{})}
}

// Done is closed once the job has finished and its result is stored.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the job finishes or the context is cancelled.
func (h *Handle) Wait(ctx context.Context) (report.Result, error) {
	select {
	case <-h.done:
		return h.result, nil
	case <-ctx.Done():
		return report.Result{}, ctx.Err()
	}
}

// Stats is a snapshot of the dispatcher's completion accounting.
type Stats struct {
	Submitted int `json:"submitted"`
	Completed int `json:"completed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Stopped   int `json:"stopped"`
}

// Dispatcher runs submitted jobs on a bounded pool of workers. Every
// submission is persisted before it is queued, workers claim jobs
// atomically through the store, and each submission gets a handle so
// callers can await or poll completion instead of firing and
// forgetting.
type Dispatcher struct {
	work       chan struct{}
	maxWorkers int
	store      Store
	runner     Executor
	logger     logger.Logger

	mu      sync.Mutex
	handles map[uuid.UUID]*Handle
	stats   Stats

	inflight sync.WaitGroup
}

// NewDispatcher creates a dispatcher with the given worker count.
func NewDispatcher(maxWorkers int, store Store, runner Executor, log logger.Logger) *Dispatcher {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &Dispatcher{
		work:       make(chan struct{}, maxWorkers),
		maxWorkers: maxWorkers,
		store:      store,
		runner:     runner,
		logger:     log,
		handles:    make(map[uuid.UUID]*Handle),
	}
}

// Start spawns the worker goroutines. They stop when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	d.logger.Info(ctx, "starting dispatcher", map[string]interface{}{
		"max_workers": d.maxWorkers,
	})
	for i := 0; i < d.maxWorkers; i++ {
		go d.worker(ctx, i)
	}
}

// Submit persists a job and queues it for execution. The returned
// handle completes when a worker finishes the job.
func (d *Dispatcher) Submit(ctx context.Context, req plan.Request, p plan.Plan) (*Handle, error) {
	j := &Job{
		ID:      uuid.New(),
		Status:  StatusCreated,
		Request: RequestJSON(req),
		Plan:    PlanJSON(p),
	}

	// Register the handle before the row becomes claimable so a fast
	// worker cannot finish the job while the handle is still missing.
	h := newHandle(j.ID)
	d.mu.Lock()
	d.handles[j.ID] = h
	d.mu.Unlock()
	d.inflight.Add(1)

	if err := d.store.Create(ctx, j); err != nil {
		d.mu.Lock()
		delete(d.handles, j.ID)
		d.mu.Unlock()
		d.inflight.Done()
		return nil, err
	}

	d.mu.Lock()
	d.stats.Submitted++
	d.mu.Unlock()

	// Nudge a worker; the channel is bounded, so when every worker is
	// busy the job simply waits in the store until one drains it.
	select {
	case d.work <- struct{}{}:
	default:
	}

	return h, nil
}

// Status reports the stored status of a job.
func (d *Dispatcher) Status(ctx context.Context, id uuid.UUID) (Status, error) {
	j, err := d.store.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return j.Status, nil
}

// Stop cancels a queued job. The store transition fails for jobs that
// are already running or finished; on success the job's handle is
// resolved so waiters unblock and the accounting still counts it.
func (d *Dispatcher) Stop(ctx context.Context, id uuid.UUID) error {
	if err := d.store.Update(ctx, id, Stopped()); err != nil {
		return err
	}

	d.logger.Info(ctx, "job stopped", map[string]interface{}{
		"job_id": id.String(),
	})

	d.mu.Lock()
	h, ok := d.handles[id]
	if ok {
		delete(d.handles, id)
	}
	d.stats.Completed++
	d.stats.Stopped++
	d.mu.Unlock()

	if ok {
		h.result = report.Result{ErrorMessage: "job stopped before execution"}
		close(h.done)
		d.inflight.Done()
	}
	return nil
}

// Stats returns a snapshot of the completion accounting.
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// Drain blocks until every submitted job has completed or the context
// is cancelled.
func (d *Dispatcher) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) worker(ctx context.Context, id int) {
	d.logger.Info(ctx, "worker started", map[string]interface{}{
		"worker_id": id,
	})
	for {
		select {
		case <-d.work:
			// Drain all waiting jobs before going back to sleep.
			for {
				j, err := d.store.ClaimNextCreated(ctx)
				if err != nil {
					d.logger.Error(ctx, "worker failed to claim job", map[string]interface{}{
						"worker_id": id,
						"error":     err.Error(),
					})
					break
				}
				if j == nil {
					break
				}
				d.process(ctx, id, j)
			}
		case <-ctx.Done():
			d.logger.Info(ctx, "worker stopping", map[string]interface{}{
				"worker_id": id,
			})
			return
		}
	}
}

func (d *Dispatcher) process(ctx context.Context, workerID int, j *Job) {
	d.logger.Info(ctx, "worker processing job", map[string]interface{}{
		"worker_id": workerID,
		"job_id":    j.ID.String(),
	})

	result := d.runner.Execute(ctx, plan.Request(j.Request), plan.Plan(j.Plan))

	status := StatusFailed
	if result.Success {
		status = StatusSuccess
	}
	stored := ResultJSON(result)
	if err := d.store.Complete(ctx, j.ID, status, &stored); err != nil {
		d.logger.Error(ctx, "failed to record job completion", map[string]interface{}{
			"job_id": j.ID.String(),
			"error":  err.Error(),
		})
	}

	d.complete(j.ID, result)
}

// complete resolves the handle for a finished job and updates the
// accounting. Jobs claimed without a live handle (e.g. left over from
// a previous process) only update counters.
func (d *Dispatcher) complete(id uuid.UUID, result report.Result) {
	d.mu.Lock()
	h, ok := d.handles[id]
	if ok {
		delete(d.handles, id)
	}
	d.stats.Completed++
	if result.Success {
		d.stats.Succeeded++
	} else {
		d.stats.Failed++
	}
	d.mu.Unlock()

	if ok {
		h.result = result
		close(h.done)
		d.inflight.Done()
	}
}
