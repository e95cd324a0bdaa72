// Package concurrency runs the ingest orchestrator's background
// side-effect stage off the request path (spec §4.5 step 5, §9), the
// same shape as the teacher's infrastructure/concurrency worker pool:
// a fixed goroutine pool pulling off a buffered channel, panic-safe per
// worker, restarted on panic. The teacher's pool auto-sizes itself per
// Lambda/ECS/local environment and ships a batch processor alongside it;
// this engine runs as one long-lived process, so Pool keeps the worker
// loop and retry behavior and drops the environment-detection and
// batching machinery that only made sense under Lambda's cold-start
// constraints.
package concurrency

import (
	"context"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"relevance-engine/application/ports"
	"relevance-engine/infrastructure/observability"
	pkgerrors "relevance-engine/pkg/errors"
)

// RetryPolicy bounds the exponential backoff applied to a failed
// SideEffectTask before it is abandoned to the repair sweep (spec §7
// Dependency-transient row: "retry with backoff (bounded); then degrade
// or defer").
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy makes up to three attempts with a doubling backoff
// from 500ms capped at 30s, the same bounded-retry shape the teacher applies to DynamoDB
// throttling in internal/repository/resilience.go.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond, MaxDelay: 30 * time.Second}
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	d := float64(p.BaseDelay) * math.Pow(2, float64(attempt))
	if d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	return time.Duration(d)
}

// Pool is a fixed-size, panic-recovering worker pool implementing
// ports.WorkerPool. Queued tasks that fail are retried per policy; a
// task that exhausts its retries is logged and left for the repair
// sweep (spec §4.5: "If any async step fails after retries, a repair
// job reconciles").
type Pool struct {
	tasks   chan ports.SideEffectTask
	policy  RetryPolicy
	logger  *zap.Logger
	wg      sync.WaitGroup

	mu      sync.RWMutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewPool starts a Pool with the given worker count and queue capacity.
func NewPool(ctx context.Context, workers, queueCapacity int, policy RetryPolicy, logger *zap.Logger) *Pool {
	if workers <= 0 {
		workers = 4
	}
	if queueCapacity <= 0 {
		queueCapacity = 256
	}
	poolCtx, cancel := context.WithCancel(ctx)
	p := &Pool{
		tasks:   make(chan ports.SideEffectTask, queueCapacity),
		policy:  policy,
		logger:  logger,
		ctx:     poolCtx,
		cancel:  cancel,
		running: true,
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	return p
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			p.run(task)
		}
	}
}

func (p *Pool) run(task ports.SideEffectTask) {
	defer func() {
		if r := recover(); r != nil {
			observability.Get().SideEffectTasks.WithLabelValues("panicked").Inc()
			if p.logger != nil {
				p.logger.Error("side-effect task panicked", zap.String("key", task.Key), zap.Any("recover", r))
			}
		}
	}()

	var lastErr error
	for attempt := 0; attempt < p.policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(p.policy.delay(attempt - 1)):
			case <-p.ctx.Done():
				return
			}
		}
		if err := task.Execute(p.ctx); err != nil {
			lastErr = err
			observability.Get().SideEffectTasks.WithLabelValues("retried").Inc()
			continue
		}
		observability.Get().SideEffectTasks.WithLabelValues("succeeded").Inc()
		return
	}

	observability.Get().SideEffectTasks.WithLabelValues("failed").Inc()
	if p.logger != nil {
		p.logger.Warn("side-effect task exhausted retries, deferring to repair sweep",
			zap.String("key", task.Key), zap.Int("attempts", p.policy.MaxAttempts), zap.Error(lastErr))
	}
}

// Submit queues task for execution, blocking only long enough to detect
// a shutdown or a full queue.
func (p *Pool) Submit(task ports.SideEffectTask) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.running {
		return pkgerrors.NewConflictError("side-effect worker pool is shutting down")
	}
	observability.Get().SideEffectQueueDepth.Set(float64(len(p.tasks)))
	select {
	case p.tasks <- task:
		return nil
	default:
		return pkgerrors.NewCapacityError("side-effect worker pool queue is full")
	}
}

// Stop signals every worker to exit and waits for in-flight tasks to
// finish or be cancelled.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.cancel()
	p.mu.Unlock()
	p.wg.Wait()
}
