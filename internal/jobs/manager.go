// Package jobs is a small in-process executor for work that must not run on
// the request path.
package jobs

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/phishtrack/internal/errs"
)

// Func is one unit of work. The context is canceled when the manager stops.
type Func func(ctx context.Context) error

type task struct {
	id   string
	name string
	fn   Func
}

// Manager runs submitted jobs on a fixed set of workers. Failed jobs are
// logged and dropped.
type Manager struct {
	log     *zap.Logger
	workers int
	queue   chan task

	mu      sync.RWMutex
	started bool
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager constructs a manager with the given worker count and queue size.
func NewManager(log *zap.Logger, workers, queueSize int) *Manager {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 64
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		log:     log,
		workers: workers,
		queue:   make(chan task, queueSize),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the workers. Calling it twice is a no-op.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started || m.stopped {
		return
	}
	m.started = true
	for i := 0; i < m.workers; i++ {
		m.wg.Add(1)
		go m.work()
	}
}

// Submit queues fn without blocking and returns the job id.
func (m *Manager) Submit(name string, fn Func) (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.stopped {
		return "", errs.ErrStopped
	}
	select {
	case m.queue <- task{id: id.String(), name: name, fn: fn}:
		return id.String(), nil
	default:
		return "", fmt.Errorf("job %s: %w", name, errs.ErrQueueFull)
	}
}

// Stop refuses new jobs, lets queued jobs drain for up to timeout and then
// cancels the context of whatever is still running. Jobs that ignore
// cancellation for another timeout are abandoned, so Stop returns within
// twice the timeout.
func (m *Manager) Stop(timeout time.Duration) {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	close(m.queue)
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		m.log.Warn("job manager stop timed out, canceling running jobs")
		m.cancel()
		select {
		case <-done:
		case <-time.After(timeout):
			m.log.Error("jobs still running after cancel, abandoning them")
		}
	}
	m.cancel()
}

func (m *Manager) work() {
	defer m.wg.Done()
	for t := range m.queue {
		m.run(t)
	}
}

func (m *Manager) run(t task) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("job panic",
				zap.String("job", t.id),
				zap.String("name", t.name),
				zap.Any("reason", r),
				zap.ByteString("stack", debug.Stack()),
			)
		}
	}()
	if err := t.fn(m.ctx); err != nil {
		m.log.Error("job failed",
			zap.String("job", t.id),
			zap.String("name", t.name),
			zap.Duration("dur", time.Since(start)),
			zap.Error(err),
		)
		return
	}
	m.log.Debug("job done", zap.String("job", t.id), zap.String("name", t.name), zap.Duration("dur", time.Since(start)))
}
