package orchestrator

import (
	"log/slog"
	"sync"

	"weather-insight/models"
)

// DefaultAsyncBuffer is the queue length used when NewAsyncListener gets a non-positive buffer
const DefaultAsyncBuffer = 32

// AsyncListener moves a slow listener, such as a broker publish or a database
// write, off the search path. Snapshots are handed to fn on a single goroutine
// in the order they were received; when the queue is full new snapshots are
// dropped and logged.
type AsyncListener struct {
	name   string
	fn     Listener
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan models.Snapshot
	done   chan struct{}
}

func NewAsyncListener(name string, fn Listener, buffer int, logger *slog.Logger) *AsyncListener {
	if buffer <= 0 {
		buffer = DefaultAsyncBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	a := &AsyncListener{
		name:   name,
		fn:     fn,
		logger: logger,
		queue:  make(chan models.Snapshot, buffer),
		done:   make(chan struct{}),
	}
	go a.run()
	return a
}

// Listen queues snap without blocking. It is a no-op after Close.
func (a *AsyncListener) Listen(snap models.Snapshot) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return
	}
	select {
	case a.queue <- snap:
	default:
		a.logger.Warn("listener queue full, dropping snapshot", "listener", a.name, "query_id", snap.QueryID, "phase", snap.State.Phase)
	}
}

// Close stops accepting snapshots and waits until the queued ones are delivered
func (a *AsyncListener) Close() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()
	<-a.done
}

func (a *AsyncListener) run() {
	defer close(a.done)
	for snap := range a.queue {
		callListener(a.logger, a.fn, snap)
	}
}
