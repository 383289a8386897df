package camera

import "sync"

const defaultQueueSize = 16

// Executor runs tasks one at a time, in submission order, on a single
// goroutine. It is the worker context that frames are analyzed on and
// that decode completions are posted back to.
type Executor struct {
	tasks chan func()
	done  chan struct{}

	mu       sync.RWMutex
	shutdown bool
}

// NewExecutor starts the worker goroutine. queueSize <= 0 selects the default.
func NewExecutor(queueSize int) *Executor {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	e := &Executor{
		tasks: make(chan func(), queueSize),
		done:  make(chan struct{}),
	}
	go e.run()
	return e
}

func (e *Executor) run() {
	defer close(e.done)
	for task := range e.tasks {
		task()
	}
}

// Execute queues task. It reports false if the executor was shut down, in
// which case task never runs. Must not be called from a task while the
// queue is full.
func (e *Executor) Execute(task func()) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.shutdown {
		return false
	}
	e.tasks <- task
	return true
}

// Shutdown stops accepting tasks. Tasks already queued still run.
func (e *Executor) Shutdown() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.shutdown {
		return
	}
	e.shutdown = true
	close(e.tasks)
}

// IsShutdown reports whether Shutdown was called.
func (e *Executor) IsShutdown() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.shutdown
}

// Wait blocks until the executor is shut down and its queue is drained.
func (e *Executor) Wait() {
	<-e.done
}
