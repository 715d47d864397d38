package async

import "sync"

// task is a named unit of deferred work.
type task struct {
	name string
	fn   func() error
}

// FailureHook observes deferred tasks that returned an error, after the
// failure has been logged.
type FailureHook func(name string, err error)

// Executor runs submitted tasks serially on a single background goroutine,
// never inside the submitter's call stack. Every memory write made before
// Defer is visible to the task, so state mutations settle before dependent
// side effects run. This is the Go analogue of scheduling work onto the next
// tick.
//
// Task failures are logged and reported to the optional failure hook; they
// never stop the executor.
type Executor struct {
	logger PanicLogger
	hook   FailureHook

	tasks   chan task
	pending sync.WaitGroup

	closeOnce sync.Once
	done      chan struct{}
}

// ExecutorOption customizes an Executor.
type ExecutorOption func(*Executor)

// WithFailureHook installs a callback invoked for every failed task.
func WithFailureHook(hook FailureHook) ExecutorOption {
	return func(e *Executor) {
		e.hook = hook
	}
}

// NewExecutor starts the executor's worker goroutine. Callers own the
// lifecycle and must Close it when done.
func NewExecutor(logger PanicLogger, opts ...ExecutorOption) *Executor {
	e := &Executor{
		logger: logger,
		tasks:  make(chan task, 64),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	Go(logger, "async.executor", e.run)
	return e
}

func (e *Executor) run() {
	for t := range e.tasks {
		e.runOne(t)
	}
	close(e.done)
}

func (e *Executor) runOne(t task) {
	defer e.pending.Done()
	defer Recover(e.logger, "task "+t.name)

	if err := t.fn(); err != nil {
		if e.logger != nil {
			e.logger.Error("deferred task %s failed: %v", t.name, err)
		}
		if e.hook != nil {
			e.hook(t.name, err)
		}
	}
}

// Defer queues fn to run on the executor goroutine. Tasks run one at a time
// in submission order. Submitting to a closed executor panics, the same way
// sending on a closed channel does.
func (e *Executor) Defer(name string, fn func() error) {
	e.pending.Add(1)
	e.tasks <- task{name: name, fn: fn}
}

// Drain blocks until every task submitted so far has finished. Tests use it
// to observe deferred side effects deterministically.
func (e *Executor) Drain() {
	e.pending.Wait()
}

// Close drains outstanding tasks, stops the worker and waits for it to exit.
func (e *Executor) Close() {
	e.closeOnce.Do(func() {
		e.pending.Wait()
		close(e.tasks)
		<-e.done
	})
}
