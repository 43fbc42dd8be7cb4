package playground

import (
	"context"
	"fmt"
	"sync"

	"github.com/sourcegraph/conc/panics"

	"github.com/Iron-Ham/playground/internal/errors"
	"github.com/Iron-Ham/playground/internal/logging"
)

// Loop runs tasks one at a time, to completion, in the order they were
// posted. All orchestrator state is owned by the loop goroutine; other
// goroutines reach it only by posting tasks.
//
// Asynchronous work started with Go runs on its own goroutine and hands its
// completion back as a new task, so results are applied on the loop like any
// other input.
type Loop struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []func()
	wake    chan struct{}
	ctx     context.Context
	running bool
	stopped bool
	// pending counts queued tasks, the running task and in-flight async work.
	pending int

	logger *logging.Logger
}

// NewLoop creates a loop. Nothing runs until Run is called.
func NewLoop(logger *logging.Logger) *Loop {
	if logger == nil {
		logger = logging.NopLogger()
	}
	l := &Loop{
		wake:   make(chan struct{}, 1),
		ctx:    context.Background(),
		logger: logger.WithComponent("loop"),
	}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// Post queues task. It returns false if the loop has stopped.
func (l *Loop) Post(task func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, task)
	l.pending++
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Go runs work on a new goroutine with the loop's context and posts the
// function it returns (if any) back to the loop. A panic in work is logged
// and the completion is dropped.
func (l *Loop) Go(work func(ctx context.Context) func()) {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.pending++
	ctx := l.ctx
	l.mu.Unlock()

	go func() {
		defer l.done()

		var complete func()
		if r := panics.Try(func() { complete = work(ctx) }); r != nil {
			l.logger.Error("async task panicked",
				"panic", fmt.Sprint(r.Value),
				"stack", string(r.Stack),
			)
			return
		}
		if complete != nil {
			l.Post(complete)
		}
	}()
}

// Run processes tasks until ctx is done. Tasks still queued at that point are
// dropped and in-flight async completions are ignored.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.running || l.stopped {
		l.mu.Unlock()
		return errors.ErrLoopStopped
	}
	l.running = true
	l.ctx = ctx
	l.mu.Unlock()

	defer l.stop()

	for {
		task, ok := l.next()
		if !ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-l.wake:
			}
			continue
		}
		if ctx.Err() != nil {
			l.done()
			return ctx.Err()
		}
		l.runTask(task)
	}
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	task := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return task, true
}

// runTask keeps the loop alive if a task panics.
func (l *Loop) runTask(task func()) {
	defer l.done()
	if r := panics.Try(task); r != nil {
		l.logger.Error("loop task panicked",
			"panic", fmt.Sprint(r.Value),
			"stack", string(r.Stack),
		)
	}
}

func (l *Loop) done() {
	l.mu.Lock()
	l.pending--
	if l.pending <= 0 {
		l.pending = 0
		l.cond.Broadcast()
	}
	l.mu.Unlock()
}

func (l *Loop) stop() {
	l.mu.Lock()
	l.stopped = true
	l.running = false
	l.pending -= len(l.queue)
	l.queue = nil
	if l.pending <= 0 {
		l.pending = 0
	}
	l.cond.Broadcast()
	l.mu.Unlock()
}

// Settle blocks until no task is queued or running and no async work is in
// flight. Once the loop has stopped it returns as soon as in-flight async
// work has finished.
func (l *Loop) Settle() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for l.pending > 0 {
		l.cond.Wait()
	}
}

// Stopped reports whether Run has returned.
func (l *Loop) Stopped() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stopped
}
