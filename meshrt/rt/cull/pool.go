package cull

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
)

const (
	poolQueueSize   = 256
	poolIdleTimeout = time.Second
)

// Pool runs cull batches on a fixed set of reused goroutines. A nil Pool
// runs every task inline on the caller.
//
// Workers share one stop channel that Close closes, so every worker exits.
// worker.DynamicWorkerPool.Stop sends per-worker ids on a shared channel and a
// worker may drop an id that is not its own.
type Pool struct {
	workers int
	tasks   chan worker.Task
	stop    chan int
	nextID  atomic.Int64
	closed  atomic.Bool
	once    sync.Once
}

func NewPool(workers int) *Pool {
	p := &Pool{
		workers: max(workers, 1),
		tasks:   make(chan worker.Task, poolQueueSize),
		stop:    make(chan int),
	}
	for i := range p.workers {
		worker.NewWorker(i, p.tasks, p.stop, poolIdleTimeout, nil).Start()
	}
	return p
}

func (p *Pool) Workers() int {
	if p == nil {
		return 0
	}
	return p.workers
}

// Close stops the workers. It is safe to call more than once. Tasks enqueued
// afterwards run inline; Close must not race with Enqueue.
func (p *Pool) Close() {
	if p == nil {
		return
	}
	p.once.Do(func() {
		p.closed.Store(true)
		close(p.stop)
	})
}

// Task is the handle of one enqueued function.
type Task[T any] struct {
	wg  sync.WaitGroup
	val T
	err error
}

// Get blocks until the task has run.
func (t *Task[T]) Get() (T, error) {
	t.wg.Wait()
	return t.val, t.err
}

// Enqueue submits fn. Callers join through Task.Get.
func Enqueue[T any](p *Pool, fn func() (T, error)) *Task[T] {
	t := &Task[T]{}
	t.wg.Add(1)
	run := func() (any, error) {
		defer t.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				t.err = fmt.Errorf("cull task panicked: %v", r)
			}
		}()
		t.val, t.err = fn()
		return nil, t.err
	}
	if p == nil || p.closed.Load() {
		run()
		return t
	}
	p.tasks <- worker.Task{
		ID: int(p.nextID.Add(1)),
		Do: run,
	}
	return t
}
