// Package tick provides the fixed-rate logical clock that all decay timers
// run on. Delays are counted in ticks at the rate the loop is driven at.
package tick

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

// TicksPerSecond is the host's nominal tick rate, used when none is set.
const TicksPerSecond = 20

// TaskID identifies a scheduled task. The zero value is never issued.
type TaskID uint64

// Scheduler is the timer surface the engine schedules against.
type Scheduler interface {
	Now() int64
	After(delay int64, fn func()) TaskID
	Every(delay, period int64, fn func()) TaskID
	Cancel(id TaskID)
}

// Seconds converts seconds to ticks at rateHz, never less than one tick.
// A non-positive rate means TicksPerSecond.
func Seconds(s, rateHz int) int64 {
	if rateHz < 1 {
		rateHz = TicksPerSecond
	}
	n := int64(s) * int64(rateHz)
	if n < 1 {
		return 1
	}
	return n
}

type task struct {
	id        TaskID
	due       int64
	period    int64
	fn        func()
	cancelled bool
	index     int
}

type taskQueue []*task

func (q taskQueue) Len() int { return len(q) }
func (q taskQueue) Less(i, j int) bool {
	if q[i].due != q[j].due {
		return q[i].due < q[j].due
	}
	return q[i].id < q[j].id
}
func (q taskQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}
func (q *taskQueue) Push(x any) {
	t := x.(*task)
	t.index = len(*q)
	*q = append(*q, t)
}
func (q *taskQueue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return t
}

type request struct {
	fn   func()
	done chan struct{}
}

// Loop is a single-goroutine tick scheduler. Tasks due on the same tick run
// in the order they were scheduled.
type Loop struct {
	now   int64
	seq   TaskID
	queue taskQueue
	tasks map[TaskID]*task

	mu      sync.Mutex
	running bool
	stopped chan struct{}
	inbox   chan request
}

var _ Scheduler = (*Loop)(nil)

// NewLoop creates a stopped loop at tick 0.
func NewLoop() *Loop {
	return &Loop{
		tasks: make(map[TaskID]*task),
		inbox: make(chan request),
	}
}

// Now returns the current tick.
func (l *Loop) Now() int64 {
	return l.now
}

// After runs fn once, delay ticks from now.
func (l *Loop) After(delay int64, fn func()) TaskID {
	return l.schedule(delay, 0, fn)
}

// Every runs fn after delay ticks and then every period ticks until cancelled.
func (l *Loop) Every(delay, period int64, fn func()) TaskID {
	if period < 1 {
		period = 1
	}
	return l.schedule(delay, period, fn)
}

func (l *Loop) schedule(delay, period int64, fn func()) TaskID {
	if delay < 1 {
		delay = 1
	}
	l.seq++
	t := &task{id: l.seq, due: l.now + delay, period: period, fn: fn}
	l.tasks[t.id] = t
	heap.Push(&l.queue, t)
	return t.id
}

// Cancel stops a task. Cancelling an unknown or finished task is a no-op.
func (l *Loop) Cancel(id TaskID) {
	t, ok := l.tasks[id]
	if !ok {
		return
	}
	t.cancelled = true
	delete(l.tasks, id)
}

// Pending returns the number of live tasks.
func (l *Loop) Pending() int {
	return len(l.tasks)
}

// Step advances one tick and runs every task due on it.
func (l *Loop) Step() {
	l.now++
	for l.queue.Len() > 0 && l.queue[0].due <= l.now {
		t := heap.Pop(&l.queue).(*task)
		if t.cancelled {
			continue
		}
		if t.period > 0 {
			t.due = l.now + t.period
			heap.Push(&l.queue, t)
		} else {
			delete(l.tasks, t.id)
		}
		t.fn()
	}
}

// Advance runs n ticks back to back.
func (l *Loop) Advance(n int64) {
	for i := int64(0); i < n; i++ {
		l.Step()
	}
}

// Do runs fn on the tick goroutine and waits for it. When the loop is not
// running, fn runs on the caller's goroutine.
func (l *Loop) Do(fn func()) {
	l.mu.Lock()
	if !l.running {
		defer l.mu.Unlock()
		fn()
		return
	}
	stopped := l.stopped
	l.mu.Unlock()

	req := request{fn: fn, done: make(chan struct{})}
	select {
	case l.inbox <- req:
		<-req.done
	case <-stopped:
		l.Do(fn)
	}
}

// Run drives the loop at rateHz until ctx is cancelled. Requests queued with
// Do are served between ticks.
func (l *Loop) Run(ctx context.Context, rateHz int) {
	if rateHz < 1 {
		rateHz = TicksPerSecond
	}
	l.mu.Lock()
	l.running = true
	l.stopped = make(chan struct{})
	l.mu.Unlock()

	ticker := time.NewTicker(time.Second / time.Duration(rateHz))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.mu.Lock()
			l.running = false
			close(l.stopped)
			l.mu.Unlock()
			return
		case req := <-l.inbox:
			req.fn()
			close(req.done)
		case <-ticker.C:
			l.Step()
		}
	}
}
