package mraid

import "sync"

// Loop is a single-goroutine cooperative task queue. Every event dispatch
// and listener replay in a session goes through one Loop, so ordering
// guarantees are enforced by a single scheduler rather than scattered
// deferred calls. The surface adapter also executes creative scripts on the
// loop, which keeps the VM single-threaded.
type Loop struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []func()
	stopped bool
	done    chan struct{}
}

// NewLoop creates and starts a task loop.
func NewLoop() *Loop {
	l := &Loop{done: make(chan struct{})}
	l.cond = sync.NewCond(&l.mu)
	go l.run()
	return l
}

func (l *Loop) run() {
	defer close(l.done)
	for {
		l.mu.Lock()
		for len(l.queue) == 0 && !l.stopped {
			l.cond.Wait()
		}
		if l.stopped && len(l.queue) == 0 {
			l.mu.Unlock()
			return
		}
		task := l.queue[0]
		l.queue = l.queue[1:]
		l.mu.Unlock()

		task()
	}
}

// Post schedules fn for the next tick. Returns false if the loop has
// stopped; the task is dropped in that case.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return false
	}
	l.queue = append(l.queue, fn)
	l.cond.Signal()
	return true
}

// Call runs fn on the loop and waits for it to finish. It returns false
// without running fn if the loop has stopped.
func (l *Loop) Call(fn func()) bool {
	ran := make(chan struct{})
	if !l.Post(func() {
		defer close(ran)
		fn()
	}) {
		return false
	}
	<-ran
	return true
}

// Flush blocks until every task queued before the call has run.
func (l *Loop) Flush() {
	l.Call(func() {})
}

// Stop drains remaining tasks and terminates the loop goroutine.
func (l *Loop) Stop() {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		<-l.done
		return
	}
	l.stopped = true
	l.cond.Broadcast()
	l.mu.Unlock()
	<-l.done
}
