package mraid

import (
	"sync/atomic"
	"testing"
)

func TestLoopOrdering(t *testing.T) {
	loop := NewLoop()
	defer loop.Stop()

	var order []int
	for i := 0; i < 10; i++ {
		i := i
		loop.Post(func() { order = append(order, i) })
	}
	loop.Flush()

	for i, got := range order {
		if got != i {
			t.Fatalf("task %d ran out of order: got %d", i, got)
		}
	}
}

func TestLoopPostAfterStop(t *testing.T) {
	loop := NewLoop()
	loop.Stop()

	if loop.Post(func() { t.Error("task ran after stop") }) {
		t.Error("Post() should return false after Stop()")
	}
	if loop.Call(func() {}) {
		t.Error("Call() should return false after Stop()")
	}
}

func TestLoopStopDrainsQueue(t *testing.T) {
	loop := NewLoop()

	var ran atomic.Int32
	for i := 0; i < 100; i++ {
		loop.Post(func() { ran.Add(1) })
	}
	loop.Stop()

	if ran.Load() != 100 {
		t.Errorf("expected 100 tasks drained, got %d", ran.Load())
	}
}

func TestLoopStopIdempotent(t *testing.T) {
	loop := NewLoop()
	loop.Stop()
	loop.Stop()
}
