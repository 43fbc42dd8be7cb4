package playground

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/playground/internal/errors"
)

func runLoop(t *testing.T, l *Loop) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = l.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return cancel
}

func TestLoop_RunsTasksInPostOrder(t *testing.T) {
	l := NewLoop(nil)
	var got []int
	for i := range 5 {
		l.Post(func() { got = append(got, i) })
	}

	runLoop(t, l)
	l.Settle()

	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

func TestLoop_TasksPostedFromTasksRunAfterCurrent(t *testing.T) {
	l := NewLoop(nil)
	runLoop(t, l)

	var got []string
	l.Post(func() {
		l.Post(func() { got = append(got, "inner") })
		got = append(got, "outer")
	})
	l.Settle()

	assert.Equal(t, []string{"outer", "inner"}, got)
}

func TestLoop_GoPostsCompletion(t *testing.T) {
	l := NewLoop(nil)
	runLoop(t, l)

	release := make(chan struct{})
	var mu sync.Mutex
	var order []string
	record := func(s string) {
		mu.Lock()
		defer mu.Unlock()
		order = append(order, s)
	}

	l.Post(func() {
		l.Go(func(context.Context) func() {
			<-release
			return func() { record("completion") }
		})
		record("task")
	})

	settled := make(chan struct{})
	go func() {
		l.Settle()
		close(settled)
	}()

	select {
	case <-settled:
		t.Fatal("Settle returned while async work was in flight")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	select {
	case <-settled:
	case <-time.After(2 * time.Second):
		t.Fatal("Settle did not return after async work finished")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"task", "completion"}, order)
}

func TestLoop_GoWithNilCompletion(t *testing.T) {
	l := NewLoop(nil)
	runLoop(t, l)

	ran := make(chan struct{})
	l.Go(func(context.Context) func() {
		close(ran)
		return nil
	})
	l.Settle()

	select {
	case <-ran:
	default:
		t.Fatal("async work did not run")
	}
}

func TestLoop_SurvivesPanics(t *testing.T) {
	l := NewLoop(nil)
	runLoop(t, l)

	l.Post(func() { panic("task boom") })
	l.Go(func(context.Context) func() { panic("async boom") })

	var ran bool
	l.Post(func() { ran = true })
	l.Settle()

	assert.True(t, ran, "tasks after a panic should still run")
}

func TestLoop_StopDropsQueueAndRejectsPosts(t *testing.T) {
	l := NewLoop(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ran bool
	l.Post(func() { ran = true })

	err := l.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, ran)
	assert.True(t, l.Stopped())
	assert.False(t, l.Post(func() {}), "Post after stop should fail")

	// Settle does not wait for dropped tasks.
	l.Settle()
}

func TestLoop_RunTwice(t *testing.T) {
	l := NewLoop(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = l.Run(ctx)

	err := l.Run(context.Background())
	assert.ErrorIs(t, err, errors.ErrLoopStopped)
}
