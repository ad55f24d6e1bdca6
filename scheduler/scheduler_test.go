package scheduler

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitRunsAndReportsExecuted(t *testing.T) {
	s := New(2)

	release := make(chan struct{})
	require.NoError(t, s.Submit("j1", func() error {
		<-release
		return nil
	}))
	close(release)

	ev := waitForEvent(t, s)
	assert.Equal(t, "j1", ev.JobID)
	assert.Equal(t, Executed, ev.Outcome)

	s.Shutdown(true)
}

func TestSubmitReportsError(t *testing.T) {
	s := New(2)
	boom := errors.New("plugin exploded")

	require.NoError(t, s.Submit("j1", func() error { return boom }))

	ev := waitForEvent(t, s)
	assert.Equal(t, Error, ev.Outcome)
	assert.ErrorIs(t, ev.Err, boom)

	s.Shutdown(true)
}

func TestSubmitRejectsConcurrentSameID(t *testing.T) {
	s := New(2)

	started := make(chan struct{})
	release := make(chan struct{})
	require.NoError(t, s.Submit("j1", func() error {
		close(started)
		<-release
		return nil
	}))
	<-started

	err := s.Submit("j1", func() error { return nil })
	assert.ErrorIs(t, err, ErrConflict)

	close(release)
	waitForEvent(t, s)
	s.Shutdown(true)
}

func TestSubmitAllowsDifferentIDsConcurrently(t *testing.T) {
	s := New(2)

	var wg sync.WaitGroup
	wg.Add(2)
	require.NoError(t, s.Submit("a", func() error { wg.Done(); return nil }))
	require.NoError(t, s.Submit("b", func() error { wg.Done(); return nil }))

	waitForEvent(t, s)
	waitForEvent(t, s)
	s.Shutdown(true)
}

func TestSubmitSameIDAgainAfterCompletion(t *testing.T) {
	s := New(2)

	require.NoError(t, s.Submit("j1", func() error { return nil }))
	waitForEvent(t, s)

	require.NoError(t, s.Submit("j1", func() error { return nil }))
	waitForEvent(t, s)

	s.Shutdown(true)
}

func TestShutdownWaitsForInFlight(t *testing.T) {
	s := New(1)

	finished := false
	release := make(chan struct{})
	require.NoError(t, s.Submit("j1", func() error {
		<-release
		finished = true
		return nil
	}))

	go func() {
		time.Sleep(50 * time.Millisecond)
		close(release)
	}()

	s.Shutdown(true)
	assert.True(t, finished)
}

func TestShutdownRunsQueuedJobToCompletion(t *testing.T) {
	s := New(1)

	blockRelease := make(chan struct{})
	require.NoError(t, s.Submit("running", func() error {
		<-blockRelease
		return nil
	}))

	var queuedFinished bool
	var mu sync.Mutex
	require.NoError(t, s.Submit("queued", func() error {
		mu.Lock()
		queuedFinished = true
		mu.Unlock()
		return nil
	}))

	collected := make(chan []Outcome, 1)
	go func() {
		var outcomes []Outcome
		for ev := range s.Events() {
			outcomes = append(outcomes, ev.Outcome)
		}
		collected <- outcomes
	}()

	go func() {
		time.Sleep(50 * time.Millisecond)
		close(blockRelease)
	}()

	s.Shutdown(true)

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, queuedFinished, "a job still waiting for a worker slot at shutdown must run to completion, not be reported Missed")

	outcomes := <-collected
	assert.ElementsMatch(t, []Outcome{Executed, Executed}, outcomes)
}

func TestSubmitAfterShutdownIsRejected(t *testing.T) {
	s := New(1)
	s.Shutdown(true)

	err := s.Submit("j1", func() error { return nil })
	assert.ErrorIs(t, err, ErrShuttingDown)
}

func waitForEvent(t *testing.T, s *Scheduler) Event {
	t.Helper()
	select {
	case ev := <-s.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for scheduler event")
		return Event{}
	}
}
