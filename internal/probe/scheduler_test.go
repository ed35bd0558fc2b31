package probe

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerRepeatsRunsUntilStopped(t *testing.T) {
	dialer := &recordingDialer{reply: TextMessage("pong")}
	h := NewHarness("ws://fake", []Probe{{Name: "p", URL: "ws://fake/p", Timeout: time.Second}}, dialer, nil)

	var mu sync.Mutex
	var reports []Report
	s := NewScheduler(h, 20*time.Millisecond, func(r Report, err error) {
		assert.NoError(t, err)
		mu.Lock()
		reports = append(reports, r)
		mu.Unlock()
	}, nil)
	s.Start()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(reports) >= 3
	}, 2*time.Second, 5*time.Millisecond)
	s.Stop()

	select {
	case <-s.Done():
	default:
		t.Fatal("scheduler still running after Stop")
	}

	mu.Lock()
	defer mu.Unlock()
	seen := make(map[string]bool)
	for _, r := range reports {
		assert.True(t, r.Passed)
		assert.False(t, seen[r.RunID], "run id reused")
		seen[r.RunID] = true
	}
	assert.False(t, h.Running())
}

func TestSchedulerStopCancelsInFlightRun(t *testing.T) {
	dialer := &recordingDialer{reply: TextMessage("x"), gate: make(chan struct{})}
	h := NewHarness("ws://fake", []Probe{{Name: "held", URL: "ws://fake/held", Timeout: 10 * time.Second}}, dialer, nil)

	called := false
	s := NewScheduler(h, time.Hour, func(Report, error) { called = true }, nil)
	s.Start()
	require.Eventually(t, func() bool { return len(dialer.dialed()) == 1 }, time.Second, 5*time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not cancel the in-flight run")
	}
	assert.False(t, called)
}
