package sleeptimer

import (
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

func TestTimerFiresOnce(t *testing.T) {
	timer := NewWithTick(10 * time.Millisecond)

	var fired atomic.Int32
	timer.Start(50*time.Millisecond, func() { fired.Add(1) })

	if !timer.IsActive() {
		t.Fatal("IsActive() = false right after Start")
	}
	if r := timer.Remaining(); r != 50*time.Millisecond {
		t.Errorf("Remaining() = %v, want 50ms", r)
	}

	waitFor(t, time.Second, func() bool { return fired.Load() > 0 })
	time.Sleep(50 * time.Millisecond)

	if got := fired.Load(); got != 1 {
		t.Errorf("completion fired %d times, want 1", got)
	}
	if timer.IsActive() {
		t.Error("IsActive() = true after expiry")
	}
	if r := timer.Remaining(); r != 0 {
		t.Errorf("Remaining() = %v after expiry, want 0", r)
	}
}

func TestTimerFiveSecondCountdown(t *testing.T) {
	if testing.Short() {
		t.Skip("real-time countdown")
	}

	timer := New()

	var fired atomic.Int32
	timer.Start(5*time.Second, func() { fired.Add(1) })

	time.Sleep(5500 * time.Millisecond)

	if got := fired.Load(); got != 1 {
		t.Errorf("completion fired %d times, want 1", got)
	}
	if timer.IsActive() {
		t.Error("IsActive() = true after expiry")
	}
}

func TestTimerCancelPreventsCallback(t *testing.T) {
	timer := NewWithTick(10 * time.Millisecond)

	var fired atomic.Int32
	timer.Start(100*time.Millisecond, func() { fired.Add(1) })
	time.Sleep(20 * time.Millisecond)
	timer.Cancel()

	time.Sleep(150 * time.Millisecond)

	if got := fired.Load(); got != 0 {
		t.Errorf("completion fired %d times after Cancel, want 0", got)
	}
	if timer.IsActive() {
		t.Error("IsActive() = true after Cancel")
	}
	if r := timer.Remaining(); r != 0 {
		t.Errorf("Remaining() = %v after Cancel, want 0", r)
	}
}

func TestTimerRestartReplacesPrevious(t *testing.T) {
	timer := NewWithTick(10 * time.Millisecond)

	var first, second atomic.Int32
	timer.Start(40*time.Millisecond, func() { first.Add(1) })
	timer.Start(80*time.Millisecond, func() { second.Add(1) })

	waitFor(t, time.Second, func() bool { return second.Load() > 0 })
	time.Sleep(30 * time.Millisecond)

	if got := first.Load(); got != 0 {
		t.Errorf("replaced timer fired %d times, want 0", got)
	}
	if got := second.Load(); got != 1 {
		t.Errorf("current timer fired %d times, want 1", got)
	}
}

func TestTimerDecrements(t *testing.T) {
	timer := NewWithTick(20 * time.Millisecond)

	ticks := make(chan time.Duration, 10)
	timer.OnTick(func(r time.Duration) { ticks <- r })
	timer.Start(60*time.Millisecond, nil)

	want := []time.Duration{40 * time.Millisecond, 20 * time.Millisecond, 0}
	for _, w := range want {
		select {
		case got := <-ticks:
			if got != w {
				t.Errorf("tick remaining = %v, want %v", got, w)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for tick")
		}
	}
}

func TestTimerNonPositiveDurationCancels(t *testing.T) {
	timer := NewWithTick(10 * time.Millisecond)

	var fired atomic.Int32
	timer.Start(time.Minute, func() { fired.Add(1) })
	timer.Start(0, func() { fired.Add(1) })

	if timer.IsActive() {
		t.Error("IsActive() = true after Start(0)")
	}
	time.Sleep(30 * time.Millisecond)
	if fired.Load() != 0 {
		t.Error("callback fired after Start(0)")
	}
}
