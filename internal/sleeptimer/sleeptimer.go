// Package sleeptimer implements a one-shot countdown that stops playback when it runs out.
package sleeptimer

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultTick is the countdown resolution.
const DefaultTick = time.Second

// Timer counts down once per tick. Starting a new countdown replaces the running one.
type Timer struct {
	tick time.Duration

	mu        sync.Mutex
	remaining time.Duration
	active    bool
	gen       uint64
	stop      chan struct{}
	onTick    func(time.Duration)
}

func New() *Timer {
	return NewWithTick(DefaultTick)
}

// NewWithTick creates a Timer that decrements by tick every tick.
func NewWithTick(tick time.Duration) *Timer {
	if tick <= 0 {
		tick = DefaultTick
	}
	return &Timer{tick: tick}
}

// OnTick registers a callback invoked with the remaining time after every decrement.
func (t *Timer) OnTick(fn func(remaining time.Duration)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onTick = fn
}

// Start begins a countdown of d. onComplete runs once, on the timer goroutine, when it reaches zero.
// A non-positive d cancels any running countdown.
func (t *Timer) Start(d time.Duration, onComplete func()) {
	t.mu.Lock()
	t.cancelLocked()
	if d <= 0 {
		t.mu.Unlock()
		return
	}

	t.gen++
	gen := t.gen
	stop := make(chan struct{})
	t.stop = stop
	t.remaining = d
	t.active = true
	t.mu.Unlock()

	log.Debug().Dur("duration", d).Msg("Sleep timer started")
	go t.run(gen, stop, onComplete)
}

func (t *Timer) run(gen uint64, stop <-chan struct{}, onComplete func()) {
	ticker := time.NewTicker(t.tick)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		t.mu.Lock()
		if t.gen != gen || !t.active {
			t.mu.Unlock()
			return
		}
		t.remaining -= t.tick
		if t.remaining < 0 {
			t.remaining = 0
		}
		remaining := t.remaining
		onTick := t.onTick
		done := remaining == 0
		if done {
			t.active = false
			t.stop = nil
		}
		t.mu.Unlock()

		if onTick != nil {
			onTick(remaining)
		}

		if done {
			log.Debug().Msg("Sleep timer expired")
			if onComplete != nil {
				onComplete()
			}
			return
		}
	}
}

// Cancel stops the countdown without invoking its completion callback.
func (t *Timer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active {
		log.Debug().Msg("Sleep timer cancelled")
	}
	t.cancelLocked()
}

func (t *Timer) cancelLocked() {
	t.gen++
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
	t.active = false
	t.remaining = 0
}

func (t *Timer) IsActive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// Remaining returns the time left, or zero when inactive.
func (t *Timer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}
