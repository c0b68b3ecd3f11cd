package player

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gopxl/beep/v2"
)

const testSampleRate = beep.SampleRate(1000)

// fakeOutput stands in for the speaker. Tests pull samples by hand with pull.
type fakeOutput struct {
	mu       sync.Mutex
	streamer beep.Streamer
}

func (o *fakeOutput) Play(s beep.Streamer) {
	o.mu.Lock()
	o.streamer = s
	o.mu.Unlock()
}

func (o *fakeOutput) Clear() {
	o.mu.Lock()
	o.streamer = nil
	o.mu.Unlock()
}

func (o *fakeOutput) Lock()                       { o.mu.Lock() }
func (o *fakeOutput) Unlock()                     { o.mu.Unlock() }
func (o *fakeOutput) SampleRate() beep.SampleRate { return testSampleRate }

func (o *fakeOutput) pull(t *testing.T, n int) {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.streamer == nil {
		t.Fatal("nothing is playing on the output")
	}
	o.streamer.Stream(make([][2]float64, n))
}

// chunkDecoder yields one chunk of samples per value received on chunks.
// Closing chunks ends the stream with err.
type chunkDecoder struct {
	ctx    context.Context
	chunks chan int
	err    error
}

func (d *chunkDecoder) Stream(samples [][2]float64) (int, bool) {
	select {
	case <-d.ctx.Done():
		return 0, false
	case n, ok := <-d.chunks:
		if !ok {
			return 0, false
		}
		if n > len(samples) {
			n = len(samples)
		}
		for i := 0; i < n; i++ {
			samples[i] = [2]float64{0.5, 0.5}
		}
		return n, true
	}
}

func (d *chunkDecoder) Err() error     { return d.err }
func (d *chunkDecoder) Len() int       { return 0 }
func (d *chunkDecoder) Position() int  { return 0 }
func (d *chunkDecoder) Seek(int) error { return nil }
func (d *chunkDecoder) Close() error   { return nil }

func newTestStreamPlayer(t *testing.T) (*streamPlayer, *fakeOutput, *chunkDecoder) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	s := newLiveStream(ctx, cancel, io.NopCloser(strings.NewReader("")), 0)
	dec := &chunkDecoder{ctx: ctx, chunks: make(chan int)}
	s.decoder = dec
	s.format = beep.Format{SampleRate: testSampleRate, NumChannels: 2, Precision: 2}

	out := &fakeOutput{}
	p := newStreamPlayer(s, out, Options{ForwardBuffer: MinForwardBuffer, Volume: 50})
	t.Cleanup(func() { p.Close() })
	return p, out, dec
}

func nextEvent(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-events:
		if !ok {
			t.Fatal("event channel closed")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a player event")
	}
	return Event{}
}

func expectNoEvent(t *testing.T, events <-chan Event) {
	t.Helper()
	select {
	case ev := <-events:
		t.Errorf("unexpected event %s", ev.Kind)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestStreamPlayerBufferLifecycle(t *testing.T) {
	p, out, dec := newTestStreamPlayer(t)
	events := p.Events()
	prebuffer := testSampleRate.N(PrebufferDuration)

	if p.Status() != StatusUnknown {
		t.Errorf("initial status = %s, want UNKNOWN", p.Status())
	}
	if p.TimeControl() != TimeControlPaused {
		t.Errorf("initial time control = %s, want PAUSED", p.TimeControl())
	}

	p.Play()
	if p.Rate() != 1 {
		t.Errorf("Rate() = %v after Play, want 1", p.Rate())
	}
	if p.TimeControl() != TimeControlWaitingToPlay {
		t.Errorf("time control before prebuffer = %s, want WAITING", p.TimeControl())
	}

	// Output pulls silence until the prebuffer is filled.
	out.pull(t, 100)
	dec.chunks <- prebuffer / 2
	expectNoEvent(t, events)
	dec.chunks <- prebuffer / 2

	ev := nextEvent(t, events)
	if ev.Kind != EventStatusChanged || ev.Status != StatusReadyToPlay {
		t.Fatalf("event = %s/%s, want status change to READY", ev.Kind, ev.Status)
	}
	if p.Status() != StatusReadyToPlay {
		t.Errorf("Status() = %s, want READY", p.Status())
	}
	if p.TimeControl() != TimeControlPlaying {
		t.Errorf("time control after prebuffer = %s, want PLAYING", p.TimeControl())
	}

	// Draining past the buffered audio starves the player.
	out.pull(t, prebuffer+500)
	if ev := nextEvent(t, events); ev.Kind != EventBufferEmpty {
		t.Fatalf("event = %s, want buffer empty", ev.Kind)
	}
	if ev := nextEvent(t, events); ev.Kind != EventStalled {
		t.Fatalf("event = %s, want stalled", ev.Kind)
	}
	if p.TimeControl() != TimeControlWaitingToPlay {
		t.Errorf("time control while starved = %s, want WAITING", p.TimeControl())
	}

	// Starvation is reported once until the buffer recovers.
	out.pull(t, 100)
	expectNoEvent(t, events)

	dec.chunks <- prebuffer / 2
	expectNoEvent(t, events)
	dec.chunks <- prebuffer / 2
	if ev := nextEvent(t, events); ev.Kind != EventBufferReady {
		t.Fatalf("event = %s, want buffer ready", ev.Kind)
	}
	if p.TimeControl() != TimeControlPlaying {
		t.Errorf("time control after refill = %s, want PLAYING", p.TimeControl())
	}

	// The decoder giving up fails the player.
	decodeErr := errors.New("corrupt frame")
	dec.err = decodeErr
	close(dec.chunks)

	ev = nextEvent(t, events)
	if ev.Kind != EventStatusChanged || ev.Status != StatusFailed {
		t.Fatalf("event = %s/%s, want status change to FAILED", ev.Kind, ev.Status)
	}
	if !errors.Is(ev.Err, decodeErr) {
		t.Errorf("event error = %v, want %v", ev.Err, decodeErr)
	}
	if p.Status() != StatusFailed {
		t.Errorf("Status() = %s, want FAILED", p.Status())
	}
	if p.TimeControl() != TimeControlWaitingToPlay {
		t.Errorf("time control after failure = %s, want WAITING", p.TimeControl())
	}
}

func TestStreamPlayerEndOfStreamWithoutError(t *testing.T) {
	p, _, dec := newTestStreamPlayer(t)

	close(dec.chunks)

	ev := nextEvent(t, p.Events())
	if ev.Kind != EventStatusChanged || ev.Status != StatusFailed {
		t.Fatalf("event = %s/%s, want status change to FAILED", ev.Kind, ev.Status)
	}
	if !errors.Is(ev.Err, errStreamEnded) {
		t.Errorf("event error = %v, want errStreamEnded", ev.Err)
	}
}

func TestStreamPlayerPausedDrainDoesNotStall(t *testing.T) {
	p, out, dec := newTestStreamPlayer(t)
	events := p.Events()
	prebuffer := testSampleRate.N(PrebufferDuration)

	p.Play()
	dec.chunks <- prebuffer
	if ev := nextEvent(t, events); ev.Status != StatusReadyToPlay {
		t.Fatalf("event = %s/%s, want READY", ev.Kind, ev.Status)
	}

	p.Pause()
	if p.Rate() != 0 {
		t.Errorf("Rate() = %v after Pause, want 0", p.Rate())
	}
	if p.TimeControl() != TimeControlPaused {
		t.Errorf("time control = %s, want PAUSED", p.TimeControl())
	}

	out.pull(t, prebuffer+500)
	expectNoEvent(t, events)
	if p.Buffered() != 100 {
		t.Errorf("Buffered() = %d while paused, want 100", p.Buffered())
	}
}

func TestStreamPlayerCloseStopsQuietly(t *testing.T) {
	p, _, _ := newTestStreamPlayer(t)
	events := p.Events()

	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	for ev := range events {
		if ev.Kind == EventStatusChanged && ev.Status == StatusFailed {
			t.Error("closing must not report a failure")
		}
	}
	if p.Rate() != 0 {
		t.Errorf("Rate() = %v after Close, want 0", p.Rate())
	}
	if p.Close() != nil {
		t.Error("second Close() should be a no-op")
	}
}
