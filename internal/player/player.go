package player

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/glebovdev/radioplayer/internal/audio"
	"github.com/glebovdev/radioplayer/internal/config"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/rs/zerolog/log"
)

const (
	DefaultForwardBuffer = 15 * time.Second
	MinForwardBuffer     = 2 * time.Second
	PrebufferDuration    = 2 * time.Second
	ResampleQuality      = 4
	VolumeCurveExponent  = 0.5
	MinVolumeDB          = -10.0
	decodeBatchSize      = 4096
)

var errStreamEnded = errors.New("stream ended unexpectedly")

type streamPlayer struct {
	stream *liveStream
	output audio.Output

	sampleCh  chan [2]float64
	prebuffer int

	mu      sync.Mutex
	ctrl    *beep.Ctrl
	volume  *effects.Volume
	started bool
	status  Status

	rate    atomic.Uint64
	ready   atomic.Bool
	starved atomic.Bool
	done    atomic.Bool
	closed  atomic.Bool

	wg        sync.WaitGroup
	closeOnce sync.Once
}

func newStreamPlayer(s *liveStream, output audio.Output, opts Options) *streamPlayer {
	forward := opts.ForwardBuffer
	if forward < MinForwardBuffer {
		forward = DefaultForwardBuffer
	}
	outRate := output.SampleRate()

	capacity := outRate.N(forward)
	prebuffer := outRate.N(PrebufferDuration)
	if prebuffer > capacity {
		prebuffer = capacity
	}

	p := &streamPlayer{
		stream:    s,
		output:    output,
		sampleCh:  make(chan [2]float64, capacity),
		prebuffer: prebuffer,
	}

	volumePercent := opts.Volume
	if volumePercent < 0 {
		volumePercent = config.DefaultVolume
	}
	p.volume = &effects.Volume{
		Streamer: &bufferedStreamer{player: p},
		Base:     2,
		Volume:   percentToExponent(float64(volumePercent)),
		Silent:   volumePercent == 0,
	}
	p.ctrl = &beep.Ctrl{Streamer: p.volume, Paused: true}

	var src beep.Streamer = s.decoder
	if s.format.SampleRate != outRate {
		log.Debug().Msgf("Resampling stream from %d Hz to %d Hz", s.format.SampleRate, outRate)
		src = beep.Resample(ResampleQuality, s.format.SampleRate, outRate, s.decoder)
	}

	p.wg.Add(1)
	go p.decodeAndBuffer(src)

	log.Debug().Dur("forwardBuffer", forward).Int("prebufferSamples", prebuffer).Msg("Player created")
	return p
}

func (p *streamPlayer) Events() <-chan Event {
	return p.stream.events
}

func (p *streamPlayer) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.done.Load() {
		return
	}

	p.rate.Store(math.Float64bits(1))
	if !p.started {
		p.started = true
		p.output.Play(p.ctrl)
	}

	p.output.Lock()
	p.ctrl.Paused = false
	p.output.Unlock()
	log.Debug().Msg("Playback resumed")
}

func (p *streamPlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.rate.Store(math.Float64bits(0))
	p.output.Lock()
	p.ctrl.Paused = true
	p.output.Unlock()
	p.starved.Store(false)
	log.Debug().Msg("Playback paused")
}

func (p *streamPlayer) Rate() float64 {
	return math.Float64frombits(p.rate.Load())
}

func (p *streamPlayer) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *streamPlayer) TimeControl() TimeControl {
	switch {
	case p.Rate() == 0:
		return TimeControlPaused
	case !p.ready.Load() || p.starved.Load() || p.done.Load():
		return TimeControlWaitingToPlay
	default:
		return TimeControlPlaying
	}
}

func (p *streamPlayer) SetVolume(volumePercent int) {
	volumePercent = config.ClampVolume(volumePercent)
	volumeLevel := percentToExponent(float64(volumePercent))

	p.output.Lock()
	p.volume.Volume = volumeLevel
	p.volume.Silent = volumePercent == 0
	p.output.Unlock()

	log.Debug().Msgf("Volume set to %d%% (%.2f dB)", volumePercent, volumeLevel)
}

func (p *streamPlayer) Close() error {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		p.done.Store(true)
		p.rate.Store(math.Float64bits(0))
		p.stream.close()
		p.wg.Wait()
		log.Debug().Msg("Player closed")
	})
	return nil
}

func (p *streamPlayer) setStatus(status Status, err error) {
	p.mu.Lock()
	if p.status == status {
		p.mu.Unlock()
		return
	}
	log.Debug().Msgf("Player status: %s -> %s", p.status, status)
	p.status = status
	p.mu.Unlock()

	p.ready.Store(status == StatusReadyToPlay)
	p.stream.emit(Event{Kind: EventStatusChanged, Status: status, Err: err})
}

func (p *streamPlayer) decodeAndBuffer(src beep.Streamer) {
	defer func() {
		p.wg.Done()
		log.Debug().Msg("Decoder and buffer goroutine stopped")
	}()

	ctx := p.stream.ctx
	decoded := make([][2]float64, decodeBatchSize)

	for {
		if ctx.Err() != nil {
			return
		}

		n, ok := src.Stream(decoded)
		if !ok {
			if ctx.Err() != nil {
				return
			}
			err := src.Err()
			if err == nil {
				err = errStreamEnded
			}
			log.Error().Err(err).Msg("Stream decoding stopped")
			p.done.Store(true)
			p.setStatus(StatusFailed, err)
			return
		}

		for i := 0; i < n; i++ {
			select {
			case <-ctx.Done():
				return
			case p.sampleCh <- decoded[i]:
			}
		}

		buffered := len(p.sampleCh)
		if !p.ready.Load() && buffered >= p.prebuffer {
			p.setStatus(StatusReadyToPlay, nil)
		}
		if p.starved.Load() && buffered >= p.prebuffer {
			p.starved.Store(false)
			p.stream.emit(Event{Kind: EventBufferReady})
		}
	}
}

// Buffered reports the fill level of the forward buffer, 0-100.
func (p *streamPlayer) Buffered() int {
	c := cap(p.sampleCh)
	if c == 0 {
		return 0
	}
	return len(p.sampleCh) * 100 / c
}

const fadeInDuration = 50 * time.Millisecond

// bufferedStreamer feeds the speaker from the forward buffer. It never blocks: an empty
// buffer yields silence and marks the player starved.
type bufferedStreamer struct {
	player          *streamPlayer
	fadeInRemaining int
	fadeInTotal     int
}

func (b *bufferedStreamer) Stream(samples [][2]float64) (n int, ok bool) {
	p := b.player
	if p.closed.Load() || (p.done.Load() && len(p.sampleCh) == 0) {
		return 0, false
	}

	if !p.ready.Load() {
		clear(samples)
		return len(samples), true
	}

	if b.fadeInTotal == 0 {
		b.fadeInTotal = p.output.SampleRate().N(fadeInDuration)
		b.fadeInRemaining = b.fadeInTotal
	}

	audioEnd := 0
fill:
	for i := range samples {
		select {
		case sample := <-p.sampleCh:
			samples[i] = sample
			audioEnd = i + 1
		default:
			break fill
		}
	}

	if audioEnd < len(samples) {
		clear(samples[audioEnd:])
		if !p.starved.Load() && p.Rate() != 0 && !p.done.Load() {
			p.starved.Store(true)
			b.fadeInRemaining = b.fadeInTotal
			p.stream.emit(Event{Kind: EventBufferEmpty})
			p.stream.emit(Event{Kind: EventStalled})
		}
	}

	for i := 0; i < audioEnd && b.fadeInRemaining > 0; i++ {
		scale := float64(b.fadeInTotal-b.fadeInRemaining) / float64(b.fadeInTotal)
		samples[i][0] *= scale
		samples[i][1] *= scale
		b.fadeInRemaining--
	}

	return len(samples), true
}

func (b *bufferedStreamer) Err() error {
	return nil
}

func percentToExponent(p float64) float64 {
	if p <= 0 {
		return MinVolumeDB
	}
	if p >= 100 {
		return 0
	}

	normalized := p / 100.0
	adjusted := math.Pow(normalized, VolumeCurveExponent)
	return (1.0 - adjusted) * MinVolumeDB
}
