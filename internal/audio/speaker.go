package audio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/rs/zerolog/log"
)

// Output is where a live player sends its samples.
type Output interface {
	Play(s beep.Streamer)
	Clear()
	Lock()
	Unlock()
	SampleRate() beep.SampleRate
}

var errSpeakerNotConfigured = errors.New("speaker is not configured")

// SpeakerBackend is the desktop session backend built on the beep speaker.
// It is both the session Backend and the player Output.
type SpeakerBackend struct {
	mu          sync.Mutex
	sampleRate  beep.SampleRate
	initialized bool
	suspended   bool
}

func NewSpeakerBackend() *SpeakerBackend {
	return &SpeakerBackend{sampleRate: DefaultSampleRate}
}

func (b *SpeakerBackend) Configure(cfg SessionConfig) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if cfg.Category != CategoryPlayback {
		log.Debug().Str("category", cfg.Category.String()).Msg("Speaker backend only supports playback category, using it anyway")
	}

	if b.initialized && cfg.SampleRate == b.sampleRate {
		return nil
	}

	if b.initialized {
		speaker.Close()
		b.initialized = false
	}

	if err := speaker.Init(cfg.SampleRate, cfg.SampleRate.N(cfg.IOBufferDuration)); err != nil {
		return fmt.Errorf("failed to initialize speaker: %w", err)
	}
	b.sampleRate = cfg.SampleRate
	b.initialized = true
	b.suspended = false
	log.Debug().Msgf("Speaker initialized with sample rate: %d Hz, buffer: %v", cfg.SampleRate, cfg.IOBufferDuration)
	return nil
}

func (b *SpeakerBackend) SetActive(active bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.initialized {
		if active {
			return errSpeakerNotConfigured
		}
		return nil
	}

	switch {
	case active && b.suspended:
		if err := speaker.Resume(); err != nil {
			return fmt.Errorf("failed to resume speaker: %w", err)
		}
		b.suspended = false
	case !active && !b.suspended:
		if err := speaker.Suspend(); err != nil {
			return fmt.Errorf("failed to suspend speaker: %w", err)
		}
		b.suspended = true
	}
	return nil
}

// Close shuts the speaker down for good.
func (b *SpeakerBackend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.initialized {
		speaker.Close()
		b.initialized = false
	}
}

func (b *SpeakerBackend) Play(s beep.Streamer) {
	speaker.Play(s)
}

func (b *SpeakerBackend) Clear() {
	if b.ready() {
		speaker.Clear()
	}
}

func (b *SpeakerBackend) Lock() {
	speaker.Lock()
}

func (b *SpeakerBackend) Unlock() {
	speaker.Unlock()
}

func (b *SpeakerBackend) SampleRate() beep.SampleRate {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sampleRate
}

func (b *SpeakerBackend) ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.initialized
}
