// Package audio owns the process-wide audio session: its configuration, activation,
// and the interruption and route-change signals delivered by the platform.
package audio

import (
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/rs/zerolog/log"
)

const (
	DefaultSampleRate       = beep.SampleRate(44100)
	DefaultIOBufferDuration = 250 * time.Millisecond
)

type Category int

const (
	CategoryPlayback Category = iota
	CategoryAmbient
)

func (c Category) String() string {
	switch c {
	case CategoryPlayback:
		return "playback"
	case CategoryAmbient:
		return "ambient"
	default:
		return "unknown"
	}
}

type Mode int

const (
	ModeDefault Mode = iota
	ModeSpokenAudio
)

// Options is a set of session behaviour flags.
type Options uint8

const (
	OptionMixWithOthers Options = 1 << iota
	OptionDuckOthers
	OptionAllowBluetooth
	OptionAllowAirPlay
)

func (o Options) Has(flag Options) bool {
	return o&flag != 0
}

// SessionConfig describes the session the process asks the platform for.
type SessionConfig struct {
	Category         Category
	Mode             Mode
	Options          Options
	SampleRate       beep.SampleRate
	IOBufferDuration time.Duration
}

// DefaultSessionConfig is tuned for long-form live streaming in the background.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Category:         CategoryPlayback,
		Mode:             ModeDefault,
		Options:          OptionMixWithOthers | OptionDuckOthers | OptionAllowBluetooth | OptionAllowAirPlay,
		SampleRate:       DefaultSampleRate,
		IOBufferDuration: DefaultIOBufferDuration,
	}
}

// Backend is the platform audio session API.
type Backend interface {
	Configure(cfg SessionConfig) error
	SetActive(active bool) error
}

type RouteChangeReason int

const (
	RouteChangeUnknown RouteChangeReason = iota
	RouteChangeNewDeviceAvailable
	RouteChangeOldDeviceUnavailable
	RouteChangeCategoryChange
	RouteChangeOverride
)

func (r RouteChangeReason) String() string {
	switch r {
	case RouteChangeNewDeviceAvailable:
		return "new device available"
	case RouteChangeOldDeviceUnavailable:
		return "old device unavailable"
	case RouteChangeCategoryChange:
		return "category change"
	case RouteChangeOverride:
		return "override"
	default:
		return "unknown"
	}
}

// Observer receives session signals after the controller has updated its own state.
type Observer interface {
	InterruptionBegan()
	InterruptionEnded(shouldResume bool)
	RouteChanged(reason RouteChangeReason)
}

// Controller keeps a live, category-correct session. It never returns errors to callers;
// failures are logged and leave the session inactive so the next caller can retry.
type Controller struct {
	backend  Backend
	cfg      SessionConfig
	mu       sync.Mutex
	active   bool
	observer Observer
}

func NewController(backend Backend, cfg SessionConfig) *Controller {
	return &Controller{
		backend: backend,
		cfg:     cfg,
	}
}

func (c *Controller) SetObserver(o Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observer = o
}

func (c *Controller) Config() SessionConfig {
	return c.cfg
}

// Activate configures and activates the session. Safe to call repeatedly.
func (c *Controller) Activate() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activateLocked()
}

func (c *Controller) activateLocked() bool {
	if c.active {
		return true
	}

	if err := c.backend.Configure(c.cfg); err != nil {
		log.Error().Err(err).
			Str("category", c.cfg.Category.String()).
			Int("sampleRate", int(c.cfg.SampleRate)).
			Msg("Failed to configure audio session")
		return false
	}

	if err := c.backend.SetActive(true); err != nil {
		log.Error().Err(err).Msg("Failed to activate audio session")
		return false
	}

	c.active = true
	log.Debug().Msg("Audio session active")
	return true
}

// Deactivate releases the session. Failures are logged only.
func (c *Controller) Deactivate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.backend.SetActive(false); err != nil {
		log.Warn().Err(err).Msg("Failed to deactivate audio session")
	}
	c.active = false
	log.Debug().Msg("Audio session inactive")
}

func (c *Controller) IsActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// InterruptionBegan is called when another audio source takes over the output.
func (c *Controller) InterruptionBegan() {
	c.mu.Lock()
	c.active = false
	observer := c.observer
	c.mu.Unlock()

	log.Debug().Msg("Audio session interrupted")
	if observer != nil {
		observer.InterruptionBegan()
	}
}

// InterruptionEnded reactivates the session when the platform hints playback may resume.
func (c *Controller) InterruptionEnded(shouldResume bool) {
	c.mu.Lock()
	if shouldResume {
		c.activateLocked()
	}
	observer := c.observer
	c.mu.Unlock()

	log.Debug().Bool("shouldResume", shouldResume).Msg("Audio session interruption ended")
	if observer != nil {
		observer.InterruptionEnded(shouldResume)
	}
}

func (c *Controller) RouteChanged(reason RouteChangeReason) {
	c.mu.Lock()
	observer := c.observer
	c.mu.Unlock()

	log.Debug().Str("reason", reason.String()).Msg("Audio route changed")
	if observer != nil {
		observer.RouteChanged(reason)
	}
}
