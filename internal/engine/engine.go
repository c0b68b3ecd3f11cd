// Package engine owns the playback session: it loads streams, drives play/pause/stop,
// recovers from stalls and failures and publishes observable state.
//
// All session state is mutated on a single sequencing goroutine. Public methods enqueue
// work onto it and wait for it to be applied, so calls are totally ordered. Change
// callbacks run on the same goroutine and must not call back into the Engine synchronously.
package engine

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/glebovdev/radioplayer/internal/config"
	"github.com/glebovdev/radioplayer/internal/nowplaying"
	"github.com/glebovdev/radioplayer/internal/player"
	"github.com/glebovdev/radioplayer/internal/station"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseBuffering
	PhasePlaying
	PhasePaused
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseBuffering:
		return "buffering"
	case PhasePlaying:
		return "playing"
	case PhasePaused:
		return "paused"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// State is the published snapshot of the session.
type State struct {
	Phase          Phase
	IsPlaying      bool
	IsBuffering    bool
	Station        *station.Station
	Track          *station.Track
	Artwork        image.Image
	SleepRemaining time.Duration
	Volume         int
}

// Config holds the engine tunables.
type Config struct {
	ForwardBuffer          time.Duration
	StallRetryDelay        time.Duration
	FailureRetryDelay      time.Duration
	MaxLoadRetries         int
	HealthCheckInterval    time.Duration
	StopReleaseDelay       time.Duration
	PauseReleaseDelay      time.Duration
	ForegroundRestartDelay time.Duration
	Volume                 int
}

func DefaultConfig() Config {
	return ConfigFromSettings(config.DefaultConfig())
}

// ConfigFromSettings maps the user configuration onto engine tunables.
func ConfigFromSettings(cfg *config.Config) Config {
	p := cfg.Playback
	return Config{
		ForwardBuffer:          p.ForwardBuffer,
		StallRetryDelay:        p.StallRetryDelay,
		FailureRetryDelay:      p.FailureRetryDelay,
		MaxLoadRetries:         p.MaxLoadRetries,
		HealthCheckInterval:    p.HealthCheckInterval,
		StopReleaseDelay:       p.StopReleaseDelay,
		PauseReleaseDelay:      p.PauseReleaseDelay,
		ForegroundRestartDelay: p.ForegroundRestartDelay,
		Volume:                 config.ClampVolume(cfg.Volume),
	}
}

// AudioSession is the part of audio.Controller the engine drives.
type AudioSession interface {
	Activate() bool
	Deactivate()
	IsActive() bool
}

// BackgroundTasks is the part of background.Supervisor the engine drives.
type BackgroundTasks interface {
	Begin()
	End()
	EndAfter(d time.Duration)
}

// NowPlaying is the part of nowplaying.Publisher the engine drives.
type NowPlaying interface {
	Publish(st station.Station, track station.Track, rate float64)
	SetRate(rate float64)
	Clear()
	Current() (nowplaying.Info, bool)
	OnArtwork(fn func(image.Image))
}

// SleepTimer is the part of sleeptimer.Timer the engine drives.
type SleepTimer interface {
	Start(d time.Duration, onComplete func())
	Cancel()
	Remaining() time.Duration
	OnTick(fn func(time.Duration))
}

// Deps are the collaborators owned by the engine for its lifetime.
type Deps struct {
	Loader     player.AssetLoader
	Session    AudioSession
	Tasks      BackgroundTasks
	NowPlaying NowPlaying
	Timer      SleepTimer
	// Registerer receives the engine metrics; nil keeps them unregistered.
	Registerer prometheus.Registerer
}

const opsQueueSize = 64

type Engine struct {
	cfg        Config
	loader     player.AssetLoader
	session    AudioSession
	tasks      BackgroundTasks
	nowPlaying NowPlaying
	timer      SleepTimer
	metrics    *metrics

	ops       chan func()
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc

	// Owned by the loop goroutine.
	station        *station.Station
	track          *station.Track
	artwork        image.Image
	asset          player.Asset
	player         player.Player
	sessionID      uint64
	sessionCancel  context.CancelFunc
	loading        bool
	intent         bool
	buffering      bool
	needsRestart   bool
	failed         bool
	interrupted    bool
	retries        int
	volume         int
	stallTask      *task
	failureTask    *task
	restartTask    *task
	observers      []func(State)
	lastPlayingSet bool

	snapMu   sync.RWMutex
	snapshot State
}

// New creates the engine and starts its sequencing goroutine.
func New(cfg Config, deps Deps) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		cfg:        cfg,
		loader:     deps.Loader,
		session:    deps.Session,
		tasks:      deps.Tasks,
		nowPlaying: deps.NowPlaying,
		timer:      deps.Timer,
		metrics:    newMetrics(deps.Registerer),
		ops:        make(chan func(), opsQueueSize),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
		volume:     config.ClampVolume(cfg.Volume),
	}
	e.snapshot = State{Volume: e.volume}

	e.nowPlaying.OnArtwork(func(img image.Image) {
		e.post(func() { e.applyArtwork(img) })
	})
	e.timer.OnTick(func(time.Duration) {
		e.post(e.notify)
	})

	go e.loop()
	return e
}

func (e *Engine) loop() {
	defer close(e.done)

	interval := e.cfg.HealthCheckInterval
	if interval <= 0 {
		interval = config.DefaultConfig().Playback.HealthCheckInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case fn := <-e.ops:
			fn()
		case <-ticker.C:
			e.healthCheck()
		case <-e.quit:
			return
		}
	}
}

// do runs fn on the loop and waits for it. It reports false once the engine is closed.
func (e *Engine) do(fn func()) bool {
	applied := make(chan struct{})
	select {
	case e.ops <- func() { fn(); close(applied) }:
	case <-e.quit:
		return false
	}
	select {
	case <-applied:
		return true
	case <-e.quit:
		return false
	}
}

// post queues fn without waiting for it to run.
func (e *Engine) post(fn func()) {
	select {
	case e.ops <- fn:
	case <-e.quit:
	}
}

// Play starts st. Requesting the station that is already loaded resumes it instead.
func (e *Engine) Play(st station.Station) {
	e.do(func() { e.play(st) })
}

// TogglePlayPause pauses, resumes or restarts the remembered station.
func (e *Engine) TogglePlayPause() {
	e.do(e.toggle)
}

// Stop tears the session down and clears all published state.
func (e *Engine) Stop() {
	e.do(e.stop)
}

// SetSleepTimer stops playback after d. A non-positive d cancels the timer.
func (e *Engine) SetSleepTimer(d time.Duration) {
	e.timer.Start(d, e.Stop)
	e.do(e.notify)
}

func (e *Engine) CancelSleepTimer() {
	e.timer.Cancel()
	e.do(e.notify)
}

func (e *Engine) SetVolume(percent int) {
	e.do(func() {
		e.volume = config.ClampVolume(percent)
		if e.player != nil {
			e.player.SetVolume(e.volume)
		}
		e.notify()
	})
}

// EnterBackground requests a background grant so playback survives off-screen.
func (e *Engine) EnterBackground() {
	e.do(func() {
		log.Debug().Msg("Entering background")
		e.tasks.Begin()
	})
}

// EnterForeground forces a resume when audio is not flowing and restarts a failed session.
func (e *Engine) EnterForeground() {
	e.do(e.enterForeground)
}

// OnChange registers fn for every published state change.
func (e *Engine) OnChange(fn func(State)) {
	e.do(func() { e.observers = append(e.observers, fn) })
}

func (e *Engine) State() State {
	e.snapMu.RLock()
	defer e.snapMu.RUnlock()
	return e.snapshot
}

func (e *Engine) IsPlaying() bool {
	return e.State().IsPlaying
}

func (e *Engine) IsBuffering() bool {
	return e.State().IsBuffering
}

func (e *Engine) CurrentTrack() *station.Track {
	return e.State().Track
}

func (e *Engine) CurrentStation() *station.Station {
	return e.State().Station
}

func (e *Engine) Artwork() image.Image {
	return e.State().Artwork
}

// Close stops playback, releases the session resources and ends the loop.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		e.timer.Cancel()
		e.do(func() {
			e.teardown()
			e.intent = false
			e.station = nil
			e.nowPlaying.Clear()
			e.tasks.End()
			e.session.Deactivate()
			e.notify()
		})
		e.cancel()
		close(e.quit)
		<-e.done
		log.Debug().Msg("Engine closed")
	})
}

func (e *Engine) isPlaying() bool {
	return e.player != nil && e.player.Rate() != 0 && !e.needsRestart
}

func (e *Engine) phase() Phase {
	switch {
	case e.station == nil:
		return PhaseIdle
	case e.failed:
		return PhaseFailed
	case e.loading:
		return PhaseLoading
	case e.intent && e.buffering:
		return PhaseBuffering
	case e.isPlaying():
		return PhasePlaying
	case e.player != nil || !e.intent:
		return PhasePaused
	default:
		return PhaseLoading
	}
}

// notify publishes a new snapshot and invokes the change callbacks.
func (e *Engine) notify() {
	s := State{
		Phase:          e.phase(),
		IsPlaying:      e.isPlaying(),
		IsBuffering:    e.buffering,
		Artwork:        e.artwork,
		SleepRemaining: e.timer.Remaining(),
		Volume:         e.volume,
	}
	if e.station != nil {
		st := *e.station
		s.Station = &st
	}
	if e.track != nil {
		tr := *e.track
		s.Track = &tr
	}

	if s.IsPlaying != e.lastPlayingSet {
		e.lastPlayingSet = s.IsPlaying
		if s.IsPlaying {
			e.metrics.playing.Set(1)
		} else {
			e.metrics.playing.Set(0)
		}
	}

	e.snapMu.Lock()
	e.snapshot = s
	e.snapMu.Unlock()

	for _, fn := range e.observers {
		fn(s)
	}
}

func (e *Engine) applyArtwork(img image.Image) {
	if e.station == nil {
		return
	}
	if info, ok := e.nowPlaying.Current(); !ok || info.Artwork != img {
		return
	}
	e.artwork = img
	e.notify()
}
