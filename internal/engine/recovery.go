package engine

import (
	"time"

	"github.com/glebovdev/radioplayer/internal/audio"
	"github.com/glebovdev/radioplayer/internal/player"
	"github.com/rs/zerolog/log"
)

// task is a revocable delayed call that runs on the loop goroutine.
type task struct {
	timer     *time.Timer
	cancelled bool
}

// schedule runs fn on the loop after d unless the returned task is cancelled first.
func (e *Engine) schedule(d time.Duration, fn func()) *task {
	t := &task{}
	t.timer = time.AfterFunc(d, func() {
		e.post(func() {
			if t.cancelled {
				return
			}
			t.cancelled = true
			fn()
		})
	})
	return t
}

// cancel must be called on the loop goroutine. A nil task is a no-op.
func (t *task) cancel() {
	if t == nil {
		return
	}
	t.cancelled = true
	t.timer.Stop()
}

// healthCheck corrects a silently paused player or an inactive audio session while play is intended.
func (e *Engine) healthCheck() {
	if !e.intent || e.interrupted || e.player == nil || e.needsRestart || e.loading {
		return
	}

	corrected := false
	if !e.session.IsActive() {
		log.Debug().Msg("Health check: audio session inactive, reactivating")
		e.metrics.healthCorrections.WithLabelValues(correctionSession).Inc()
		e.session.Activate()
		corrected = true
	}

	if e.player.Rate() == 0 {
		log.Debug().Msg("Health check: player silently paused, resuming")
		e.metrics.healthCorrections.WithLabelValues(correctionRate).Inc()
		e.player.Play()
		corrected = true
	}

	if corrected {
		e.notify()
	}
}

func (e *Engine) enterForeground() {
	log.Debug().Msg("Entering foreground")

	if e.needsRestart && e.station != nil {
		e.needsRestart = false
		e.failureTask.cancel()
		e.failureTask = nil

		id := e.sessionID
		e.restartTask.cancel()
		e.restartTask = e.schedule(e.cfg.ForegroundRestartDelay, func() {
			if id != e.sessionID || e.station == nil {
				return
			}
			log.Info().Str("station", e.station.ID).Msg("Restarting station after foreground")
			e.restart()
		})
		e.notify()
		return
	}

	if e.intent && e.player != nil && e.player.TimeControl() != player.TimeControlPlaying {
		e.session.Activate()
		e.player.Play()
		e.notify()
	}
}

// ensurePlaybackContinues re-asserts playback after an external disturbance.
func (e *Engine) ensurePlaybackContinues() {
	if !e.intent || e.interrupted || e.player == nil || e.needsRestart {
		return
	}
	e.session.Activate()
	if e.player.Rate() == 0 || e.player.TimeControl() == player.TimeControlPaused {
		e.player.Play()
	}
	e.notify()
}

var _ audio.Observer = (*Engine)(nil)

// InterruptionBegan pauses output but keeps the play intent so the interruption end can resume.
func (e *Engine) InterruptionBegan() {
	e.do(func() {
		if !e.intent {
			return
		}
		e.interrupted = true
		e.stallTask.cancel()
		if e.player != nil {
			e.player.Pause()
		}
		e.buffering = false
		e.nowPlaying.SetRate(0)
		e.notify()
	})
}

func (e *Engine) InterruptionEnded(shouldResume bool) {
	e.do(func() {
		if !e.interrupted {
			return
		}
		e.interrupted = false
		if shouldResume && e.intent {
			e.resume()
			return
		}
		e.intent = false
		e.tasks.EndAfter(e.cfg.PauseReleaseDelay)
		e.notify()
	})
}

func (e *Engine) RouteChanged(reason audio.RouteChangeReason) {
	e.do(func() {
		log.Debug().Str("reason", reason.String()).Msg("Route changed")
		e.ensurePlaybackContinues()
	})
}
