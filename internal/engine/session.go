package engine

import (
	"context"
	"errors"

	"github.com/glebovdev/radioplayer/internal/metadata"
	"github.com/glebovdev/radioplayer/internal/player"
	"github.com/glebovdev/radioplayer/internal/station"
	"github.com/rs/zerolog/log"
)

func sameSource(a *station.Station, b station.Station) bool {
	return a != nil && a.Equal(b) && a.StreamURL == b.StreamURL
}

func (e *Engine) play(st station.Station) {
	if sameSource(e.station, st) && !e.failed && (e.player != nil || e.loading) {
		if !e.isPlaying() {
			e.resume()
		}
		return
	}

	log.Info().Str("station", st.ID).Str("url", st.StreamURL).Msg("Starting station")
	if e.station != nil && !sameSource(e.station, st) {
		e.nowPlaying.Clear()
	}
	e.teardown()
	e.retries = 0
	e.station = &st
	e.startSession()
}

// startSession loads the current station under a fresh session identity.
func (e *Engine) startSession() {
	st := *e.station

	e.sessionID++
	id := e.sessionID
	ctx, cancel := context.WithCancel(e.ctx)
	e.sessionCancel = cancel

	e.intent = true
	e.loading = true
	e.buffering = true
	e.failed = false
	e.needsRestart = false

	e.session.Activate()
	e.tasks.Begin()
	e.notify()

	go func() {
		asset, err := e.loader.LoadAsset(ctx, st.StreamURL)
		e.post(func() { e.assetLoaded(id, asset, err) })
	}()
}

func (e *Engine) assetLoaded(id uint64, asset player.Asset, err error) {
	if id != e.sessionID {
		if asset != nil {
			asset.Close()
		}
		log.Debug().Uint64("session", id).Msg("Dropping stale load result")
		return
	}
	e.loading = false

	if err != nil {
		if errors.Is(err, player.ErrNotPlayable) {
			e.notPlayable(err)
			return
		}
		log.Warn().Err(err).Str("station", e.station.ID).Msg("Failed to load stream")
		e.metrics.loads.WithLabelValues(loadResultError).Inc()
		e.loadFailed()
		return
	}

	if !asset.Playable() {
		asset.Close()
		e.notPlayable(player.ErrNotPlayable)
		return
	}

	p, err := asset.NewPlayer(player.Options{
		ForwardBuffer: e.cfg.ForwardBuffer,
		Volume:        e.volume,
	})
	if err != nil {
		asset.Close()
		log.Warn().Err(err).Msg("Failed to create player")
		e.metrics.loads.WithLabelValues(loadResultError).Inc()
		e.loadFailed()
		return
	}

	e.asset = asset
	e.player = p
	go e.forwardEvents(id, p)

	log.Debug().Str("stream", asset.Info().String()).Msg("Stream opened")

	if e.intent {
		e.startPlayback()
	}
	e.notify()
}

func (e *Engine) forwardEvents(id uint64, p player.Player) {
	for ev := range p.Events() {
		e.post(func() {
			if id != e.sessionID || e.player != p {
				return
			}
			e.handleEvent(ev)
		})
	}
}

func (e *Engine) handleEvent(ev player.Event) {
	switch ev.Kind {
	case player.EventStatusChanged:
		switch ev.Status {
		case player.StatusReadyToPlay:
			e.metrics.loads.WithLabelValues(loadResultReady).Inc()
			e.retries = 0
			e.buffering = false
			if e.intent && e.player.Rate() == 0 {
				e.startPlayback()
			}
		case player.StatusFailed:
			log.Warn().Err(ev.Err).Msg("Player failed")
			if e.intent {
				e.loadFailed()
			} else {
				e.needsRestart = true
			}
		}

	case player.EventBufferEmpty:
		if e.intent {
			e.buffering = true
		}

	case player.EventStalled:
		e.metrics.stalls.Inc()
		if e.intent {
			e.buffering = true
			e.scheduleStallRetry()
		}

	case player.EventBufferReady:
		if e.intent {
			e.buffering = false
		}
		e.stallTask.cancel()

	case player.EventMetadata:
		e.applyMetadata(ev.Metadata)
	}
	e.notify()
}

// startPlayback issues Play and installs the placeholder track when nothing better is known.
func (e *Engine) startPlayback() {
	e.player.Play()
	if e.track == nil {
		tr := station.PlaceholderTrack(*e.station)
		e.track = &tr
	}
	e.nowPlaying.Publish(*e.station, *e.track, e.player.Rate())

	// An unchanged track keeps its artwork in the publisher without a new lookup.
	if e.artwork == nil {
		if info, ok := e.nowPlaying.Current(); ok && info.Artwork != nil {
			e.artwork = info.Artwork
		}
	}
}

func (e *Engine) applyMetadata(raw string) {
	if e.station == nil || !e.station.UseStreamMetadata {
		return
	}
	tr, ok := metadata.Parse(raw)
	if !ok {
		log.Debug().Str("raw", raw).Msg("Ignoring stream metadata")
		return
	}
	if e.track != nil && e.track.SameContent(tr) {
		return
	}
	log.Debug().Str("track", tr.String()).Msg("Now playing")
	e.track = &tr
	rate := 0.0
	if e.player != nil {
		rate = e.player.Rate()
	}
	e.nowPlaying.Publish(*e.station, tr, rate)
}

// notPlayable handles a definitive source error: no retry, the station stays selected.
func (e *Engine) notPlayable(err error) {
	log.Warn().Err(err).Str("station", e.station.ID).Msg("Stream is not playable")
	e.metrics.loads.WithLabelValues(loadResultNotPlayable).Inc()
	e.releasePlayer()
	e.clearNowPlaying()
	e.intent = false
	e.buffering = false
	e.failed = true
	e.tasks.EndAfter(e.cfg.StopReleaseDelay)
	e.notify()
}

// loadFailed marks the session for restart and schedules a bounded retry.
func (e *Engine) loadFailed() {
	e.needsRestart = true
	e.buffering = false
	e.retries++

	if e.retries > e.cfg.MaxLoadRetries {
		log.Error().Int("attempts", e.retries).Str("station", e.station.ID).Msg("Giving up on station")
		e.releasePlayer()
		e.clearNowPlaying()
		e.intent = false
		e.failed = true
		e.tasks.EndAfter(e.cfg.StopReleaseDelay)
		e.notify()
		return
	}

	id := e.sessionID
	e.failureTask.cancel()
	e.failureTask = e.schedule(e.cfg.FailureRetryDelay, func() {
		if id != e.sessionID || !e.intent || !e.needsRestart {
			return
		}
		log.Info().Int("attempt", e.retries).Str("station", e.station.ID).Msg("Retrying station")
		e.metrics.failureRetries.Inc()
		e.restart()
	})
	e.notify()
}

// restart reloads the current station without resetting the retry budget.
func (e *Engine) restart() {
	retries := e.retries
	st := *e.station
	e.teardown()
	e.retries = retries
	e.station = &st
	e.startSession()
}

func (e *Engine) scheduleStallRetry() {
	id := e.sessionID
	e.stallTask.cancel()
	e.stallTask = e.schedule(e.cfg.StallRetryDelay, func() {
		if id != e.sessionID || !e.intent || e.player == nil {
			return
		}
		if e.player.TimeControl() == player.TimeControlPlaying {
			return
		}
		log.Debug().Msg("Stall persisted, reissuing play")
		e.metrics.stallRetries.Inc()
		e.player.Play()
		e.notify()
	})
}

func (e *Engine) toggle() {
	switch {
	case e.isPlaying():
		e.pause()
	case e.loading && e.intent:
		e.intent = false
		e.buffering = false
		e.tasks.EndAfter(e.cfg.PauseReleaseDelay)
		e.notify()
	case e.player != nil && !e.failed:
		e.resume()
	case e.station != nil:
		st := *e.station
		e.teardown()
		e.retries = 0
		e.station = &st
		e.startSession()
	}
}

func (e *Engine) pause() {
	e.intent = false
	e.buffering = false
	e.stallTask.cancel()
	if e.player != nil {
		e.player.Pause()
	}
	e.nowPlaying.SetRate(0)
	e.tasks.EndAfter(e.cfg.PauseReleaseDelay)
	e.notify()
}

func (e *Engine) resume() {
	if e.station == nil {
		return
	}
	if e.loading {
		e.intent = true
		e.buffering = true
		e.notify()
		return
	}
	if e.player == nil || e.needsRestart || e.player.Status() == player.StatusFailed {
		e.restart()
		return
	}

	e.intent = true
	e.interrupted = false
	e.session.Activate()
	e.tasks.Begin()
	e.startPlayback()
	e.buffering = e.player.TimeControl() != player.TimeControlPlaying
	e.notify()
}

func (e *Engine) stop() {
	log.Info().Msg("Stopping playback")
	e.timer.Cancel()
	e.teardown()
	e.intent = false
	e.interrupted = false
	e.station = nil
	e.retries = 0
	e.nowPlaying.Clear()
	e.tasks.EndAfter(e.cfg.StopReleaseDelay)
	e.notify()
}

// teardown discards the session: scheduled work, in-flight load, player and track.
// The background grant is left alone.
func (e *Engine) teardown() {
	e.stallTask.cancel()
	e.failureTask.cancel()
	e.restartTask.cancel()
	e.stallTask, e.failureTask, e.restartTask = nil, nil, nil

	if e.sessionCancel != nil {
		e.sessionCancel()
		e.sessionCancel = nil
	}
	e.sessionID++

	e.releasePlayer()
	e.loading = false
	e.buffering = false
	e.needsRestart = false
	e.failed = false
	e.track = nil
	e.artwork = nil
}

// clearNowPlaying drops the track and its projection while the station stays selected.
func (e *Engine) clearNowPlaying() {
	e.track = nil
	e.artwork = nil
	e.nowPlaying.Clear()
}

func (e *Engine) releasePlayer() {
	if e.player != nil {
		if err := e.player.Close(); err != nil {
			log.Debug().Err(err).Msg("Error closing player")
		}
		e.player = nil
	}
	if e.asset != nil {
		if err := e.asset.Close(); err != nil {
			log.Debug().Err(err).Msg("Error closing stream")
		}
		e.asset = nil
	}
}
