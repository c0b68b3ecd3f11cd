package engine

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/glebovdev/radioplayer/internal/nowplaying"
	"github.com/glebovdev/radioplayer/internal/player"
	"github.com/glebovdev/radioplayer/internal/station"
)

type fakePlayer struct {
	mu      sync.Mutex
	rate    float64
	flowing bool
	status  player.Status
	plays   int
	volume  int
	closed  bool
	events  chan player.Event
}

func newFakePlayer() *fakePlayer {
	return &fakePlayer{events: make(chan player.Event, 32)}
}

func (p *fakePlayer) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rate = 1
	p.plays++
}

func (p *fakePlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rate = 0
}

func (p *fakePlayer) Rate() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rate
}

func (p *fakePlayer) Status() player.Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *fakePlayer) TimeControl() player.TimeControl {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case p.rate == 0:
		return player.TimeControlPaused
	case p.flowing:
		return player.TimeControlPlaying
	default:
		return player.TimeControlWaitingToPlay
	}
}

func (p *fakePlayer) Events() <-chan player.Event { return p.events }

func (p *fakePlayer) SetVolume(percent int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = percent
}

func (p *fakePlayer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.events)
	}
	return nil
}

func (p *fakePlayer) playCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.plays
}

func (p *fakePlayer) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *fakePlayer) currentVolume() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// becomeReady flips the player to ready with audio flowing and reports it.
func (p *fakePlayer) becomeReady() {
	p.mu.Lock()
	p.status = player.StatusReadyToPlay
	p.flowing = true
	p.mu.Unlock()
	p.events <- player.Event{Kind: player.EventStatusChanged, Status: player.StatusReadyToPlay}
}

func (p *fakePlayer) stall() {
	p.mu.Lock()
	p.flowing = false
	p.mu.Unlock()
	p.events <- player.Event{Kind: player.EventBufferEmpty}
	p.events <- player.Event{Kind: player.EventStalled}
}

func (p *fakePlayer) recover() {
	p.mu.Lock()
	p.flowing = true
	p.mu.Unlock()
	p.events <- player.Event{Kind: player.EventBufferReady}
}

func (p *fakePlayer) fail() {
	p.mu.Lock()
	p.status = player.StatusFailed
	p.flowing = false
	p.mu.Unlock()
	p.events <- player.Event{Kind: player.EventStatusChanged, Status: player.StatusFailed}
}

func (p *fakePlayer) metadata(raw string) {
	p.events <- player.Event{Kind: player.EventMetadata, Metadata: raw}
}

// silentlyPause simulates the platform pausing output behind the engine's back.
func (p *fakePlayer) silentlyPause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rate = 0
}

type fakeAsset struct {
	url      string
	playable bool
	player   *fakePlayer

	mu     sync.Mutex
	closed bool
}

func (a *fakeAsset) URL() string                                     { return a.url }
func (a *fakeAsset) Playable() bool                                  { return a.playable }
func (a *fakeAsset) Info() player.StreamInfo                         { return player.StreamInfo{Format: "audio/mpeg"} }
func (a *fakeAsset) NewPlayer(player.Options) (player.Player, error) { return a.player, nil }

func (a *fakeAsset) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	return nil
}

func (a *fakeAsset) isClosed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

type loadFunc func(ctx context.Context, url string) (player.Asset, error)

type fakeLoader struct {
	mu      sync.Mutex
	calls   []string
	assets  []*fakeAsset
	handler loadFunc
}

func (l *fakeLoader) LoadAsset(ctx context.Context, url string) (player.Asset, error) {
	l.mu.Lock()
	l.calls = append(l.calls, url)
	handler := l.handler
	l.mu.Unlock()

	if handler != nil {
		return handler(ctx, url)
	}
	return l.playableAsset(url), nil
}

func (l *fakeLoader) playableAsset(url string) *fakeAsset {
	a := &fakeAsset{url: url, playable: true, player: newFakePlayer()}
	l.mu.Lock()
	l.assets = append(l.assets, a)
	l.mu.Unlock()
	return a
}

func (l *fakeLoader) setHandler(h loadFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handler = h
}

func (l *fakeLoader) callCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.calls)
}

func (l *fakeLoader) assetCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.assets)
}

func (l *fakeLoader) asset(i int) *fakeAsset {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.assets[i]
}

type fakeSession struct {
	mu          sync.Mutex
	active      bool
	activations int
}

func (s *fakeSession) Activate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activations++
	s.active = true
	return true
}

func (s *fakeSession) Deactivate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
}

func (s *fakeSession) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *fakeSession) activationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activations
}

type fakeTasks struct {
	mu        sync.Mutex
	begins    int
	ends      int
	endAfters []time.Duration
}

func (t *fakeTasks) Begin() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.begins++
}

func (t *fakeTasks) End() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ends++
}

func (t *fakeTasks) EndAfter(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.endAfters = append(t.endAfters, d)
}

func (t *fakeTasks) beginCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.begins
}

func (t *fakeTasks) lastEndAfter() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.endAfters) == 0 {
		return 0
	}
	return t.endAfters[len(t.endAfters)-1]
}

type fakeNowPlaying struct {
	mu        sync.Mutex
	current   *nowplaying.Info
	published []station.Track
	clears    int
	onArtwork func(image.Image)
}

func (n *fakeNowPlaying) Publish(st station.Station, track station.Track, rate float64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.published = append(n.published, track)
	n.current = &nowplaying.Info{
		Title:        track.Title,
		Artist:       track.Artist,
		StationName:  st.Name,
		IsLiveStream: true,
		Rate:         rate,
	}
}

func (n *fakeNowPlaying) SetRate(rate float64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current != nil {
		n.current.Rate = rate
	}
}

func (n *fakeNowPlaying) Clear() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.clears++
	n.current = nil
}

func (n *fakeNowPlaying) Current() (nowplaying.Info, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current == nil {
		return nowplaying.Info{}, false
	}
	return *n.current, true
}

func (n *fakeNowPlaying) OnArtwork(fn func(image.Image)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onArtwork = fn
}

// resolveArtwork simulates the publisher merging artwork and notifying the engine.
func (n *fakeNowPlaying) resolveArtwork(img image.Image) {
	n.mu.Lock()
	if n.current != nil {
		n.current.Artwork = img
	}
	fn := n.onArtwork
	n.mu.Unlock()
	fn(img)
}
