// Package nowplaying keeps the now-playing surface in sync with the current track, station and artwork.
package nowplaying

import (
	"image"
	"sync"

	"github.com/rs/zerolog/log"
)

// Info is one snapshot of the now-playing surface.
type Info struct {
	Title        string
	Artist       string
	Album        string
	StationName  string
	Artwork      image.Image
	IsLiveStream bool
	Rate         float64
}

// Sink receives now-playing snapshots. A nil info clears the surface.
type Sink interface {
	SetNowPlaying(info *Info)
}

// Command is a remote transport command delivered by the now-playing surface.
type Command int

const (
	CommandPlay Command = iota
	CommandPause
	CommandTogglePlayPause
	CommandStop
)

func (c Command) String() string {
	switch c {
	case CommandPlay:
		return "play"
	case CommandPause:
		return "pause"
	case CommandTogglePlayPause:
		return "toggle"
	case CommandStop:
		return "stop"
	default:
		return "unknown"
	}
}

// Center is the in-process now-playing surface. Subscribers and command handlers
// are invoked outside the internal lock.
type Center struct {
	mu       sync.Mutex
	current  *Info
	nextSub  int
	subs     map[int]func(*Info)
	handlers map[Command]func()
}

func NewCenter() *Center {
	return &Center{
		subs:     make(map[int]func(*Info)),
		handlers: make(map[Command]func()),
	}
}

// SetNowPlaying stores a copy of info and notifies subscribers.
func (c *Center) SetNowPlaying(info *Info) {
	var stored *Info
	if info != nil {
		cp := *info
		stored = &cp
	}

	c.mu.Lock()
	c.current = stored
	subs := make([]func(*Info), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	for _, fn := range subs {
		if stored == nil {
			fn(nil)
			continue
		}
		cp := *stored
		fn(&cp)
	}
}

// Current returns the published snapshot, if any.
func (c *Center) Current() (Info, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return Info{}, false
	}
	return *c.current, true
}

// Subscribe registers fn for every snapshot change and returns a function that removes it.
func (c *Center) Subscribe(fn func(*Info)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// RegisterCommand installs the handler for cmd, replacing any previous one.
func (c *Center) RegisterCommand(cmd Command, fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if fn == nil {
		delete(c.handlers, cmd)
		return
	}
	c.handlers[cmd] = fn
}

// Send dispatches cmd and reports whether a handler was registered.
func (c *Center) Send(cmd Command) bool {
	c.mu.Lock()
	fn := c.handlers[cmd]
	c.mu.Unlock()

	if fn == nil {
		log.Debug().Str("command", cmd.String()).Msg("No handler for remote command")
		return false
	}
	fn()
	return true
}
