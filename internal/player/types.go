// Package player loads live HTTP audio streams and plays them through the audio session output.
package player

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotPlayable marks a definitive source error: retrying the same URL will not help.
var ErrNotPlayable = errors.New("stream is not playable")

type Status int

const (
	StatusUnknown Status = iota
	StatusReadyToPlay
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusUnknown:
		return "UNKNOWN"
	case StatusReadyToPlay:
		return "READY"
	case StatusFailed:
		return "FAILED"
	default:
		return "INVALID"
	}
}

// TimeControl tells whether audio is actually flowing.
type TimeControl int

const (
	TimeControlPaused TimeControl = iota
	TimeControlWaitingToPlay
	TimeControlPlaying
)

func (t TimeControl) String() string {
	switch t {
	case TimeControlPaused:
		return "PAUSED"
	case TimeControlWaitingToPlay:
		return "WAITING"
	case TimeControlPlaying:
		return "PLAYING"
	default:
		return "INVALID"
	}
}

type EventKind int

const (
	EventStatusChanged EventKind = iota
	EventBufferEmpty
	EventBufferReady
	EventStalled
	EventMetadata
)

func (k EventKind) String() string {
	switch k {
	case EventStatusChanged:
		return "status"
	case EventBufferEmpty:
		return "buffer-empty"
	case EventBufferReady:
		return "buffer-ready"
	case EventStalled:
		return "stalled"
	case EventMetadata:
		return "metadata"
	default:
		return "unknown"
	}
}

// Event is delivered on a player's Events channel. Status and Err are set for
// EventStatusChanged, Metadata for EventMetadata.
type Event struct {
	Kind     EventKind
	Status   Status
	Err      error
	Metadata string
}

// StreamInfo describes the audio stream as announced by the server.
type StreamInfo struct {
	Name       string
	Format     string
	Bitrate    int
	SampleRate int
	MetaInt    int
}

func (i StreamInfo) String() string {
	return fmt.Sprintf("%s %dk %dHz", i.Format, i.Bitrate, i.SampleRate)
}

// Options configure a new player.
type Options struct {
	// ForwardBuffer is how much decoded audio is kept ahead of the playhead.
	ForwardBuffer time.Duration
	// Volume in percent, 0-100.
	Volume int
}

// Player plays one loaded asset. Events is closed by Close.
type Player interface {
	Play()
	Pause()
	Rate() float64
	Status() Status
	TimeControl() TimeControl
	Events() <-chan Event
	SetVolume(percent int)
	Close() error
}

// Asset is an opened stream whose playability has been checked.
type Asset interface {
	URL() string
	Playable() bool
	Info() StreamInfo
	NewPlayer(opts Options) (Player, error)
	Close() error
}

type AssetLoader interface {
	LoadAsset(ctx context.Context, url string) (Asset, error)
}
