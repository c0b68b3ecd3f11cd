// Package background keeps the process allowed to run while it is not in the foreground.
package background

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// TaskID identifies a granted background task.
type TaskID uint64

// InvalidTask is returned when no grant is held.
const InvalidTask TaskID = 0

const taskName = "radioplayer.playback"

// ErrDenied is returned by a Granter that refuses a request.
var ErrDenied = errors.New("background execution denied")

// Granter is the platform background-execution API.
type Granter interface {
	BeginTask(name string, expired func()) (TaskID, error)
	EndTask(id TaskID)
}

// Supervisor holds at most one background grant at a time.
type Supervisor struct {
	granter Granter
	mu      sync.Mutex
	id      TaskID
	release *time.Timer
	gen     uint64
}

func NewSupervisor(granter Granter) *Supervisor {
	return &Supervisor{granter: granter}
}

// Begin ends any prior grant and requests a new one. A pending delayed release is revoked.
func (s *Supervisor) Begin() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelReleaseLocked()
	s.endLocked()

	granted := new(TaskID)
	id, err := s.granter.BeginTask(taskName, func() {
		log.Warn().Msg("Background time expired")
		s.endIfCurrent(granted)
	})
	if err != nil {
		log.Warn().Err(err).Msg("Background task request denied")
		return
	}
	*granted = id
	s.id = id
	log.Debug().Uint64("task", uint64(id)).Msg("Background task started")
}

// End releases the grant if one is held.
func (s *Supervisor) End() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelReleaseLocked()
	s.endLocked()
}

// EndAfter releases the grant after d unless Begin or End is called first.
func (s *Supervisor) EndAfter(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelReleaseLocked()
	if s.id == InvalidTask {
		return
	}

	gen := s.gen
	s.release = time.AfterFunc(d, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.gen != gen {
			return
		}
		s.release = nil
		s.endLocked()
	})
}

// Held reports whether a grant is currently held.
func (s *Supervisor) Held() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id != InvalidTask
}

func (s *Supervisor) endIfCurrent(granted *TaskID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if *granted != InvalidTask && s.id == *granted {
		s.cancelReleaseLocked()
		s.endLocked()
	}
}

func (s *Supervisor) endLocked() {
	if s.id == InvalidTask {
		return
	}
	s.granter.EndTask(s.id)
	log.Debug().Uint64("task", uint64(s.id)).Msg("Background task ended")
	s.id = InvalidTask
}

func (s *Supervisor) cancelReleaseLocked() {
	s.gen++
	if s.release != nil {
		s.release.Stop()
		s.release = nil
	}
}
