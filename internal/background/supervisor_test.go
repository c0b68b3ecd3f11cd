package background

import (
	"sync"
	"testing"
	"time"
)

type fakeGranter struct {
	mu    sync.Mutex
	deny  bool
	next  TaskID
	live  map[TaskID]func()
	begun int
	ended []TaskID
}

func newFakeGranter() *fakeGranter {
	return &fakeGranter{live: make(map[TaskID]func())}
}

func (f *fakeGranter) BeginTask(_ string, expired func()) (TaskID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.begun++
	if f.deny {
		return InvalidTask, ErrDenied
	}
	f.next++
	f.live[f.next] = expired
	return f.next, nil
}

func (f *fakeGranter) EndTask(id TaskID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.live, id)
	f.ended = append(f.ended, id)
}

func (f *fakeGranter) expire(id TaskID) {
	f.mu.Lock()
	fn := f.live[id]
	f.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (f *fakeGranter) liveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.live)
}

func TestBeginReplacesPriorGrant(t *testing.T) {
	g := newFakeGranter()
	s := NewSupervisor(g)

	s.Begin()
	s.Begin()

	if g.liveCount() != 1 {
		t.Errorf("live grants = %d, want 1", g.liveCount())
	}
	if len(g.ended) != 1 || g.ended[0] != 1 {
		t.Errorf("ended = %v, want [1]", g.ended)
	}
	if !s.Held() {
		t.Error("Held() = false after Begin")
	}
}

func TestEndIsIdempotent(t *testing.T) {
	g := newFakeGranter()
	s := NewSupervisor(g)

	s.End()
	s.Begin()
	s.End()
	s.End()

	if len(g.ended) != 1 {
		t.Errorf("EndTask called %d times, want 1", len(g.ended))
	}
	if s.Held() {
		t.Error("Held() = true after End")
	}
}

func TestExpirationEndsGrant(t *testing.T) {
	g := newFakeGranter()
	s := NewSupervisor(g)

	s.Begin()
	g.expire(1)

	if s.Held() {
		t.Error("grant should be released when it expires")
	}
}

func TestStaleExpirationIgnored(t *testing.T) {
	g := newFakeGranter()
	s := NewSupervisor(g)

	s.Begin()
	g.mu.Lock()
	staleExpire := g.live[1]
	g.mu.Unlock()

	s.Begin()
	staleExpire()

	if !s.Held() {
		t.Error("expiration of a replaced grant must not release the current one")
	}
}

func TestDeniedGrantDoesNotPanic(t *testing.T) {
	g := newFakeGranter()
	g.deny = true
	s := NewSupervisor(g)

	s.Begin()

	if s.Held() {
		t.Error("Held() = true after denial")
	}
	s.End()
}

func TestEndAfter(t *testing.T) {
	t.Run("releases after delay", func(t *testing.T) {
		g := newFakeGranter()
		s := NewSupervisor(g)
		s.Begin()

		s.EndAfter(20 * time.Millisecond)
		if !s.Held() {
			t.Fatal("grant released too early")
		}

		time.Sleep(80 * time.Millisecond)
		if s.Held() {
			t.Error("grant should be released after the delay")
		}
	})

	t.Run("revoked by Begin", func(t *testing.T) {
		g := newFakeGranter()
		s := NewSupervisor(g)
		s.Begin()

		s.EndAfter(20 * time.Millisecond)
		s.Begin()

		time.Sleep(80 * time.Millisecond)
		if !s.Held() {
			t.Error("a new Begin should revoke the delayed release")
		}
	})

	t.Run("no grant held", func(t *testing.T) {
		g := newFakeGranter()
		s := NewSupervisor(g)

		s.EndAfter(time.Millisecond)
		time.Sleep(20 * time.Millisecond)

		if len(g.ended) != 0 {
			t.Errorf("ended = %v, want none", g.ended)
		}
	})
}

func TestProcessGranter(t *testing.T) {
	t.Run("unbounded", func(t *testing.T) {
		g := NewProcessGranter(0)
		id, err := g.BeginTask("x", func() { t.Error("unbounded grant expired") })
		if err != nil || id == InvalidTask {
			t.Fatalf("BeginTask() = %v, %v", id, err)
		}
		if g.Active() != 1 {
			t.Errorf("Active() = %d, want 1", g.Active())
		}
		g.EndTask(id)
		if g.Active() != 0 {
			t.Errorf("Active() = %d after EndTask", g.Active())
		}
	})

	t.Run("budget expires", func(t *testing.T) {
		g := NewProcessGranter(10 * time.Millisecond)
		expired := make(chan struct{}, 1)

		_, err := g.BeginTask("x", func() { expired <- struct{}{} })
		if err != nil {
			t.Fatal(err)
		}

		select {
		case <-expired:
		case <-time.After(time.Second):
			t.Fatal("grant did not expire")
		}
		if g.Active() != 0 {
			t.Errorf("Active() = %d after expiry", g.Active())
		}
	})

	t.Run("ended before budget", func(t *testing.T) {
		g := NewProcessGranter(20 * time.Millisecond)
		id, _ := g.BeginTask("x", func() { t.Error("ended grant expired") })
		g.EndTask(id)
		time.Sleep(50 * time.Millisecond)
	})
}
