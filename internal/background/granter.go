package background

import (
	"sync"
	"time"
)

// ProcessGranter grants background time to the current process, bounded by a budget.
// A zero budget never expires.
type ProcessGranter struct {
	budget time.Duration
	mu     sync.Mutex
	next   TaskID
	timers map[TaskID]*time.Timer
}

func NewProcessGranter(budget time.Duration) *ProcessGranter {
	return &ProcessGranter{
		budget: budget,
		timers: make(map[TaskID]*time.Timer),
	}
}

func (g *ProcessGranter) BeginTask(_ string, expired func()) (TaskID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.next++
	id := g.next
	if g.budget <= 0 {
		g.timers[id] = nil
		return id, nil
	}

	g.timers[id] = time.AfterFunc(g.budget, func() {
		g.mu.Lock()
		_, live := g.timers[id]
		delete(g.timers, id)
		g.mu.Unlock()

		if live && expired != nil {
			expired()
		}
	})
	return id, nil
}

func (g *ProcessGranter) EndTask(id TaskID) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if t, ok := g.timers[id]; ok {
		if t != nil {
			t.Stop()
		}
		delete(g.timers, id)
	}
}

// Active returns the number of outstanding grants.
func (g *ProcessGranter) Active() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.timers)
}
