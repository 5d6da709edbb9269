package session

import (
	"context"
	"sync"
	"time"
)

// Scheduler drives every registered session's clock from one shared ticker.
// Heartbeats, test requests and all deadlines have 1-second resolution, which
// is the granularity the protocol timers need.
type Scheduler struct {
	mu       sync.Mutex
	sessions map[string]*Session

	interval time.Duration
	clock    func() time.Time
}

// NewScheduler builds a scheduler ticking once per second.
func NewScheduler() *Scheduler {
	return &Scheduler{
		sessions: make(map[string]*Session),
		interval: time.Second,
		clock:    time.Now,
	}
}

// Register adds a session to the tick fan-out.
func (sc *Scheduler) Register(s *Session) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.sessions[s.ID().String()] = s
}

// Unregister removes a session from the tick fan-out.
func (sc *Scheduler) Unregister(s *Session) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	delete(sc.sessions, s.ID().String())
}

// Run fans ticks out until ctx is cancelled. Tick delivery is best-effort: a
// session with a full queue skips the tick rather than stalling the others.
func (sc *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(sc.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sc.broadcast(sc.clock())
		}
	}
}

func (sc *Scheduler) broadcast(now time.Time) {
	sc.mu.Lock()
	targets := make([]*Session, 0, len(sc.sessions))
	for _, s := range sc.sessions {
		targets = append(targets, s)
	}
	sc.mu.Unlock()
	for _, s := range targets {
		s.Tick(now)
	}
}
