package service

import (
	"sync"
	"time"
)

// SequenceGate orders speculative checks per editing session. Only the result of the
// newest begun sequence may be applied; anything it supersedes is stale.
type SequenceGate struct {
	mu       sync.Mutex
	sessions map[string]*gateSession
	maxAge   time.Duration
	now      func() time.Time
}

// gateSession tracks one editor. applied counts only once hasApplied is set, so 0 is a
// valid first sequence.
type gateSession struct {
	latest     uint64
	applied    uint64
	hasApplied bool
	touched    time.Time
}

func (s *gateSession) alreadyApplied(seq uint64) bool {
	return s.hasApplied && seq <= s.applied
}

// NewSequenceGate builds a gate that forgets sessions idle for longer than maxAge.
func NewSequenceGate(maxAge time.Duration) *SequenceGate {
	if maxAge <= 0 {
		maxAge = 30 * time.Minute
	}
	return &SequenceGate{sessions: make(map[string]*gateSession), maxAge: maxAge, now: time.Now}
}

// Begin registers seq for session. It returns false when a newer sequence already began.
func (g *SequenceGate) Begin(session string, seq uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	g.pruneLocked(now)

	s := g.sessions[session]
	if s == nil {
		s = &gateSession{}
		g.sessions[session] = s
	}
	s.touched = now
	if seq < s.latest || s.alreadyApplied(seq) {
		return false
	}
	s.latest = seq
	return true
}

// Complete reports whether the result for seq may be applied and records it as applied.
func (g *SequenceGate) Complete(session string, seq uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	s := g.sessions[session]
	if s == nil || seq != s.latest || s.alreadyApplied(seq) {
		return false
	}
	s.applied = seq
	s.hasApplied = true
	s.touched = g.now()
	return true
}

func (g *SequenceGate) pruneLocked(now time.Time) {
	for id, s := range g.sessions {
		if now.Sub(s.touched) > g.maxAge {
			delete(g.sessions, id)
		}
	}
}
