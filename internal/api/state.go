package api

import (
	"sync"

	"github.com/snarg/audiosift/internal/match"
	"github.com/snarg/audiosift/internal/segment"
)

// MatcherState wraps the matcher working set for shared use by HTTP
// handlers and the drop-directory watcher. The matcher itself is not
// concurrency-safe; all synchronization lives here.
type MatcherState struct {
	mu sync.RWMutex
	m  *match.Matcher
}

func NewMatcherState() *MatcherState {
	return &MatcherState{m: match.New()}
}

func (s *MatcherState) Add(segs []segment.Segment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m.AddSegments(segs)
}

func (s *MatcherState) Match(prefs match.Preferences) []match.Match {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.m.MatchContent(prefs)
}

func (s *MatcherState) Segments() []segment.Segment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.m.Segments()
}

func (s *MatcherState) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m.Reset()
}

func (s *MatcherState) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.m.Len()
}
