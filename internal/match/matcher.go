// Package match ranks accumulated segments against caller preferences.
package match

import (
	"sort"

	"github.com/snarg/audiosift/internal/segment"
)

// Scoring weights: each shared topic label is worth topicWeight, a tone
// match adds toneWeight, and the sum is discounted by segment confidence.
const (
	topicWeight = 0.5
	toneWeight  = 0.3
)

// Preferences are the caller-supplied matching criteria. Zero values mean
// "no preference" and simply never match.
type Preferences struct {
	Topics        []string `json:"topics"`
	PreferredTone string   `json:"preferred_tone"`
}

// Match pairs a segment with its computed relevance score.
type Match struct {
	Segment segment.Segment `json:"segment"`
	Score   float64         `json:"score"`
}

// Matcher holds an append-only working set of segments. It performs no
// deduplication: segments from multiple analysis runs accumulate in
// insertion order. Not safe for concurrent use; callers synchronize.
type Matcher struct {
	segments []segment.Segment
}

// New creates an empty Matcher.
func New() *Matcher {
	return &Matcher{}
}

// AddSegments appends to the working set. No validation, no dedup.
func (m *Matcher) AddSegments(segs []segment.Segment) {
	m.segments = append(m.segments, segs...)
}

// Len reports the current working set size.
func (m *Matcher) Len() int {
	return len(m.segments)
}

// Reset discards the working set.
func (m *Matcher) Reset() {
	m.segments = nil
}

// Segments returns a copy of the working set in insertion order.
func (m *Matcher) Segments() []segment.Segment {
	out := make([]segment.Segment, len(m.segments))
	copy(out, m.segments)
	return out
}

// MatchContent scores every segment against prefs and returns matches
// sorted by descending score. Segments scoring exactly 0 are excluded.
// The sort is stable, so equal scores keep insertion order.
func (m *Matcher) MatchContent(prefs Preferences) []Match {
	want := make(map[string]struct{}, len(prefs.Topics))
	for _, t := range prefs.Topics {
		want[t] = struct{}{}
	}

	var matches []Match
	for _, seg := range m.segments {
		score := scoreSegment(seg, want, prefs.PreferredTone)
		if score > 0 {
			matches = append(matches, Match{Segment: seg, Score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches
}

// scoreSegment computes the relevance of one segment. Topic membership is
// set semantics: duplicate labels on the segment count once. There is no
// normalization by topic count, so broad segments can accumulate score
// from many overlaps. Confidence multiplies last, so confidence 0 always
// yields 0.
func scoreSegment(seg segment.Segment, want map[string]struct{}, tone string) float64 {
	score := 0.0

	seen := make(map[string]struct{}, len(seg.Topics))
	for _, t := range seg.Topics {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := want[t]; ok {
			score += topicWeight
		}
	}

	if tone != "" && seg.Sentiment == tone {
		score += toneWeight
	}

	return score * seg.Confidence
}
