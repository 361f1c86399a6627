// Package segment defines the normalized unit of analyzed audio shared by
// the analyzer, matcher, API, and persistence layers.
package segment

// Segment is one analyzed chapter of a source audio file. Segments are
// built only at the analyzer's parse boundary, with all optional service
// fields already defaulted, and are treated as immutable afterwards.
type Segment struct {
	StartMS    int      `json:"start_ms"`
	EndMS      int      `json:"end_ms"`
	Text       string   `json:"text"`
	Topics     []string `json:"topics"`
	Sentiment  string   `json:"sentiment"`
	Confidence float64  `json:"confidence"`
}

// DurationMS returns the segment length in milliseconds.
func (s Segment) DurationMS() int {
	return s.EndMS - s.StartMS
}
