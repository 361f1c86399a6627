package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/snarg/audiosift/internal/segment"
)

type mockAnalyzer struct {
	lastSource string
	lastIsURL  bool
	segs       []segment.Segment
	err        error
}

func (m *mockAnalyzer) Analyze(ctx context.Context, source string, isURL bool) ([]segment.Segment, error) {
	m.lastSource = source
	m.lastIsURL = isURL
	return m.segs, m.err
}

func TestIsAudioFile(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/drop/podcast.mp3", true},
		{"/drop/PODCAST.MP3", true},
		{"/drop/clip.wav", true},
		{"/drop/voice.m4a", true},
		{"/drop/video.mp4", true},
		{"/drop/notes.txt", false},
		{"/drop/meta.json", false},
		{"/drop/.mp3.partial", false},
		{"/drop/noext", false},
	}
	for _, tt := range tests {
		if got := isAudioFile(tt.path); got != tt.want {
			t.Errorf("isAudioFile(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestProcess_FeedsSink(t *testing.T) {
	segs := []segment.Segment{{StartMS: 0, EndMS: 100, Sentiment: "neutral", Confidence: 1}}
	mock := &mockAnalyzer{segs: segs}

	var sinkPath string
	var sinkSegs []segment.Segment
	w := NewWatcher(t.TempDir(), mock, func(path string, s []segment.Segment) {
		sinkPath = path
		sinkSegs = s
	}, zerolog.Nop())

	w.process("/drop/episode.mp3")

	if mock.lastSource != "/drop/episode.mp3" || mock.lastIsURL {
		t.Errorf("analyzer called with (%q, %v)", mock.lastSource, mock.lastIsURL)
	}
	if sinkPath != "/drop/episode.mp3" || len(sinkSegs) != 1 {
		t.Errorf("sink got (%q, %d segments)", sinkPath, len(sinkSegs))
	}
	if processed, failed := w.Stats(); processed != 1 || failed != 0 {
		t.Errorf("stats = (%d, %d), want (1, 0)", processed, failed)
	}
}

func TestProcess_AnalyzeFailureCounted(t *testing.T) {
	mock := &mockAnalyzer{err: errors.New("service down")}

	sinkCalled := false
	w := NewWatcher(t.TempDir(), mock, func(string, []segment.Segment) {
		sinkCalled = true
	}, zerolog.Nop())

	w.process("/drop/broken.mp3")

	if sinkCalled {
		t.Error("sink must not run on analysis failure")
	}
	if processed, failed := w.Stats(); processed != 0 || failed != 1 {
		t.Errorf("stats = (%d, %d), want (0, 1)", processed, failed)
	}
}
