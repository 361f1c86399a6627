package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/snarg/audiosift/internal/analyzer"
	"github.com/snarg/audiosift/internal/segment"
)

// mockAnalyzer implements AudioAnalyzer for testing.
type mockAnalyzer struct {
	lastSource string
	lastIsURL  bool
	segs       []segment.Segment
	err        error
}

func (m *mockAnalyzer) Analyze(ctx context.Context, source string, isURL bool) ([]segment.Segment, error) {
	m.lastSource = source
	m.lastIsURL = isURL
	if m.err != nil {
		return nil, m.err
	}
	return m.segs, nil
}

func postAnalyze(t *testing.T, h *AnalyzeHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Analyze(rec, req)
	return rec
}

func TestAnalyze_Success_FeedsWorkingSet(t *testing.T) {
	segs := []segment.Segment{
		{StartMS: 0, EndMS: 5000, Text: "intro", Topics: []string{"tech"}, Sentiment: "positive", Confidence: 0.9},
	}
	mock := &mockAnalyzer{segs: segs}
	state := NewMatcherState()
	h := NewAnalyzeHandler(mock, state, zerolog.Nop())

	rec := postAnalyze(t, h, `{"source":"https://example.com/a.mp3","is_url":true}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if mock.lastSource != "https://example.com/a.mp3" || !mock.lastIsURL {
		t.Errorf("analyzer called with (%q, %v)", mock.lastSource, mock.lastIsURL)
	}
	var resp struct {
		Total int `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 1 {
		t.Errorf("expected total 1, got %d", resp.Total)
	}
	if state.Len() != 1 {
		t.Errorf("expected 1 segment in working set, got %d", state.Len())
	}
}

func TestAnalyze_MissingSource(t *testing.T) {
	h := NewAnalyzeHandler(&mockAnalyzer{}, NewMatcherState(), zerolog.Nop())
	rec := postAnalyze(t, h, `{"is_url":true}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestAnalyze_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not_found", &analyzer.NotFoundError{Path: "/x.mp3"}, http.StatusNotFound},
		{"upload", &analyzer.UploadError{Status: 500, Body: "boom"}, http.StatusBadGateway},
		{"submission", &analyzer.SubmissionError{Status: 400, Reason: "bad url"}, http.StatusBadGateway},
		{"transcription", &analyzer.TranscriptionError{JobID: "j", Message: "too short"}, http.StatusBadGateway},
		{"timeout", &analyzer.TimeoutError{JobID: "j"}, http.StatusGatewayTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := NewMatcherState()
			h := NewAnalyzeHandler(&mockAnalyzer{err: tt.err}, state, zerolog.Nop())
			rec := postAnalyze(t, h, `{"source":"/x.mp3"}`)
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rec.Code)
			}
			if state.Len() != 0 {
				t.Errorf("failed analyses must not feed the working set")
			}
		})
	}
}
