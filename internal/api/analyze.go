package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/snarg/audiosift/internal/analyzer"
	"github.com/snarg/audiosift/internal/segment"
)

// AudioAnalyzer is the slice of the analyzer the API needs.
type AudioAnalyzer interface {
	Analyze(ctx context.Context, source string, isURL bool) ([]segment.Segment, error)
}

type AnalyzeHandler struct {
	analyzer AudioAnalyzer
	matcher  *MatcherState
	log      zerolog.Logger
}

func NewAnalyzeHandler(a AudioAnalyzer, matcher *MatcherState, log zerolog.Logger) *AnalyzeHandler {
	return &AnalyzeHandler{analyzer: a, matcher: matcher, log: log}
}

// Analyze runs one full analysis synchronously and feeds the resulting
// segments into the working set. The request blocks until the remote job
// reaches a terminal state or the polling deadline expires.
func (h *AnalyzeHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Source string `json:"source"`
		IsURL  bool   `json:"is_url"`
	}
	if err := DecodeJSON(r, &body); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Source == "" {
		WriteError(w, http.StatusBadRequest, "source is required")
		return
	}

	segs, err := h.analyzer.Analyze(r.Context(), body.Source, body.IsURL)
	if err != nil {
		writeAnalyzeError(w, err)
		return
	}

	h.matcher.Add(segs)

	WriteJSON(w, http.StatusOK, map[string]any{
		"segments": segs,
		"total":    len(segs),
	})
}

// writeAnalyzeError maps the analyzer's error taxonomy onto HTTP statuses:
// a missing local file is the caller's fault, a timed-out job is a gateway
// timeout, and everything the remote service broke is a bad gateway.
func writeAnalyzeError(w http.ResponseWriter, err error) {
	var (
		nf *analyzer.NotFoundError
		ue *analyzer.UploadError
		se *analyzer.SubmissionError
		te *analyzer.TranscriptionError
		to *analyzer.TimeoutError
	)
	switch {
	case errors.As(err, &nf):
		WriteError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &to):
		WriteError(w, http.StatusGatewayTimeout, err.Error())
	case errors.As(err, &ue), errors.As(err, &se), errors.As(err, &te):
		WriteError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful to write.
		WriteError(w, http.StatusServiceUnavailable, "request canceled")
	default:
		WriteError(w, http.StatusInternalServerError, "analysis failed")
	}
}
