package api

import (
	"net/http"

	"github.com/snarg/audiosift/internal/match"
	"github.com/snarg/audiosift/internal/metrics"
)

type MatchHandler struct {
	matcher *MatcherState
}

func NewMatchHandler(matcher *MatcherState) *MatchHandler {
	return &MatchHandler{matcher: matcher}
}

// Match ranks the working set against the caller's preferences.
func (h *MatchHandler) Match(w http.ResponseWriter, r *http.Request) {
	var prefs match.Preferences
	if err := DecodeJSON(r, &prefs); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	metrics.MatchRequestsTotal.Inc()
	matches := h.matcher.Match(prefs)

	WriteJSON(w, http.StatusOK, map[string]any{
		"matches": matches,
		"total":   len(matches),
	})
}
