package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/snarg/audiosift/internal/database"
	"github.com/snarg/audiosift/internal/segment"
)

// SegmentsHandler manages the in-memory working set and, when a database
// is configured, the persistent segment store.
type SegmentsHandler struct {
	matcher *MatcherState
	db      *database.DB // nil when persistence is disabled
}

func NewSegmentsHandler(matcher *MatcherState, db *database.DB) *SegmentsHandler {
	return &SegmentsHandler{matcher: matcher, db: db}
}

func (h *SegmentsHandler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Add)
	r.Delete("/", h.Reset)
	r.Get("/stored", h.ListStored)
	r.Delete("/stored", h.DeleteStored)
}

// List returns the current working set in insertion order.
func (h *SegmentsHandler) List(w http.ResponseWriter, r *http.Request) {
	segs := h.matcher.Segments()
	WriteJSON(w, http.StatusOK, map[string]any{
		"segments": segs,
		"total":    len(segs),
	})
}

// Add bulk-appends caller-supplied segments to the working set. No
// validation, no dedup: matcher semantics.
func (h *SegmentsHandler) Add(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Segments []segment.Segment `json:"segments"`
	}
	if err := DecodeJSON(r, &body); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(body.Segments) == 0 {
		WriteError(w, http.StatusBadRequest, "segments is required")
		return
	}

	h.matcher.Add(body.Segments)
	WriteJSON(w, http.StatusOK, map[string]any{
		"added": len(body.Segments),
		"total": h.matcher.Len(),
	})
}

// Reset discards the working set.
func (h *SegmentsHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.matcher.Reset()
	WriteJSON(w, http.StatusOK, map[string]any{"total": 0})
}

// ListStored pages through the persistent segment store.
func (h *SegmentsHandler) ListStored(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		WriteError(w, http.StatusServiceUnavailable, "segment store not configured")
		return
	}

	p, err := ParsePagination(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	stored, err := h.db.ListSegments(r.Context(), p.Limit, p.Offset)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to list stored segments")
		return
	}
	total, err := h.db.CountSegments(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to count stored segments")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"segments": stored,
		"total":    total,
		"limit":    p.Limit,
		"offset":   p.Offset,
	})
}

// DeleteStored clears the persistent store, or just one job's segments
// when ?job_id= is given.
func (h *SegmentsHandler) DeleteStored(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		WriteError(w, http.StatusServiceUnavailable, "segment store not configured")
		return
	}

	if jobID := r.URL.Query().Get("job_id"); jobID != "" {
		deleted, err := h.db.DeleteSegmentsByJob(r.Context(), jobID)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to delete segments")
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"deleted": deleted})
		return
	}

	if err := h.db.DeleteAllSegments(r.Context()); err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to clear segment store")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"deleted": "all"})
}
