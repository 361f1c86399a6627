package api

import (
	"net/http"
	"time"

	"github.com/snarg/audiosift/internal/database"
)

type HealthResponse struct {
	Status             string            `json:"status"`
	Version            string            `json:"version"`
	UptimeSeconds      int64             `json:"uptime_seconds"`
	WorkingSetSegments int               `json:"working_set_segments"`
	Checks             map[string]string `json:"checks"`
}

type HealthHandler struct {
	db        *database.DB
	matcher   *MatcherState
	version   string
	startTime time.Time
}

func NewHealthHandler(db *database.DB, matcher *MatcherState, version string, startTime time.Time) *HealthHandler {
	return &HealthHandler{
		db:        db,
		matcher:   matcher,
		version:   version,
		startTime: startTime,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	status := "ok"

	if h.db == nil {
		checks["database"] = "disabled"
	} else if err := h.db.HealthCheck(r.Context()); err != nil {
		checks["database"] = "error: " + err.Error()
		status = "degraded"
	} else {
		checks["database"] = "ok"
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}

	WriteJSON(w, code, HealthResponse{
		Status:             status,
		Version:            h.version,
		UptimeSeconds:      int64(time.Since(h.startTime).Seconds()),
		WorkingSetSegments: h.matcher.Len(),
		Checks:             checks,
	})
}
