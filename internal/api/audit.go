package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/pseudodev/internal/audit"
)

// handleListAudit returns probe and remove history, newest first.
//
// Query parameters:
//   - action: probe, remove, probe_failed
//   - identity: exact device identity
//   - source: config, bus, api, catalogue, shutdown
//   - limit: page size (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "audit trail not configured")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Action:   q.Get("action"),
		Identity: q.Get("identity"),
		Source:   q.Get("source"),
	}

	var ok bool
	if filter.Limit, ok = queryInt(w, q.Get("limit"), "limit"); !ok {
		return
	}
	if filter.Offset, ok = queryInt(w, q.Get("offset"), "offset"); !ok {
		return
	}

	result, err := s.audit.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing audit entries failed", "error", err)
		writeInternalError(w, "failed to list audit entries")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// queryInt parses an optional non-negative query parameter. Empty means 0.
func queryInt(w http.ResponseWriter, raw, name string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeBadRequest(w, "invalid "+name+": "+raw)
		return 0, false
	}
	return n, true
}
