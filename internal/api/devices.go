package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/pseudodev/internal/device"
	"github.com/nerrad567/pseudodev/internal/probe"
)

// handleListDevices returns every attached device ordered by handle.
//
// Query parameters:
//   - permission: filter by permission (ro, wo, rw)
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices := s.registry.List()

	if permStr := r.URL.Query().Get("permission"); permStr != "" {
		perm, err := device.ParsePermission(permStr)
		if err != nil {
			writeBadRequest(w, "invalid permission filter: "+permStr)
			return
		}
		filtered := make([]device.Info, 0, len(devices))
		for _, d := range devices {
			if d.Permission == perm {
				filtered = append(filtered, d)
			}
		}
		devices = filtered
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
		"size":    s.registry.Size(),
	})
}

// handleGetDevice returns one device with its I/O counters.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	h, ok := parseHandle(w, r)
	if !ok {
		return
	}

	if _, err := s.registry.Lookup(h); err != nil {
		writeDeviceError(w, err)
		return
	}

	// The slot may be detached between Lookup and Stats.
	for _, st := range s.registry.Stats().Devices {
		if st.Handle == h {
			writeJSON(w, http.StatusOK, st)
			return
		}
	}
	writeDeviceError(w, device.ErrInvalidHandle)
}

// handleStats returns registry occupancy and per-device counters.
func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.Stats())
}

// handleProbeDevice attaches a new device.
//
// Body: {"identity": "...", "capacity": 512, "permission": "rw"}
// Responds 201 with the attached device.
func (s *Server) handleProbeDevice(w http.ResponseWriter, r *http.Request) {
	var req probe.ProbeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeBadRequest(w, "request body too large")
			return
		}
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}

	ctx := probe.ContextWithOrigin(r.Context(), s.origin(r))
	h, err := s.controller.Probe(ctx, req.Descriptor())
	if err != nil {
		writeDeviceError(w, err)
		return
	}

	info, err := s.registry.Lookup(h)
	if err != nil {
		// Removed again before the response was written.
		writeDeviceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

// handleRemoveDevice detaches the device at {handle}.
// Responds 204 on success and 404 when the handle is not attached.
func (s *Server) handleRemoveDevice(w http.ResponseWriter, r *http.Request) {
	h, ok := parseHandle(w, r)
	if !ok {
		return
	}

	ctx := probe.ContextWithOrigin(r.Context(), s.origin(r))
	if err := s.controller.Remove(ctx, h); err != nil {
		writeDeviceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// origin attributes an API request to the token subject.
func (s *Server) origin(r *http.Request) probe.Origin {
	origin := probe.Origin{Source: probe.SourceAPI}
	if claims := claimsFrom(r.Context()); claims != nil {
		origin.Actor = claims.Subject
	}
	return origin
}

// parseHandle reads the {handle} URL parameter, writing a 400 on failure.
func parseHandle(w http.ResponseWriter, r *http.Request) (device.Handle, bool) {
	raw := chi.URLParam(r, "handle")
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeBadRequest(w, "invalid device handle: "+raw)
		return -1, false
	}
	return device.Handle(n), true
}
