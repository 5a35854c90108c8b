package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"mercator-hq/bulwark/pkg/history"
	"mercator-hq/bulwark/pkg/policy"
	"mercator-hq/bulwark/pkg/policy/properties"
	"mercator-hq/bulwark/pkg/setter"
	"mercator-hq/bulwark/pkg/telemetry/logging"
)

const defaultHistoryLimit = 20

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes a failed request.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CommandsResponse lists the installed commands.
type CommandsResponse struct {
	Version  string        `json:"version"`
	Commands []policy.View `json:"commands"`
}

// CommandResponse is one command's resolved policy and the Setter built
// from it.
type CommandResponse struct {
	Version string         `json:"version"`
	Policy  policy.View    `json:"policy"`
	Setter  *setter.Setter `json:"setter"`
}

// ReloadResponse reports the outcome of a reload request.
type ReloadResponse struct {
	Version  string `json:"version"`
	Commands int    `json:"commands"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, _ *http.Request, code int, errCode, message string) {
	writeJSON(w, code, ErrorResponse{Error: ErrorDetail{Code: errCode, Message: message}})
}

// writeLookupError maps registry errors to HTTP status codes.
func writeLookupError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, policy.ErrNotInitialized):
		writeError(w, r, http.StatusServiceUnavailable, "not_initialized", err.Error())
	case errors.Is(err, policy.ErrUnknownCommand):
		writeError(w, r, http.StatusNotFound, "unknown_command", err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

// snapshot returns the installed snapshot or writes a 503.
func (s *Server) snapshot(w http.ResponseWriter, r *http.Request) (*policy.Snapshot, bool) {
	snap := s.registry.Snapshot()
	if snap == nil {
		writeLookupError(w, r, policy.ErrNotInitialized)
		return nil, false
	}
	return snap, true
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, snap.Document())
}

func (s *Server) handleCommands(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}

	resp := CommandsResponse{
		Version:  snap.Version(),
		Commands: make([]policy.View, 0, snap.Len()),
	}
	for _, p := range snap.Policies() {
		resp.Commands = append(resp.Commands, p.View())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	ctx := logging.WithCommand(r.Context(), name)

	p, version, err := s.registry.LookupVersion(name)
	if err != nil {
		s.logger.DebugContext(ctx, "Command lookup failed", "error", err)
		writeLookupError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, CommandResponse{
		Version: version,
		Policy:  p.View(),
		Setter:  setter.FromPolicy(p),
	})
}

// handleProperties serves the flat key space. The default rendering is the
// .properties text format; ?format=json returns a key/value object and
// ?compact=true omits overrides equal to the defaults.
func (s *Server) handleProperties(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}

	opts := []properties.Option{properties.WithPrefix(s.propertyPrefix)}
	if compact, _ := strconv.ParseBool(r.URL.Query().Get("compact")); compact {
		opts = append(opts, properties.WithCompact())
	}
	set := properties.Render(snap, opts...)

	switch r.URL.Query().Get("format") {
	case "", "properties":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if _, err := set.WriteTo(w); err != nil {
			s.logger.ErrorContext(r.Context(), "Failed to write properties", "error", err)
		}
	case "json":
		writeJSON(w, http.StatusOK, set.Map())
	default:
		writeError(w, r, http.StatusBadRequest, "invalid_format", "format must be properties or json")
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, r, http.StatusNotFound, "history_disabled", "install history is disabled")
		return
	}

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, r, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	entries, err := s.history.List(r.Context(), limit)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "history_error", err.Error())
		return
	}
	// Documents are only returned by the single entry endpoint.
	out := make([]history.Entry, 0, len(entries))
	for _, e := range entries {
		summary := *e
		summary.Document = nil
		out = append(out, summary)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHistoryEntry(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, r, http.StatusNotFound, "history_disabled", "install history is disabled")
		return
	}

	entry, err := s.history.Get(r.Context(), r.PathValue("id"))
	switch {
	case errors.Is(err, history.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "not_found", err.Error())
	case err != nil:
		writeError(w, r, http.StatusInternalServerError, "history_error", err.Error())
	default:
		writeJSON(w, http.StatusOK, entry)
	}
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if s.reloader == nil {
		writeError(w, r, http.StatusNotFound, "reload_disabled", "reload is not available")
		return
	}

	if err := s.reloader.Reload(r.Context()); err != nil {
		s.logger.WarnContext(r.Context(), "Reload requested over HTTP failed", "error", err)
		writeError(w, r, http.StatusUnprocessableEntity, "reload_failed", err.Error())
		return
	}

	snap := s.registry.Snapshot()
	resp := ReloadResponse{}
	if snap != nil {
		resp.Version = snap.Version()
		resp.Commands = snap.Len()
	}
	writeJSON(w, http.StatusOK, resp)
}
