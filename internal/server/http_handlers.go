package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"

	"skillwizard/internal/dispatch"
	apperrors "skillwizard/internal/errors"
	"skillwizard/internal/render"
	"skillwizard/internal/session"
)

// Form fields shared by every page form
const (
	fieldSessionID = "session_id"
	fieldTarget    = "target"
)

const (
	msgUnexpected      = "Something went wrong. Please reload the page and try again."
	msgRequestTooLarge = "The submitted form is too large."
)

// formActionFunc is a dispatcher operation driven by a posted form
type formActionFunc func(ctx context.Context, id string, form url.Values) error

func withoutForm(fn func(ctx context.Context, id string) error) formActionFunc {
	return func(ctx context.Context, id string, _ url.Values) error {
		return fn(ctx, id)
	}
}

// indexHandler starts a new session for every page load
func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	sess, err := s.Wizard.Start(r.Context())
	if err != nil {
		s.fail(w, r, err, "Failed to start session")
		return
	}
	s.Metrics.RecordSessionStarted(r.Context())
	s.renderPage(w, r, dispatch.View{Session: sess})
}

// restartHandler throws the session away and paints the first step again
func (s *Server) restartHandler(w http.ResponseWriter, r *http.Request) {
	if !s.parseForm(w, r) {
		return
	}
	sess, err := s.Wizard.Restart(r.Context(), r.PostForm.Get(fieldSessionID))
	if err != nil {
		s.fail(w, r, err, "Failed to restart session")
		return
	}
	s.Metrics.RecordSessionStarted(r.Context())
	s.renderPage(w, r, dispatch.View{Session: sess})
}

// formAction runs a dispatcher operation for the posted session and renders
// the resulting page
func (s *Server) formAction(name string, fn formActionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.parseForm(w, r) {
			return
		}
		ctx := r.Context()
		id := r.PostForm.Get(fieldSessionID)
		if id == "" {
			s.renderExpired(w, r)
			return
		}

		if err := fn(ctx, id, r.PostForm); err != nil {
			s.handleActionError(w, r, name, err)
			return
		}

		view, err := s.Wizard.View(ctx, id)
		if err != nil {
			s.handleActionError(w, r, name, err)
			return
		}
		s.renderPage(w, r, view)
	}
}

// parseForm reads the posted form, answering the request itself on failure
func (s *Server) parseForm(w http.ResponseWriter, r *http.Request) bool {
	if err := r.ParseForm(); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			http.Error(w, msgRequestTooLarge, http.StatusRequestEntityTooLarge)
			return false
		}
		http.Error(w, "Invalid form submission.", http.StatusBadRequest)
		return false
	}
	return true
}

func (s *Server) handleActionError(w http.ResponseWriter, r *http.Request, action string, err error) {
	appErr, ok := apperrors.As(err)
	switch {
	case ok && appErr.Code == apperrors.ErrCodeSessionNotFound:
		s.Logger.Debug("Session expired", "action", action, "request_id", RequestID(r.Context()))
		s.renderExpired(w, r)
	case ok && appErr.Type == apperrors.ErrorTypeValidation:
		http.Error(w, appErr.Message, http.StatusBadRequest)
	default:
		s.fail(w, r, err, "Action failed", "action", action)
	}
}

// renderExpired starts over with a notice explaining why
func (s *Server) renderExpired(w http.ResponseWriter, r *http.Request) {
	sess, err := s.Wizard.Start(r.Context())
	if err != nil {
		s.fail(w, r, err, "Failed to start replacement session")
		return
	}
	s.Metrics.RecordSessionStarted(r.Context())
	s.renderPage(w, r, dispatch.View{
		Session: sess,
		Notice:  &session.Notice{Kind: session.NoticeInfo, Message: dispatch.MsgSessionExpired},
	})
}

func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, view dispatch.View) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := s.Renderer.Page(w, render.NewPageData(view, s.pageOptions)); err != nil {
		s.fail(w, r, err, "Failed to render page")
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error, message string, args ...any) {
	args = append(args, "request_id", RequestID(r.Context()), "path", r.URL.Path)
	s.Logger.LogError(err, message, args...)
	http.Error(w, msgUnexpected, http.StatusInternalServerError)
}

// stylesheetHandler serves the current stylesheet
func (s *Server) stylesheetHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	if _, err := w.Write(s.Renderer.Stylesheet()); err != nil {
		s.Logger.LogError(err, "Failed to write stylesheet")
	}
}

// statusHandler reports the busy label and visible section of a session
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	status, err := s.Wizard.Status(r.Context(), r.PathValue("id"))
	if err != nil {
		if appErr, ok := apperrors.As(err); ok && appErr.Code == apperrors.ErrCodeSessionNotFound {
			writeErrorResponse(w, "Session not found", appErr.Message, http.StatusNotFound)
			return
		}
		s.Logger.LogError(err, "Failed to load session status", "request_id", RequestID(r.Context()))
		writeErrorResponse(w, "Internal error", "", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// healthHandler reports the server and backend circuit breaker health
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"status":  "healthy",
		"service": "skillwizard",
		"version": s.Version,
	}

	status := http.StatusOK
	if s.Backend != nil {
		response["circuit_breakers"] = s.Backend.Stats()
		if !s.Backend.Healthy() {
			response["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, status, response)
}

// statsHandler provides server statistics including rate limiting info
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"service": "skillwizard",
		"version": s.Version,
		"server": map[string]any{
			"max_request_size_bytes": s.MaxRequestSize,
		},
	}

	if s.RateLimiter != nil {
		response["rate_limiting"] = s.RateLimiter.GetStats()
	} else {
		response["rate_limiting"] = map[string]any{
			"enabled": false,
		}
	}

	if s.RateLimit != nil {
		response["rate_limit_config"] = map[string]any{
			"enabled":          s.RateLimit.Enabled,
			"requests_per_min": s.RateLimit.RequestsPerMin,
			"burst_capacity":   s.RateLimit.BurstCapacity,
			"trust_proxy":      s.RateLimit.TrustProxy,
		}
	}

	sessions := map[string]any{}
	if s.AppConfig != nil {
		sessions["store"] = s.AppConfig.Session.Store
		sessions["ttl"] = s.AppConfig.Session.TTL.String()
	}
	if counter, ok := s.Store.(interface{ Len() int }); ok {
		sessions["active"] = counter.Len()
	}
	response["sessions"] = sessions

	if s.Backend != nil {
		response["backend"] = s.Backend.Stats()
	}

	writeJSON(w, http.StatusOK, response)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

// writeErrorResponse writes a standardized error response
func writeErrorResponse(w http.ResponseWriter, error, message string, statusCode int) {
	writeJSON(w, statusCode, ErrorResponse{
		Error:   error,
		Message: message,
	})
}
