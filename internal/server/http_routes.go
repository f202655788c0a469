package server

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// RequestIDHeader carries the correlation id of a request
const RequestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// setupRoutes configures all HTTP routes and middleware
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	rateLimitHandler := s.rateLimitMiddleware()
	requestLimitHandler := s.requestSizeLimitMiddleware()
	post := func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc("POST "+pattern, rateLimitHandler(requestLimitHandler(h)))
	}

	mux.HandleFunc("GET /{$}", s.indexHandler)
	mux.HandleFunc("GET /static/app.css", s.stylesheetHandler)
	mux.HandleFunc("GET /session/{id}/status", s.statusHandler)
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /stats", s.statsHandler)

	post("/wizard/next", s.formAction("wizard_next", s.Wizard.Advance))
	post("/wizard/back", s.formAction("wizard_back", s.Wizard.Retreat))
	post("/resume", s.formAction("submit_resume", s.Wizard.SubmitResumeDetails))
	post("/test/setup", s.formAction("open_test_setup", withoutForm(s.Wizard.OpenTestSetup)))
	post("/test/generate", s.formAction("generate_test", s.Wizard.GenerateTest))
	post("/test/submit", s.formAction("evaluate_test", s.Wizard.EvaluateTest))
	post("/test/retry", s.formAction("retry_test", withoutForm(s.Wizard.RetryTest)))
	post("/jobs", s.formAction("recommend_jobs", withoutForm(s.Wizard.RecommendJobs)))
	post("/navigate", s.formAction("navigate", func(ctx context.Context, id string, form url.Values) error {
		return s.Wizard.Navigate(ctx, id, form.Get(fieldTarget))
	}))
	post("/restart", s.restartHandler)

	return mux
}

// handler wraps the routes with the request scoped middleware
func (s *Server) handler() http.Handler {
	var h http.Handler = s.setupRoutes()
	h = s.accessLogMiddleware(h)
	h = requestIDMiddleware(h)
	if s.Observability != nil {
		h = s.Observability.HTTPMiddleware()(h)
	}
	return h
}

// requestIDMiddleware reuses the caller's request id or assigns a new one
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

// RequestID returns the id assigned to the request carrying ctx
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// accessLogMiddleware logs one line per request
func (s *Server) accessLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		s.Logger.Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"bytes", rec.bytes,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", RequestID(r.Context()),
			"client_ip", getClientIP(r, s.trustProxy()))
	})
}

// requestSizeLimitMiddleware limits the size of incoming requests
func (s *Server) requestSizeLimitMiddleware() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if s.MaxRequestSize > 0 {
				r.Body = http.MaxBytesReader(w, r.Body, s.MaxRequestSize)
			}

			next(w, r)
		}
	}
}
