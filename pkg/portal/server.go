// Package portal implements the HTTP gateway that fronts the OpenClaw CLI.
package portal

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/etherportal/portal-api/pkg/cmdrunner"
	"github.com/etherportal/portal-api/pkg/config"
	"github.com/etherportal/portal-api/pkg/metrics"
)

const serviceName = "ether-portal-api"

// Server routes portal API requests and proxies them to the tool runner.
type Server struct {
	router *mux.Router
	runner cmdrunner.Runner
	cfg    config.Config
}

// NewServer wires the routing table onto a fresh router.
func NewServer(runner cmdrunner.Runner, cfg config.Config) *Server {
	s := &Server{
		router: mux.NewRouter(),
		runner: runner,
		cfg:    cfg,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/api/status", s.getStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/api/jobs", s.getJobs).Methods(http.MethodGet)
	s.router.HandleFunc("/api/sessions", s.getSessions).Methods(http.MethodGet)
	s.router.HandleFunc("/api/health", s.getHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/api/message", s.postMessage).Methods(http.MethodPost)
	s.router.HandleFunc("/api/job/run", s.postJobRun).Methods(http.MethodPost)
	s.router.HandleFunc("/api/job/toggle", s.postJobToggle).Methods(http.MethodPost)

	if s.cfg.Metrics.Enabled {
		metrics.Init()
		s.router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	}

	s.router.NotFoundHandler = http.HandlerFunc(s.notFound)
	s.router.MethodNotAllowedHandler = http.HandlerFunc(s.notFound)
}

// Handler returns the router wrapped in the full middleware stack.
// mux middleware registered via Use does not run for NotFoundHandler,
// so the stack wraps the router from outside instead.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.router
	h = corsMiddleware(h)
	if s.cfg.Metrics.Enabled {
		h = metrics.Middleware(h)
	}
	h = loggingMiddleware(h)
	h = requestIDMiddleware(h)
	return h
}

// notFound answers every unmatched route, wrong methods included.
func (s *Server) notFound(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusNotFound, errorResponse{Error: "Not found"})
}

// writeJSON writes the envelope with the given status code.
func writeJSON(w http.ResponseWriter, status int, resp any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.WithError(err).Error("failed to encode response")
	}
}

// corsMiddleware stamps every response, errors included, and
// short-circuits preflight requests before they reach the router.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

type requestIDKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// loggingMiddleware echoes every request to the console.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		log.Printf("[API] %s %s %d %s request_id=%s",
			r.Method, r.URL.Path, ww.status, time.Since(start), requestIDFromContext(r.Context()))
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
