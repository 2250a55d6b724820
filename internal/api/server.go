// Package api serves the HTTP interface of the posture service: frame
// evaluation, stateless comparison, reference management and debug pages.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/banshee-data/posture.report/internal/config"
	"github.com/banshee-data/posture.report/internal/db"
	"github.com/banshee-data/posture.report/internal/feedback"
	"github.com/banshee-data/posture.report/internal/monitoring"
	"github.com/banshee-data/posture.report/internal/session"
)

// ANSI escape codes for the access log.
const (
	colorCyan      = "\033[36m"
	colorReset     = "\033[0m"
	colorYellow    = "\033[33m"
	colorBoldGreen = "\033[1;32m"
	colorBoldRed   = "\033[1;31m"
)

var logf = monitoring.Tagged("API")

// Server holds the dependencies of the HTTP handlers. store and hub may be
// nil; the endpoints that need them then answer 503.
type Server struct {
	sess  *session.Session
	store *db.DB
	hub   *feedback.Hub
	cfg   *config.TuningConfig
}

// NewServer returns a Server. cfg nil selects the default tuning.
func NewServer(sess *session.Session, store *db.DB, hub *feedback.Hub, cfg *config.TuningConfig) *Server {
	if cfg == nil {
		cfg = config.DefaultTuningConfig()
	}
	return &Server{sess: sess, store: store, hub: hub, cfg: cfg}
}

// Router returns the API routes.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(CORSMiddleware)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/ping", s.ping).Methods(http.MethodGet)
	api.HandleFunc("/session", s.showSession).Methods(http.MethodGet)
	api.HandleFunc("/evaluate_frame", s.evaluateFrame).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/compare", s.compare).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/calibrate", s.calibrate).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/set_reference_landmarks", s.setReferenceLandmarks).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/reference", s.clearReference).Methods(http.MethodDelete, http.MethodOptions)
	api.HandleFunc("/sync_reference_time", s.syncReferenceTime).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/tolerance", s.showTolerance).Methods(http.MethodGet)
	api.HandleFunc("/tolerance", s.setTolerance).Methods(http.MethodPost, http.MethodOptions)

	api.HandleFunc("/references", s.listReferences).Methods(http.MethodGet)
	api.HandleFunc("/references", s.saveReference).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/references/{id}", s.getReference).Methods(http.MethodGet)
	api.HandleFunc("/references/{id}", s.deleteReference).Methods(http.MethodDelete, http.MethodOptions)
	api.HandleFunc("/references/{id}/activate", s.activateReference).Methods(http.MethodPost, http.MethodOptions)

	if s.hub != nil {
		r.Handle("/ws/feedback", feedback.NewSocketHandler(s.sess, s.hub, s.cfg.GetWSWriteTimeout()))
	}
	return r
}

// Handler returns the complete HTTP handler: the API router at / and, with
// debug set, the tsweb debug pages under /debug/, wrapped in the access log.
func (s *Server) Handler(debug bool) (http.Handler, error) {
	root := http.NewServeMux()
	root.Handle("/", s.Router())
	if debug {
		if err := s.AttachDebugRoutes(root); err != nil {
			return nil, err
		}
	}
	return LoggingMiddleware(root), nil
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Unwrap exposes the underlying writer so http.ResponseController and the
// websocket upgrader can reach Hijack.
func (lrw *loggingResponseWriter) Unwrap() http.ResponseWriter {
	return lrw.ResponseWriter
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration. The
// feedback websocket is passed through unwrapped because it must be
// hijacked.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ws/feedback" {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// CORSMiddleware allows browser and mobile clients on other origins.
// Preflight requests are answered directly.
func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		h.Set("Access-Control-Allow-Methods", "GET,PUT,POST,DELETE,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
