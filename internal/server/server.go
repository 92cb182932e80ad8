package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/audiolibrelab/funnyvoice/internal/metrics"
	"github.com/audiolibrelab/funnyvoice/internal/service"
	"github.com/audiolibrelab/funnyvoice/internal/session"
)

// Server is the HTTP remote control: the hold-to-talk button of the web page
// maps to press and release requests.
type Server struct {
	service     service.Service
	port        string
	eventBuffer int
	router      chi.Router

	// closed when shutdown begins so event streams let go of their connections
	done     chan struct{}
	doneOnce sync.Once
}

// StatusResponse represents the JSON response for status endpoint
type StatusResponse struct {
	Success bool           `json:"success"`
	Status  service.Status `json:"status"`
}

// EffectsResponse represents the JSON response for effects endpoint
type EffectsResponse struct {
	Effects []service.EffectInfo `json:"effects"`
}

// New creates a server for the given service
func New(svc service.Service, port string) *Server {
	s := &Server{
		service:     svc,
		port:        port,
		eventBuffer: svc.GetConfig().Server.EventBuffer,
		done:        make(chan struct{}),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(requestMetrics(s.service.Metrics()))

	r.Get("/", s.handleIndex)
	r.Handle("/metrics", s.service.Metrics().Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/press", s.handlePress)
		r.Post("/release", s.handleRelease)
		r.Post("/activity", s.handleActivity)
		r.Get("/effects", s.handleEffects)
		r.Post("/effects/select", s.handleSelectEffect)
		r.Get("/status", s.handleStatus)
		r.Get("/events", s.handleEvents)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.sendErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed", "path", r.URL.Path)
	})

	return r
}

// Handler returns the HTTP handler of the server
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", ":"+s.port)
	if err != nil {
		return fmt.Errorf("failed to listen on port %s: %w", s.port, err)
	}

	localIP := getLocalIP()
	slog.Info("Starting FunnyVoice Web Server",
		"port", s.port,
		"local_url", fmt.Sprintf("http://%s:%s", localIP, s.port),
		"localhost_url", fmt.Sprintf("http://localhost:%s", s.port))

	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv.RegisterOnShutdown(s.closeStreams)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		slog.Info("Shutting down web server")
		// Shutdown only waits for idle connections, so end the event streams first
		s.closeStreams()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	}
}

func (s *Server) closeStreams() {
	s.doneOnce.Do(func() { close(s.done) })
}

// handleIndex serves the hold-to-talk page
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write([]byte(indexHTML))
}

// handlePress starts a recording
func (s *Server) handlePress(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Press request received")

	if err := s.service.Press(r.Context()); err != nil {
		s.sendErrorResponse(w, statusForError(err),
			fmt.Sprintf("Failed to start recording: %v", err),
			"operation", "press")
		return
	}

	s.sendSuccess(w, "Recording started")
}

// handleRelease stops the recording and starts playback
func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Release request received")

	// Playback outlives the request
	if err := s.service.Release(context.WithoutCancel(r.Context())); err != nil {
		s.sendErrorResponse(w, statusForError(err),
			fmt.Sprintf("Failed to stop recording: %v", err),
			"operation", "release")
		return
	}

	s.sendSuccess(w, "Recording stopped, playing back")
}

// handleActivity re-arms the silence deadline
func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	if err := s.service.VoiceActivity(); err != nil {
		s.sendErrorResponse(w, statusForError(err), err.Error(), "operation", "activity")
		return
	}

	s.sendSuccess(w, "Auto-stop postponed")
}

// handleEffects lists the effect catalog
func (s *Server) handleEffects(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, EffectsResponse{Effects: s.service.Effects()})
}

// handleSelectEffect selects the effect of the next playback
func (s *Server) handleSelectEffect(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.sendErrorResponse(w, http.StatusBadRequest, "Failed to parse form", "operation", "select_effect")
		return
	}

	id := r.FormValue("effect")
	if id == "" {
		s.sendErrorResponse(w, http.StatusBadRequest, "Effect is required", "operation", "select_effect")
		return
	}

	e, err := s.service.SelectEffect(id)
	if err != nil {
		s.sendErrorResponse(w, http.StatusBadRequest, err.Error(), "effect", id, "operation", "select_effect")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"effect":  e,
	})
}

// handleStatus returns the current session state
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Success: true, Status: s.service.Status()})
}

// handleEvents streams session events as server-sent events
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.sendErrorResponse(w, http.StatusInternalServerError, "Streaming unsupported", "operation", "events")
		return
	}

	events, unsubscribe := s.service.Subscribe(s.eventBuffer)
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeSSE(w, "status", s.service.Status()); err != nil {
		return
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := writeSSE(w, string(ev.Kind), ev); err != nil {
				slog.Debug("Event stream closed", "error", err)
				return
			}
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, name string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	return err
}

// statusForError maps session errors to HTTP status codes
func statusForError(err error) int {
	switch {
	case errors.Is(err, session.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, session.ErrAlreadyRecording), errors.Is(err, session.ErrNotRecording):
		return http.StatusConflict
	case errors.Is(err, session.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) sendSuccess(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": message,
	})
}

// sendErrorResponse logs the error and sends a JSON error response to the client
func (s *Server) sendErrorResponse(w http.ResponseWriter, statusCode int, errorMsg string, logContext ...interface{}) {
	logFields := []interface{}{"error_message", errorMsg, "status_code", statusCode}
	if len(logContext) > 0 {
		logFields = append(logFields, logContext...)
	}
	slog.Error("Sending error response to client", logFields...)

	writeJSON(w, statusCode, map[string]interface{}{
		"success": false,
		"error":   errorMsg,
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("Failed to encode response", "error", err)
	}
}

// requestMetrics counts requests by route pattern
func requestMetrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			m.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		})
	}
}

func getLocalIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "localhost"
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String()
}
