package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"asrtt/internal/api"
	"asrtt/internal/config"
	"asrtt/internal/logging"
	"asrtt/internal/tracker"
)

const maxBodyBytes = 64 << 10

type apiServer struct {
	bind     string
	apiToken string
	logger   *slog.Logger
	daemon   *Daemon

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:     cfg.ListenAddress(),
		apiToken: strings.TrimSpace(cfg.Server.APIToken),
		logger:   logging.NewComponentLogger(logger, "api-server"),
		daemon:   d,
	}
	srv.server = &http.Server{
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /should-track", s.handleShouldTrack)
	mux.HandleFunc("POST /set-is-working", s.handleSetIsWorking)
	mux.HandleFunc("POST /set-not-working", s.handleSetNotWorking)
	mux.HandleFunc("PUT /max-idle-time", s.handleMaxIdleTime)
	mux.HandleFunc("GET /api/status", authMiddleware(s.apiToken, s.handleStatus))
	mux.HandleFunc("GET /api/history", authMiddleware(s.apiToken, s.handleHistory))
	return requestIDMiddleware(mux)
}

func (s *apiServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop(ctx context.Context) {
	if s.server != nil {
		_ = s.server.Shutdown(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleShouldTrack(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, api.ShouldTrackResponse{MaxIdleTime: s.daemon.tracker.Threshold()})
}

func (s *apiServer) handleSetIsWorking(w http.ResponseWriter, r *http.Request) {
	var req api.WorkingRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.respond(w, r, s.daemon.tracker.Signal(r.Context(), req.Activity()))
}

func (s *apiServer) handleSetNotWorking(w http.ResponseWriter, r *http.Request) {
	var req api.WorkingRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.respond(w, r, s.daemon.tracker.StopWorking(r.Context(), req.Activity()))
}

func (s *apiServer) handleMaxIdleTime(w http.ResponseWriter, r *http.Request) {
	var req api.MaxIdleTimeRequest
	if !s.decode(w, r, &req) {
		return
	}
	_, err := s.daemon.tracker.SetThreshold(r.Context(), string(req.Time), req.Password)
	s.respond(w, r, err)
}

func (s *apiServer) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.daemon.Status())
}

func (s *apiServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}
	entries, err := s.daemon.History(r.Context(), limit)
	if err != nil {
		s.log(r).Error("history query failed", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "history unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, api.HistoryResponse{Entries: entries})
}

// decode reads a JSON body. Malformed bodies answer 400 and return false.
func (s *apiServer) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		logging.WarnWithContext(s.log(r), "bad request", "bad_request",
			logging.String("path", r.URL.Path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "send a JSON object body"),
			logging.String(logging.FieldImpact, "request rejected"),
		)
		http.Error(w, "Bad request", http.StatusBadRequest)
		return false
	}
	return true
}

// respond maps tracker outcomes onto the coarse status codes clients expect.
func (s *apiServer) respond(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case err == nil, errors.Is(err, tracker.ErrTrackingDisabled):
		w.WriteHeader(http.StatusOK)
	case errors.Is(err, tracker.ErrInvalidInput):
		s.log(r).Error("bad request",
			logging.String(logging.FieldEventType, "bad_request"),
			logging.String("path", r.URL.Path),
			logging.Error(err),
		)
		http.Error(w, "Bad request", http.StatusBadRequest)
	case errors.Is(err, tracker.ErrUnauthorized):
		http.Error(w, "Forbidden", http.StatusForbidden)
	default:
		s.log(r).Error("request failed", logging.String("path", r.URL.Path), logging.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}

func (s *apiServer) log(r *http.Request) *slog.Logger {
	return logging.WithContext(r.Context(), s.logger)
}
