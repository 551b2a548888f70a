// Package web exposes the proctor over HTTP: the participant websocket, the
// identity pre-check and the operator admin API.
package web

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"proctor/auth"
	"proctor/errors"
	"proctor/infrastructure/storage"
	"proctor/observability"
	"proctor/runtime"
	"proctor/services"
	"strings"
	"time"

	"golang.org/x/net/websocket"
)

type Config struct {
	Host              string
	Port              int
	WriteTimeout      time.Duration
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// Deps are the collaborators the routes speak to.
type Deps struct {
	Registry     *runtime.Registry
	Dispatcher   *runtime.Dispatcher
	Registration *services.RegistrationService
	Escalation   *services.EscalationService
	Permissions  *services.PermissionService
	Exams        *services.ExamService
	Auth         services.IAuthService
	Tokens       *auth.Tokens
	Monitor      *observability.Monitor
}

type Server struct {
	cfg          Config
	log          *slog.Logger
	registry     *runtime.Registry
	dispatcher   *runtime.Dispatcher
	registration *services.RegistrationService
	escalation   *services.EscalationService
	permissions  *services.PermissionService
	exams        *services.ExamService
	auth         services.IAuthService
	tokens       *auth.Tokens
	monitor      *observability.Monitor
	now          func() time.Time
}

func NewServer(cfg Config, deps Deps, log *slog.Logger) *Server {
	return &Server{
		cfg:          cfg,
		log:          log,
		registry:     deps.Registry,
		dispatcher:   deps.Dispatcher,
		registration: deps.Registration,
		escalation:   deps.Escalation,
		permissions:  deps.Permissions,
		exams:        deps.Exams,
		auth:         deps.Auth,
		tokens:       deps.Tokens,
		monitor:      deps.Monitor,
		now:          time.Now,
	}
}

// Handler returns the full route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /validate_participant/{participant_id}", s.handleValidate)
	mux.HandleFunc("GET /ws/{participant_id}", s.handleWS)
	mux.HandleFunc("POST /admin/login", s.handleLogin)

	admin := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, auth.RequireRole(s.tokens, storage.RoleOperator, h))
	}
	admin("GET /admin/participants", s.handleListParticipants)
	admin("POST /admin/participants", s.handleAddParticipant)
	admin("POST /admin/participants/{id}/lock", s.handleLock)
	admin("POST /admin/participants/{id}/unlock", s.handleUnlock)
	admin("POST /admin/emergency-lock", s.handleEmergencyLock)
	admin("GET /admin/sessions/current", s.handleCurrentSession)
	admin("POST /admin/sessions", s.handleStartSession)
	admin("POST /admin/sessions/current/end", s.handleEndSession)
	admin("GET /admin/violations", s.handleListViolations)
	admin("GET /admin/permissions", s.handleListPermissions)
	admin("POST /admin/permissions/{id}/approve", s.handleApprove)
	admin("POST /admin/permissions/{id}/reject", s.handleReject)
	admin("GET /admin/escalation", s.handleGetEscalation)
	admin("PUT /admin/escalation", s.handleSetEscalation)
	admin("POST /admin/config", s.handlePushConfig)
	admin("GET /admin/stats", s.handleStats)

	return mux
}

// Run serves until ctx is done, then shuts down gracefully and closes every
// participant connection.
func (s *Server) Run(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Proctor server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("Shutting down proctor server")
	// websocket handlers are hijacked and ignored by Shutdown
	s.registry.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service":           "proctor",
		"status":            "running",
		"connected_clients": s.registry.Count(),
	})
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("participant_id"))
	p, err := s.registration.Validate(id, strings.TrimSpace(r.URL.Query().Get("name")))
	if err != nil {
		msg, ok := errors.UserMessage(err)
		if !ok {
			writeError(w, s.log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"valid": false, "message": msg})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"valid":       true,
		"participant": map[string]string{"id": p.ID, "name": p.Name},
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("participant_id"))
	if id == "" {
		http.NotFound(w, r)
		return
	}
	websocket.Handler(func(ws *websocket.Conn) {
		s.serveParticipant(ws, id)
	}).ServeHTTP(w, r)
}
