package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/aretw0/charter/internal/runtime"
	"github.com/aretw0/charter/pkg/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Interpreter is the part of charter.Interpreter the HTTP API exposes.
type Interpreter interface {
	Framework() *domain.Framework
	Warnings() []string
	RolesOf(ctx context.Context, participantID string) []domain.Role
	Authorize(ctx context.Context, participantID, action string) domain.Decision
	AuthorizeAs(ctx context.Context, participantID string, role domain.Role, action string) domain.Decision
	Action(name string) (domain.Action, error)
	PresentationDefinition(action string, role domain.Role) (string, error)
	Start(ctx context.Context, bindings map[domain.Role]string) (*domain.Session, error)
	Advance(ctx context.Context, sessionID string, opts ...runtime.AdvanceOption) (*domain.Session, *domain.StepResult, error)
	Abort(ctx context.Context, sessionID, reason string) (*domain.Session, error)
	Session(ctx context.Context, sessionID string) (*domain.Session, error)
	Sessions(ctx context.Context) ([]string, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

// Server serves the governance API.
type Server struct {
	interp   Interpreter
	streams  *StreamManager
	logger   *slog.Logger
	gatherer prometheus.Gatherer
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics exposes the gatherer on GET /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// StartRequest is the body of POST /sessions.
type StartRequest struct {
	Bindings map[domain.Role]string `json:"bindings"`
}

// AdvanceRequest is the optional body of POST /sessions/{id}/advance.
type AdvanceRequest struct {
	Prefer string `json:"prefer,omitempty"`
}

// AbortRequest is the optional body of POST /sessions/{id}/abort.
type AbortRequest struct {
	Reason string `json:"reason,omitempty"`
}

// StepResponse pairs the advanced session with what happened during the step.
type StepResponse struct {
	Session *domain.Session    `json:"session"`
	Step    *domain.StepResult `json:"step"`
}

// ActionResponse describes an action for a given acting role.
type ActionResponse struct {
	Action                 domain.Action `json:"action"`
	Role                   domain.Role   `json:"role,omitempty"`
	PresentationDefinition string        `json:"presentation_definition,omitempty"`
}

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error     string                `json:"error"`
	Decisions []domain.Decision     `json:"decisions,omitempty"`
	Records   []domain.ActionRecord `json:"records,omitempty"`
}

// NewHandler creates the HTTP handler for the interpreter.
func NewHandler(interp Interpreter, opts ...Option) http.Handler {
	s := &Server{
		interp: interp,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.streams = NewStreamManager(s.logger)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/health", s.health)
	r.Get("/framework", s.framework)
	r.Get("/participants/{id}/roles", s.roles)
	r.Get("/authorize", s.authorize)
	r.Get("/actions/{name}", s.action)

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.listSessions)
		r.Post("/", s.startSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Delete("/", s.deleteSession)
			r.Post("/advance", s.advance)
			r.Post("/abort", s.abort)
			r.Get("/events", func(w http.ResponseWriter, r *http.Request) {
				s.serveEvents(w, r, chi.URLParam(r, "id"))
			})
		})
	})

	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	fw := s.interp.Framework()
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"framework": fw.Name,
		"version":   fw.Version,
	})
}

func (s *Server) framework(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"framework": s.interp.Framework(),
		"warnings":  s.interp.Warnings(),
	})
}

func (s *Server) roles(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.writeJSON(w, http.StatusOK, map[string]any{
		"participant": id,
		"roles":       s.interp.RolesOf(r.Context(), id),
	})
}

func (s *Server) authorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	participant, action := q.Get("participant"), q.Get("action")
	if participant == "" || action == "" {
		s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "participant and action are required"})
		return
	}

	var d domain.Decision
	if role := q.Get("role"); role != "" {
		d = s.interp.AuthorizeAs(r.Context(), participant, domain.Role(role), action)
	} else {
		d = s.interp.Authorize(r.Context(), participant, action)
	}
	s.logger.Debug("authorize", "decision", d.Explain())
	s.writeJSON(w, http.StatusOK, d)
}

func (s *Server) action(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	a, err := s.interp.Action(name)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := ActionResponse{Action: a, Role: domain.Role(r.URL.Query().Get("role"))}
	if resp.Role != "" {
		ref, err := s.interp.PresentationDefinition(name, resp.Role)
		if err != nil {
			s.writeError(w, err)
			return
		}
		resp.PresentationDefinition = ref
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.interp.Sessions(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"sessions": ids})
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request) {
	var body StartRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.logger.Warn("start: invalid request body", "err", err)
		s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	session, err := s.interp.Start(r.Context(), body.Bindings)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, session)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.interp.Session(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, session)
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.interp.DeleteSession(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) advance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body AdvanceRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
			return
		}
	}

	var opts []runtime.AdvanceOption
	if body.Prefer != "" {
		opts = append(opts, runtime.PreferBranch(body.Prefer))
	}

	session, step, err := s.interp.Advance(r.Context(), id, opts...)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := StepResponse{Session: session, Step: step}
	if payload, err := json.Marshal(step); err == nil {
		s.streams.Broadcast(id, string(payload))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) abort(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	body := AbortRequest{Reason: "aborted by host"}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
			return
		}
	}

	session, err := s.interp.Abort(r.Context(), id, body.Reason)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, session)
}

// statusFor maps interpreter errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrPreconditionNotMet), errors.Is(err, domain.ErrSessionTerminated):
		return http.StatusConflict
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrUnknownAction), errors.Is(err, domain.ErrUnknownFlowState):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAmbiguousPresentationDefinition):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	resp := ErrorResponse{Error: err.Error()}

	var uerr *domain.UnauthorizedError
	if errors.As(err, &uerr) {
		resp.Decisions = uerr.Decisions
		resp.Records = uerr.Records
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "status", status, "err", err)
	} else {
		s.logger.Debug("request rejected", "status", status, "err", err)
	}
	s.writeJSON(w, status, resp)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}
