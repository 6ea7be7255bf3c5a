// Package server exposes the calculator over HTTP.
//
// POST /calculator/calculate evaluates an expression immediately. POST
// /calculator/jobs queues one and returns a request ID, which GET
// /calculator/result/{id} polls until the result is ready. POST /auth/login
// exchanges credentials for a token.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/zephyrtronium/calculator"
	"github.com/zephyrtronium/calculator/internal/auth"
	"github.com/zephyrtronium/calculator/internal/config"
	"github.com/zephyrtronium/calculator/internal/jobs"
	"github.com/zephyrtronium/calculator/internal/results"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Server is the HTTP handler for the calculator API.
type Server struct {
	cfg     config.Config
	evals   map[calculator.Unit]*calculator.Evaluator
	queue   *jobs.Queue
	store   results.Store
	auth    *auth.Authenticator
	limiter *rate.Limiter
	logger  *slog.Logger
	handler http.Handler
}

// New creates a server. queue and store serve the asynchronous endpoints.
func New(cfg config.Config, queue *jobs.Queue, store results.Store, authn *auth.Authenticator) *Server {
	logger := slog.Default().With("component", "server")
	s := &Server{
		cfg: cfg,
		evals: map[calculator.Unit]*calculator.Evaluator{
			calculator.Deg: calculator.New(calculator.WithUnit(calculator.Deg), calculator.WithLogger(logger)),
			calculator.Rad: calculator.New(calculator.WithUnit(calculator.Rad), calculator.WithLogger(logger)),
		},
		queue:  queue,
		store:  store,
		auth:   authn,
		logger: logger,
	}
	if cfg.RateLimit.Enabled {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.Burst)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /calculator/calculate", s.calculate)
	mux.HandleFunc("POST /calculator/jobs", s.submit)
	mux.HandleFunc("GET /calculator/result/{id}", s.result)
	mux.HandleFunc("POST /auth/login", s.login)
	mux.HandleFunc("GET /healthz", s.health)
	s.handler = s.recoverPanics(s.logRequests(s.cors(s.limit(mux))))
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// calculateRequest is the body of the calculate and jobs endpoints.
type calculateRequest struct {
	ID         string  `json:"id" validate:"max=128"`
	Expression *string `json:"expression" validate:"required"`
	Unit       string  `json:"unit"`
}

// errorResponse is the body of failures outside expression evaluation.
type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// decode reads a JSON request body into v and validates it.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty request body")
		}
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if dec.More() {
		return errors.New("invalid JSON: trailing data")
	}
	var verrs validator.ValidationErrors
	if err := validate.Struct(v); errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
		}
		return fmt.Errorf("invalid request: %s", strings.Join(fields, ", "))
	} else if err != nil {
		return err
	}
	return nil
}

// parseRequest decodes a calculate request and resolves its unit. The ID
// defaults to a fresh UUID.
func (s *Server) parseRequest(w http.ResponseWriter, r *http.Request) (calculateRequest, calculator.Unit, error) {
	var req calculateRequest
	if err := s.decode(w, r, &req); err != nil {
		return req, "", err
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	unit := req.Unit
	if unit == "" {
		unit = s.cfg.Unit
	}
	u, err := calculator.ParseUnit(unit)
	if err != nil {
		return req, "", err
	}
	return req, u, nil
}

// badRequest writes a validation failure for a malformed request body.
func badRequest(w http.ResponseWriter, id string, err error) {
	res := calculator.Result{
		ID: id,
		Err: &calculator.Error{
			ID:      id,
			Kind:    calculator.ValidationError,
			Message: "invalid request",
			Details: map[string]any{"reason": err.Error()},
		},
	}
	writeJSON(w, http.StatusBadRequest, res)
}

func (s *Server) calculate(w http.ResponseWriter, r *http.Request) {
	req, unit, err := s.parseRequest(w, r)
	if err != nil {
		s.logger.Warn("bad calculate request", "error", err)
		badRequest(w, req.ID, err)
		return
	}
	s.logger.Info("calculate", "id", req.ID, "expression", *req.Expression, "unit", unit)
	res := s.evals[unit].Evaluate(req.ID, *req.Expression)
	writeJSON(w, statusOf(res), res)
	switch {
	case res.OK():
		s.logger.Info("calculated", "id", req.ID, "result", res.Value)
	case res.Err.Kind == calculator.InternalError:
		s.logger.Error("calculation failed", "id", req.ID, "error", res.Err)
	default:
		s.logger.Warn("calculation rejected", "id", req.ID, "kind", res.Err.Kind, "message", res.Err.Message)
	}
}

// statusOf is the HTTP status for an evaluation result.
func statusOf(res calculator.Result) int {
	switch {
	case res.OK():
		return http.StatusOK
	case res.Err.Kind == calculator.InternalError:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

type submitResponse struct {
	RequestID     string  `json:"request_id"`
	QueuePosition int     `json:"queue_position"`
	EstimatedWait float64 `json:"estimated_wait"`
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request) {
	req, unit, err := s.parseRequest(w, r)
	if err != nil {
		s.logger.Warn("bad job request", "error", err)
		badRequest(w, req.ID, err)
		return
	}
	pos, err := s.queue.Submit(jobs.Job{ID: req.ID, Expression: *req.Expression, Unit: unit})
	if err != nil {
		// Both ErrQueueFull and ErrClosed mean try again later.
		s.logger.Warn("job rejected", "id", req.ID, "queued", s.queue.Len(), "error", err)
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "server busy, try again later", RequestID: req.ID})
		return
	}
	s.logger.Info("job queued", "id", req.ID, "expression", *req.Expression, "position", pos)
	wait := float64(pos) * s.cfg.Queue.JobEstimate.Std().Seconds()
	writeJSON(w, http.StatusAccepted, submitResponse{
		RequestID:     req.ID,
		QueuePosition: pos,
		EstimatedWait: math.Round(wait*1000) / 1000,
	})
}

type pollResponse struct {
	Status string             `json:"status"`
	Result *calculator.Result `json:"result,omitempty"`
}

func (s *Server) result(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	o, err := s.store.Take(r.Context(), id)
	switch {
	case errors.Is(err, results.ErrNotFound):
		writeJSON(w, http.StatusOK, pollResponse{Status: "pending"})
	case err != nil:
		s.logger.Error("fetching result failed", "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error", RequestID: id})
	default:
		writeJSON(w, http.StatusOK, pollResponse{Status: "completed", Result: &o.Result})
	}
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token string `json:"token"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := s.decode(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	tok, err := s.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid credentials"})
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: tok})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"queued": s.queue.Len(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Shutdown is a convenience for http.Server.Shutdown with the configured
// timeout.
func Shutdown(srv *http.Server, cfg config.ServerConfig) error {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout.Std())
	defer cancel()
	return srv.Shutdown(ctx)
}
