package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"libraryapi/internal/app"
	"libraryapi/internal/ratelimit"
	"libraryapi/internal/util"
)

const maxBodyBytes = 1 << 20

// Limiter throttles write requests per client.
type Limiter interface {
	Allow(ctx context.Context, key string) (ratelimit.Decision, error)
}

// Config wires required dependencies for the HTTP server.
type Config struct {
	App            *app.App
	WriteLimiter   Limiter
	TrustedProxies *util.TrustedProxies
}

// Server exposes the book and loan endpoints.
type Server struct {
	app       *app.App
	limiter   Limiter
	trusted   *util.TrustedProxies
	validator *requestValidator
	mux       *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("server: app is required")
	}
	s := &Server{
		app:       cfg.App,
		limiter:   cfg.WriteLimiter,
		trusted:   cfg.TrustedProxies,
		validator: newRequestValidator(),
		mux:       http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog(s.trusted, util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

type route struct {
	pattern string
	handle  func(*Server, http.ResponseWriter, *http.Request)
	write   bool
}

// routeTable lists every endpoint. Write routes pass through the rate limiter.
var routeTable = []route{
	{"GET /healthz", (*Server).handleHealth, false},

	{"POST /api/books", (*Server).handleCreateBook, true},
	{"GET /api/books", (*Server).handleFilterBooks, false},
	{"GET /api/books/{id}", (*Server).handleGetBook, false},
	{"PUT /api/books/{id}", (*Server).handleUpdateBook, true},
	{"DELETE /api/books/{id}", (*Server).handleDeleteBook, true},

	{"POST /api/loans", (*Server).handleCreateLoan, true},
	{"GET /api/loans/{id}", (*Server).handleGetLoan, false},
	{"PATCH /api/loans/{id}", (*Server).handleReturnLoan, true},
}

// RoutePatterns returns the "METHOD /path" pattern of every endpoint.
func RoutePatterns() []string {
	out := make([]string, 0, len(routeTable))
	for _, rt := range routeTable {
		out = append(out, rt.pattern)
	}
	return out
}

func (s *Server) routes() {
	for _, rt := range routeTable {
		h := func(w http.ResponseWriter, r *http.Request) { rt.handle(s, w, r) }
		if rt.write {
			s.mux.Handle(rt.pattern, s.withWriteLimit(h))
			continue
		}
		s.mux.HandleFunc(rt.pattern, h)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) withWriteLimit(next http.HandlerFunc) http.Handler {
	if s.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		decision, err := s.limiter.Allow(r.Context(), util.ClientIP(r, s.trusted))
		if err != nil {
			util.LoggerFromContext(r.Context()).Warn("rate limiter unavailable", "err", err)
		}
		if !decision.Allowed {
			if secs := int(decision.RetryAfter.Seconds()); secs > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(secs))
			}
			writeErrors(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next(w, r)
	})
}

// writeAppError maps service errors onto HTTP statuses. Anything it does not
// recognise is logged and reported as a 500 without details.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		business *app.BusinessError
		notFound *app.NotFoundError
		inUse    *app.EntityInUseError
	)
	switch {
	case errors.As(err, &inUse):
		writeErrors(w, http.StatusConflict, inUse.Error())
	case errors.As(err, &notFound):
		writeErrors(w, http.StatusNotFound, notFound.Error())
	case errors.As(err, &business):
		writeErrors(w, http.StatusBadRequest, business.Error())
	case errors.Is(err, app.ErrInvalidArgument):
		writeErrors(w, http.StatusBadRequest, err.Error())
	default:
		util.LoggerFromContext(r.Context()).Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		writeErrors(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return err
	}
	return nil
}

func pathID(r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(r.PathValue("id")), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// apiErrors is the body of every failed request.
type apiErrors struct {
	Errors    []string `json:"errors"`
	Code      string   `json:"code"`
	RequestID string   `json:"requestId,omitempty"`
}

func writeErrors(w http.ResponseWriter, status int, msgs ...string) {
	writeJSON(w, status, apiErrors{
		Errors:    msgs,
		Code:      errorCode(status),
		RequestID: strings.TrimSpace(w.Header().Get(util.RequestIDHeader)),
	})
}

func errorCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "LIBRARY_INVALID_REQUEST"
	case http.StatusNotFound:
		return "LIBRARY_NOT_FOUND"
	case http.StatusConflict:
		return "LIBRARY_ENTITY_IN_USE"
	case http.StatusTooManyRequests:
		return "SYSTEM_RATE_LIMITED"
	default:
		if status >= http.StatusInternalServerError {
			return "SYSTEM_INTERNAL_ERROR"
		}
		return "REQUEST_ERROR"
	}
}

// writeNotFound answers an absent lookup with a bare 404.
func writeNotFound(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNotFound)
}
