// Package server exposes the query engine over HTTP.
//
// Routes:
//
//	POST /v1/search        run a core.PreferenceQuery
//	GET  /v1/parcels/{id}  parcel detail from the current generation
//	GET  /healthz          liveness
//	GET  /readyz           200 once a generation is published
//	GET  /metrics          Prometheus exposition, when configured
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
	"time"

	"github.com/MarcinSar/moja-dzialka-sub000/core"
	"github.com/MarcinSar/moja-dzialka-sub000/search"
)

// maxRequestBytes bounds the size of a search request body.
const maxRequestBytes = 1 << 20

// Querier answers queries. *search.Searcher implements it.
type Querier interface {
	Search(ctx context.Context, q *core.PreferenceQuery) (*core.QueryResponse, error)
	Detail(ctx context.Context, id string) (*core.Parcel, error)
}

// Server serves the HTTP API.
type Server struct {
	querier        Querier
	source         search.GenerationSource
	metrics        http.Handler
	requestTimeout time.Duration
	retryAfter     time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	logger         *slog.Logger
}

// Option configures a Server.
type Option func(*Server) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) error {
		s.metrics = h
		return nil
	}
}

// WithRequestTimeout bounds each search. Zero disables the bound.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) error {
		if d < 0 {
			return fmt.Errorf("%w: negative request timeout", core.ErrConfiguration)
		}
		s.requestTimeout = d
		return nil
	}
}

// WithRetryAfter sets the Retry-After hint sent while no generation is ready.
// Default is 5s.
func WithRetryAfter(d time.Duration) Option {
	return func(s *Server) error {
		if d < time.Second {
			d = time.Second
		}
		s.retryAfter = d
		return nil
	}
}

// WithTimeouts sets the read and write timeouts of the underlying http.Server.
func WithTimeouts(read, write time.Duration) Option {
	return func(s *Server) error {
		s.readTimeout = read
		s.writeTimeout = write
		return nil
	}
}

// New creates a server answering through q. source reports readiness.
func New(q Querier, source search.GenerationSource, opts ...Option) (*Server, error) {
	if q == nil {
		return nil, ErrQuerierRequired
	}
	if source == nil {
		return nil, ErrSourceRequired
	}
	s := &Server{
		querier:      q,
		source:       source,
		retryAfter:   5 * time.Second,
		readTimeout:  10 * time.Second,
		writeTimeout: 30 * time.Second,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "server")
	return s, nil
}

// Routes returns the API handler.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/search", s.handleSearch)
	mux.HandleFunc("GET /v1/parcels/{id}", s.handleParcel)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}
	return mux
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.Routes(),
		ReadTimeout:  s.readTimeout,
		WriteTimeout: s.writeTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("serving", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var q core.PreferenceQuery
	if err := dec.Decode(&q); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON: "+err.Error())
		return
	}

	ctx := r.Context()
	if s.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.requestTimeout)
		defer cancel()
	}

	resp, err := s.querier.Search(ctx, &q)
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleParcel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	p, err := s.querier.Detail(r.Context(), id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, p)
	case errors.Is(err, search.ErrParcelNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	default:
		s.writeQueryError(w, err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	gen, err := s.source.Current()
	if err != nil {
		s.setRetryAfter(w)
		writeError(w, http.StatusServiceUnavailable, "index_unavailable", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ready",
		"snapshot_id":    gen.SnapshotID,
		"schema_version": gen.SchemaVersion,
		"parcels":        gen.Len(),
	})
}

// writeQueryError maps query errors onto status codes.
func (s *Server) writeQueryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, core.ErrNoCoverage):
		writeError(w, http.StatusUnprocessableEntity, "unsupported_area", err.Error())
	case errors.Is(err, core.ErrIndexUnavailable):
		s.setRetryAfter(w)
		writeError(w, http.StatusServiceUnavailable, "index_unavailable", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "timeout", err.Error())
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful to write.
		s.logger.Debug("request canceled", "err", err)
	case errors.Is(err, core.ErrConfiguration):
		s.logger.Error("configuration error while answering query", "err", err)
		writeError(w, http.StatusInternalServerError, "configuration", "index incompatible with query schema")
	default:
		s.logger.Error("query failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func (s *Server) setRetryAfter(w http.ResponseWriter) {
	w.Header().Set("Retry-After", strconv.Itoa(int(s.retryAfter/time.Second)))
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Error: code, Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
