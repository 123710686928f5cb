// Package api exposes a data context over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/nucleus/dq-core/internal/batch"
	"github.com/nucleus/dq-core/internal/connector"
	"github.com/nucleus/dq-core/internal/datacontext"
	"github.com/nucleus/dq-core/internal/datasource"
	"github.com/nucleus/dq-core/internal/expectation"
	"github.com/nucleus/dq-core/internal/validator"
)

// Server serves the data context API.
type Server struct {
	dc       *datacontext.DataContext
	router   *mux.Router
	logger   *zap.Logger
	gatherer prometheus.Gatherer
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithGatherer serves metrics from g instead of the default registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		if g != nil {
			s.gatherer = g
		}
	}
}

// NewServer builds the router for dc.
func NewServer(dc *datacontext.DataContext, opts ...Option) *Server {
	s := &Server{
		dc:       dc,
		router:   mux.NewRouter(),
		logger:   zap.NewNop(),
		gatherer: prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.logRequests)

	s.router.HandleFunc("/healthz", s.healthz).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	// v1 routes live on the root router so a method mismatch answers 405.
	s.router.HandleFunc("/v1/datasources", s.listDatasources).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/datasources/{name}/assets", s.listAssets).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/suites", s.listSuites).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/suites/{name}", s.getSuite).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/validate", s.validate).Methods(http.MethodPost)
	s.router.HandleFunc("/v1/validations", s.listValidations).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/checkpoints", s.listCheckpoints).Methods(http.MethodGet)
	s.router.HandleFunc("/v1/checkpoints/{name}/run", s.runCheckpoint).Methods(http.MethodPost)
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type datasourceSummary struct {
	Name            string   `json:"name"`
	ClassName       string   `json:"class_name"`
	ExecutionEngine string   `json:"execution_engine"`
	DataConnectors  []string `json:"data_connectors"`
}

func (s *Server) listDatasources(w http.ResponseWriter, _ *http.Request) {
	out := []datasourceSummary{}
	for _, cfg := range s.dc.ListDatasources() {
		summary := datasourceSummary{
			Name:           cfg.Name,
			ClassName:      cfg.ClassName,
			DataConnectors: cfg.ConnectorNames(),
		}
		if cfg.ExecutionEngine != nil {
			summary.ExecutionEngine = cfg.ExecutionEngine.ClassName
		}
		out = append(out, summary)
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) listAssets(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	ds, err := s.dc.GetDatasource(name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var connectors []string
	if c := r.URL.Query().Get("data_connector"); c != "" {
		connectors = append(connectors, c)
	}
	assets, err := ds.AvailableDataAssetNames(r.Context(), connectors...)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, assets)
}

func (s *Server) listSuites(w http.ResponseWriter, r *http.Request) {
	names, err := s.dc.ListExpectationSuiteNames(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, names)
}

func (s *Server) getSuite(w http.ResponseWriter, r *http.Request) {
	suite, err := s.dc.GetExpectationSuite(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, suite)
}

type validateRequest struct {
	BatchRequest         *batch.Request           `json:"batch_request"`
	ExpectationSuiteName string                   `json:"expectation_suite_name"`
	ResultFormat         expectation.ResultFormat `json:"result_format,omitempty"`
	RunName              string                   `json:"run_name,omitempty"`
}

type validateResponse struct {
	ValidationResultKey string                 `json:"validation_result_key"`
	Result              *validator.SuiteResult `json:"validation_result"`
}

func (s *Server) validate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeStatus(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.ExpectationSuiteName == "" {
		s.writeStatus(w, http.StatusBadRequest, "expectation_suite_name is required")
		return
	}
	if err := req.BatchRequest.Validate(); err != nil {
		s.writeStatus(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.BatchRequest.IsRuntime() {
		s.writeStatus(w, http.StatusBadRequest, "runtime batch requests are not accepted over http")
		return
	}

	v, err := s.dc.GetValidator(r.Context(), req.BatchRequest, req.ExpectationSuiteName)
	if err != nil {
		s.writeError(w, err)
		return
	}
	res, err := v.Validate(r.Context(), validator.ValidateOptions{ResultFormat: req.ResultFormat, RunName: req.RunName})
	if err != nil {
		s.writeError(w, err)
		return
	}
	key, err := s.dc.Validations().Put(r.Context(), res)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, validateResponse{ValidationResultKey: key, Result: res})
}

func (s *Server) listValidations(w http.ResponseWriter, r *http.Request) {
	keys, err := s.dc.Validations().List(r.Context(), r.URL.Query().Get("suite"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, keys)
}

func (s *Server) listCheckpoints(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.dc.ListCheckpoints())
}

func (s *Server) runCheckpoint(w http.ResponseWriter, r *http.Request) {
	res, err := s.dc.RunCheckpoint(r.Context(), mux.Vars(r)["name"], r.URL.Query().Get("run_name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("encode response", zap.Error(err))
	}
}

func (s *Server) writeStatus(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, datacontext.ErrDatasourceNotFound),
		errors.Is(err, datacontext.ErrSuiteNotFound),
		errors.Is(err, datacontext.ErrCheckpointNotFound),
		errors.Is(err, datasource.ErrConnectorNotFound),
		errors.Is(err, connector.ErrUnknownAsset):
		status = http.StatusNotFound
	case errors.Is(err, context.Canceled):
		status = http.StatusRequestTimeout
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	s.writeStatus(w, status, err.Error())
}
