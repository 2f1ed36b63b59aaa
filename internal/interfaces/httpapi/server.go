package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"chainnotes/internal/application"
	"chainnotes/internal/config"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

type SnapshotRefresher interface {
	Refresh(ctx context.Context, req application.RefreshRequest) (application.SnapshotView, error)
}

type TextStore interface {
	Store(ctx context.Context, req application.StoreTextRequest) (string, error)
	Retrieve(ctx context.Context, userID, label string) (string, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

type Server struct {
	cfg       config.Config
	snapshots SnapshotRefresher
	texts     TextStore
	store     Pinger
	metrics   *Metrics
	buildInfo BuildInfo
	logger    *slog.Logger
}

func NewServer(cfg config.Config, snapshots SnapshotRefresher, texts TextStore, store Pinger, metrics *Metrics, buildInfo BuildInfo) (*Server, error) {
	if snapshots == nil || texts == nil || store == nil {
		return nil, errors.New("http server dependencies must not be nil")
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	if cfg.IdentityHeader == "" {
		cfg.IdentityHeader = "X-User-ID"
	}
	return &Server{
		cfg:       cfg,
		snapshots: snapshots,
		texts:     texts,
		store:     store,
		metrics:   metrics,
		buildInfo: buildInfo,
		logger:    slog.Default().With("component", "http"),
	}, nil
}

func (s *Server) MetricsObserver() *Metrics {
	return s.metrics
}

func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.Use(s.metrics.Instrument)
	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)
	router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/version", s.handleVersion).Methods(http.MethodGet)

	var api *mux.Router
	if s.cfg.APIPrefix == "" {
		api = router.NewRoute().Subrouter()
	} else {
		api = router.PathPrefix(s.cfg.APIPrefix).Subrouter()
	}
	api.Use(func(next http.Handler) http.Handler {
		return withIdentity(s.cfg.IdentityHeader, next)
	})
	api.HandleFunc("/text", s.handleStoreText).Methods(http.MethodPost)
	api.HandleFunc("/text/{label}", s.handleRetrieveText).Methods(http.MethodGet)
	api.HandleFunc("/{address}", s.handleRefresh).Methods(http.MethodGet)

	cors := handlers.CORS(
		handlers.AllowedOrigins(s.cfg.CORSOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", s.cfg.IdentityHeader}),
		handlers.OptionStatusCode(http.StatusOK),
	)
	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{s.logger}),
		handlers.PrintRecoveryStack(true),
	)
	return handlers.CustomLoggingHandler(io.Discard, recovery(cors(router)), s.logRequest)
}

func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("http server listening", "addr", addr, "prefix", s.cfg.APIPrefix)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		respondError(w, http.StatusServiceUnavailable, "db not ready")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.buildInfo)
}

func (s *Server) logRequest(_ io.Writer, params handlers.LogFormatterParams) {
	s.logger.Info("request",
		"method", params.Request.Method,
		"path", params.URL.Path,
		"status", params.StatusCode,
		"bytes", params.Size,
		"duration", time.Since(params.TimeStamp),
	)
}

type recoveryLogger struct {
	logger *slog.Logger
}

func (l recoveryLogger) Println(args ...any) {
	l.logger.Error("panic recovered", "detail", fmt.Sprint(args...))
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
