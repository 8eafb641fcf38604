package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/flowrank/flowrank/internal/engine"
	"github.com/flowrank/flowrank/internal/feeds"
	"github.com/flowrank/flowrank/internal/metrics"
)

// ServerConfig holds HTTP server tuning.
type ServerConfig struct {
	Listen       string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultServerConfig returns local-only defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Listen:       ":8085",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// Server exposes the decision engine over HTTP plus a websocket decision
// stream.
type Server struct {
	router *mux.Router
	server *http.Server
	eng    *engine.Engine
	flows  feeds.FlowCache
	cache  feeds.DecisionCache
	reg    *metrics.Registry
	hub    *hub
	config ServerConfig
}

// NewServer wires the routes. flows, cache and reg may be nil.
func NewServer(eng *engine.Engine, flows feeds.FlowCache, cache feeds.DecisionCache, reg *metrics.Registry, config ServerConfig) *Server {
	s := &Server{
		router: mux.NewRouter(),
		eng:    eng,
		flows:  flows,
		cache:  cache,
		reg:    reg,
		hub:    newHub(),
		config: config,
	}
	s.setupRoutes()
	s.server = &http.Server{
		Addr:         config.Listen,
		Handler:      s.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}
	return s
}

// Router exposes the handler tree for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// ListenAndServe blocks serving requests until the context is canceled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	go s.hub.run(ctx)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	log.Info().Str("listen", s.config.Listen).Msg("http server starting")
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)

	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	if s.reg != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.reg.Gatherer(), promhttp.HandlerOpts{})).Methods("GET")
	}

	v1 := s.router.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/ingest", s.handleIngest).Methods("POST")
	v1.HandleFunc("/score", s.handleScore).Methods("POST")
	v1.HandleFunc("/decide", s.handleDecide).Methods("POST")
	v1.HandleFunc("/learner", s.handleLearner).Methods("GET")
	v1.HandleFunc("/decisions/{instrument}", s.handleCachedDecision).Methods("GET")

	s.router.HandleFunc("/ws", s.handleWS)
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()[:8]
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapper, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapper.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
