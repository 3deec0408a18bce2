package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rcrowley/go-metrics"

	"github.com/Starzy87/stake-mines-backend/internal/session"
)

// Check is a named dependency probe used by /health.
type Check func(ctx context.Context) error

// Options configures a Server.
type Options struct {
	Logger         *log.Logger
	SecurityLogger *SecurityLogger
	Registry       metrics.Registry
	// JWTSecret enables bearer-token identities.
	JWTSecret      []byte
	CORSOrigins    []string
	RequestTimeout time.Duration
	StaticDir      string
	Checks         map[string]Check
}

// Server handles HTTP requests
type Server struct {
	svc            *session.Service
	opts           Options
	errorHandler   *ErrorHandler
	logger         *log.Logger
	securityLogger *SecurityLogger
	registry       metrics.Registry
	startTime      time.Time
}

// NewServer creates a new API server
func NewServer(svc *session.Service, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "[API] ", log.LstdFlags|log.Lshortfile)
	}
	securityLogger := opts.SecurityLogger
	if securityLogger == nil {
		securityLogger = NewSecurityLogger()
	}
	registry := opts.Registry
	if registry == nil {
		registry = metrics.DefaultRegistry
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}

	server := &Server{
		svc:            svc,
		opts:           opts,
		errorHandler:   NewErrorHandler(logger, securityLogger),
		logger:         logger,
		securityLogger: securityLogger,
		registry:       registry,
		startTime:      time.Now(),
	}

	securityLogger.LogSystemStartup(EngineVersion, map[string]interface{}{
		"modes":        len(svc.Modes().List()),
		"jwt_enabled":  len(opts.JWTSecret) > 0,
		"static_dir":   opts.StaticDir != "",
		"health_check": len(opts.Checks),
	})

	return server
}

// Routes sets up the HTTP routes with proper middleware
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.SecurityLoggingMiddleware)
	r.Use(s.errorHandler.RecoveryHandler)
	r.Use(middleware.Timeout(s.opts.RequestTimeout))
	r.Use(s.CORSMiddleware)

	r.Get("/health", s.handleHealthCheck)
	r.Get("/health/ready", s.handleReadiness)
	r.Get("/health/live", s.handleLiveness)
	r.Get("/metrics", s.handleMetrics)

	r.Route("/api/v1", s.gameRoutes)
	// Unversioned alias used by the browser client
	r.Route("/api", s.gameRoutes)

	if s.opts.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(s.opts.StaticDir)))
	}

	return r
}

func (s *Server) gameRoutes(r chi.Router) {
	r.Get("/modes", s.handleModes)
	r.Post("/verify", s.handleVerify)
	r.Post("/seed/hash", s.handleSeedHash)

	r.Group(func(r chi.Router) {
		r.Use(s.IdentityMiddleware)
		r.Get("/init", s.handleInit)
		r.Post("/bet", s.handleBet)
		r.Post("/reveal", s.handleReveal)
		r.Post("/cashout", s.handleCashout)
		r.Get("/history", s.handleHistory)
	})
}

// writeJSON writes a JSON response with proper headers
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Engine-Version", EngineVersion)
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Printf("response_encode_failed status=%d err=%v", status, err)
	}
}
