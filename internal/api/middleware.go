package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rcrowley/go-metrics"
	"github.com/rs/cors"
)

// SecurityLogger writes security and audit events as key=value lines.
type SecurityLogger struct {
	logger *log.Logger
}

// NewSecurityLogger logs to stdout.
func NewSecurityLogger() *SecurityLogger {
	return NewSecurityLoggerTo(os.Stdout)
}

// NewSecurityLoggerTo logs to w.
func NewSecurityLoggerTo(w io.Writer) *SecurityLogger {
	return &SecurityLogger{logger: log.New(w, "[SECURITY] ", log.LstdFlags|log.LUTC)}
}

// LogSecurityEvent records a rejected or suspicious request.
func (sl *SecurityLogger) LogSecurityEvent(requestID, eventType, message string, details map[string]interface{}, remoteAddr string) {
	sl.logger.Printf("security_event type=%s request_id=%s remote=%s message=%q%s",
		eventType, requestID, remoteAddr, message, formatFields(details))
}

// LogAuditEvent records an operator-visible action and its outcome.
func (sl *SecurityLogger) LogAuditEvent(requestID, action, resource, outcome string, details map[string]interface{}) {
	sl.logger.Printf("audit_event action=%s resource=%s outcome=%s request_id=%s%s",
		action, resource, outcome, requestID, formatFields(details))
}

// LogSystemStartup records the server configuration at start.
func (sl *SecurityLogger) LogSystemStartup(version string, details map[string]interface{}) {
	sl.logger.Printf("system_startup version=%s%s", version, formatFields(details))
}

func formatFields(fields map[string]interface{}) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, fields[k])
	}
	return b.String()
}

// SecurityLoggingMiddleware logs every request with its status and
// duration, and records per-route timers.
func (s *Server) SecurityLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		metrics.GetOrRegisterTimer("http."+r.Method+"."+route, s.registry).UpdateSince(start)
		if ww.Status() >= http.StatusInternalServerError {
			metrics.GetOrRegisterCounter("http.errors", s.registry).Inc(1)
		}

		s.logger.Printf("request method=%s path=%s status=%d bytes=%d duration=%s request_id=%s remote=%s",
			r.Method, r.URL.Path, ww.Status(), ww.BytesWritten(), time.Since(start),
			middleware.GetReqID(r.Context()), r.RemoteAddr)
	})
}

// CORSMiddleware allows the configured origins.
func (s *Server) CORSMiddleware(next http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   s.opts.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", PlayerHeader},
		ExposedHeaders:   []string{"X-Engine-Version", "X-Error-Type", "X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}).Handler(next)
}

// PlayerHeader names the player when bearer tokens are disabled.
const (
	PlayerHeader    = "X-Player-ID"
	DefaultPlayerID = "default"
)

var playerIDPattern = regexp.MustCompile(`^[A-Za-z0-9_.:@-]{1,64}$`)

type playerKey struct{}

// PlayerID returns the identity resolved by IdentityMiddleware.
func PlayerID(ctx context.Context) string {
	id, _ := ctx.Value(playerKey{}).(string)
	return id
}

// WithPlayerID stores id in ctx.
func WithPlayerID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, playerKey{}, id)
}

// IdentityMiddleware resolves the player. With a JWT secret, requests
// need an HS256 bearer token whose subject is the player id; otherwise
// the X-Player-ID header is trusted.
func (s *Server) IdentityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var (
			id  string
			err error
		)
		if len(s.opts.JWTSecret) > 0 {
			id, err = s.playerFromToken(r.Header.Get("Authorization"))
			if err != nil {
				s.errorHandler.HandleUnauthorized(w, r, err.Error())
				return
			}
		} else {
			id = strings.TrimSpace(r.Header.Get(PlayerHeader))
			if id == "" {
				id = DefaultPlayerID
			}
		}

		if !playerIDPattern.MatchString(id) {
			s.errorHandler.HandleValidationError(w, r, "player", "player id must be 1-64 characters of [A-Za-z0-9_.:@-]")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPlayerID(r.Context(), id)))
	})
}

func (s *Server) playerFromToken(header string) (string, error) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return "", errors.New("missing bearer token")
	}

	token, err := jwt.Parse(raw, func(*jwt.Token) (interface{}, error) {
		return s.opts.JWTSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", errors.New("token has no subject")
	}
	return sub, nil
}
