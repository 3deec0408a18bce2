package api

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rcrowley/go-metrics"
)

// HealthStatus represents the overall health status
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// checkTimeout bounds each dependency probe.
const checkTimeout = 2 * time.Second

// HealthCheckResponse represents a comprehensive health check response
type HealthCheckResponse struct {
	Status        HealthStatus           `json:"status"`
	Timestamp     string                 `json:"timestamp"`
	EngineVersion string                 `json:"engine_version"`
	GitCommit     string                 `json:"git_commit,omitempty"`
	BuildTime     string                 `json:"build_time,omitempty"`
	Uptime        string                 `json:"uptime"`
	Checks        map[string]HealthCheck `json:"checks"`
	System        SystemInfo             `json:"system"`
	RequestID     string                 `json:"request_id,omitempty"`
}

// HealthCheck represents an individual health check
type HealthCheck struct {
	Status      HealthStatus `json:"status"`
	Message     string       `json:"message,omitempty"`
	LastChecked string       `json:"last_checked"`
	Duration    string       `json:"duration,omitempty"`
}

// SystemInfo contains system information
type SystemInfo struct {
	GoVersion     string `json:"go_version"`
	NumGoroutines int    `json:"num_goroutines"`
	NumCPU        int    `json:"num_cpu"`
	GOMAXPROCS    int    `json:"gomaxprocs"`
	MemoryAlloc   uint64 `json:"memory_alloc_bytes"`
	MemoryTotal   uint64 `json:"memory_total_bytes"`
	MemorySys     uint64 `json:"memory_sys_bytes"`
	GCCycles      uint32 `json:"gc_cycles"`
}

// MetricsResponse exposes the registry alongside process information.
type MetricsResponse struct {
	Timestamp     string                            `json:"timestamp"`
	EngineVersion string                            `json:"engine_version"`
	Uptime        string                            `json:"uptime"`
	System        SystemInfo                        `json:"system"`
	Operations    map[string]OpMetrics              `json:"operations"`
	Registry      map[string]map[string]interface{} `json:"registry"`
	RequestID     string                            `json:"request_id,omitempty"`
}

// OpMetrics summarizes one route timer.
type OpMetrics struct {
	TotalRequests int64   `json:"total_requests"`
	MeanMillis    float64 `json:"mean_ms"`
	P99Millis     float64 `json:"p99_ms"`
	MaxMillis     float64 `json:"max_ms"`
	RatePerSecond float64 `json:"rate_1m"`
}

// handleHealthCheck runs every probe and reports the worst outcome.
func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetReqID(r.Context())
	start := time.Now()

	checks := make(map[string]HealthCheck)
	overallStatus := HealthStatusHealthy

	modesCheck := s.checkModesHealth()
	checks["modes"] = modesCheck
	overallStatus = worse(overallStatus, modesCheck.Status)

	for name, probe := range s.opts.Checks {
		check := runCheck(r.Context(), probe)
		checks[name] = check
		overallStatus = worse(overallStatus, check.Status)
	}

	response := HealthCheckResponse{
		Status:        overallStatus,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		EngineVersion: EngineVersion,
		GitCommit:     GitCommit,
		BuildTime:     BuildTime,
		Uptime:        time.Since(s.startTime).String(),
		Checks:        checks,
		System:        s.getSystemInfo(),
		RequestID:     requestID,
	}

	statusCode := http.StatusOK
	if overallStatus == HealthStatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	s.securityLogger.LogAuditEvent(
		requestID,
		"health_check",
		"system",
		string(overallStatus),
		map[string]interface{}{
			"duration":    time.Since(start),
			"checks":      len(checks),
			"status_code": statusCode,
		},
	)

	s.writeJSON(w, statusCode, response)
}

// handleMetrics dumps the metrics registry.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetReqID(r.Context())
	systemInfo := s.getSystemInfo()

	ops := make(map[string]OpMetrics)
	s.registry.Each(func(name string, metric interface{}) {
		timer, ok := metric.(metrics.Timer)
		if !ok || !strings.HasPrefix(name, "http.") {
			return
		}
		snap := timer.Snapshot()
		ops[strings.TrimPrefix(name, "http.")] = OpMetrics{
			TotalRequests: snap.Count(),
			MeanMillis:    snap.Mean() / float64(time.Millisecond),
			P99Millis:     snap.Percentile(0.99) / float64(time.Millisecond),
			MaxMillis:     float64(snap.Max()) / float64(time.Millisecond),
			RatePerSecond: snap.Rate1(),
		}
	})

	response := MetricsResponse{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		EngineVersion: EngineVersion,
		Uptime:        time.Since(s.startTime).String(),
		System:        systemInfo,
		Operations:    ops,
		Registry:      s.registry.GetAll(),
		RequestID:     requestID,
	}

	s.securityLogger.LogAuditEvent(
		requestID,
		"metrics_request",
		"system",
		"success",
		map[string]interface{}{
			"num_goroutines": systemInfo.NumGoroutines,
			"memory_alloc":   systemInfo.MemoryAlloc,
			"operations":     len(ops),
		},
	)

	s.writeJSON(w, http.StatusOK, response)
}

// handleReadiness reports whether rounds can be served.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetReqID(r.Context())

	ready := true
	message := "Ready"

	modes := s.svc.Modes().List()
	if len(modes) == 0 {
		ready = false
		message = "No modes available"
	}

	names := make([]string, 0, len(s.opts.Checks))
	for name := range s.opts.Checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if check := runCheck(r.Context(), s.opts.Checks[name]); check.Status == HealthStatusUnhealthy {
			ready = false
			message = fmt.Sprintf("%s: %s", name, check.Message)
			break
		}
	}

	response := map[string]interface{}{
		"ready":          ready,
		"message":        message,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"engine_version": EngineVersion,
		"request_id":     requestID,
	}

	statusCode := http.StatusOK
	outcome := "ready"
	if !ready {
		statusCode = http.StatusServiceUnavailable
		outcome = "not_ready"
	}
	s.securityLogger.LogAuditEvent(
		requestID,
		"readiness_check",
		"system",
		outcome,
		map[string]interface{}{
			"message":     message,
			"modes_count": len(modes),
		},
	)

	s.writeJSON(w, statusCode, response)
}

// handleLiveness provides liveness probe endpoint
func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetReqID(r.Context())

	response := map[string]interface{}{
		"alive":          true,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"engine_version": EngineVersion,
		"uptime":         time.Since(s.startTime).String(),
		"request_id":     requestID,
	}

	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) checkModesHealth() HealthCheck {
	start := time.Now()

	modes := s.svc.Modes().List()
	status := HealthStatusHealthy
	message := fmt.Sprintf("%d modes available", len(modes))
	if len(modes) == 0 {
		status = HealthStatusUnhealthy
		message = "No modes available"
	}

	return HealthCheck{
		Status:      status,
		Message:     message,
		LastChecked: time.Now().UTC().Format(time.RFC3339),
		Duration:    time.Since(start).String(),
	}
}

func runCheck(ctx context.Context, probe Check) HealthCheck {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	status := HealthStatusHealthy
	message := "ok"
	if err := probe(ctx); err != nil {
		status = HealthStatusUnhealthy
		message = err.Error()
	}

	return HealthCheck{
		Status:      status,
		Message:     message,
		LastChecked: time.Now().UTC().Format(time.RFC3339),
		Duration:    time.Since(start).String(),
	}
}

func worse(a, b HealthStatus) HealthStatus {
	rank := map[HealthStatus]int{HealthStatusHealthy: 0, HealthStatusDegraded: 1, HealthStatusUnhealthy: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

// getSystemInfo collects system information
func (s *Server) getSystemInfo() SystemInfo {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return SystemInfo{
		GoVersion:     runtime.Version(),
		NumGoroutines: runtime.NumGoroutine(),
		NumCPU:        runtime.NumCPU(),
		GOMAXPROCS:    runtime.GOMAXPROCS(0),
		MemoryAlloc:   m.Alloc,
		MemoryTotal:   m.TotalAlloc,
		MemorySys:     m.Sys,
		GCCycles:      m.NumGC,
	}
}
