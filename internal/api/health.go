package api

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/MJE43/pf-mines/internal/store"
)

// HealthStatus represents the overall health status
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheckResponse represents a comprehensive health check response
type HealthCheckResponse struct {
	Status        HealthStatus           `json:"status"`
	Timestamp     string                 `json:"timestamp"`
	EngineVersion string                 `json:"engine_version"`
	GitCommit     string                 `json:"git_commit,omitempty"`
	BuildTime     string                 `json:"build_time,omitempty"`
	Uptime        string                 `json:"uptime"`
	ActiveGames   int                    `json:"active_games"`
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
	MemoryAlloc   uint64 `json:"memory_alloc_bytes"`
	MemorySys     uint64 `json:"memory_sys_bytes"`
	GCCycles      uint32 `json:"gc_cycles"`
}

// handleHealthCheck reports each component. Only a failing archive makes the
// service unhealthy; games keep working without the ledger or event stream.
func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	checks := map[string]HealthCheck{
		"archive": s.checkArchiveHealth(),
		"ledger":  s.checkLedgerHealth(),
		"events":  s.checkEventsHealth(),
	}

	overall := HealthStatusHealthy
	for name, c := range checks {
		switch {
		case c.Status == HealthStatusUnhealthy && name == "archive":
			overall = HealthStatusUnhealthy
		case c.Status != HealthStatusHealthy && overall == HealthStatusHealthy:
			overall = HealthStatusDegraded
		}
	}

	active := 0
	if s.play != nil {
		active = s.play.ActiveGames()
	}

	status := http.StatusOK
	if overall == HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}

	s.writeJSON(w, status, HealthCheckResponse{
		Status:        overall,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		EngineVersion: EngineVersion,
		GitCommit:     GitCommit,
		BuildTime:     BuildTime,
		Uptime:        time.Since(s.startTime).String(),
		ActiveGames:   active,
		Checks:        checks,
		System:        s.getSystemInfo(),
		RequestID:     middleware.GetReqID(r.Context()),
	})
}

// handleLiveness provides liveness probe endpoint
func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"alive":          true,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"engine_version": EngineVersion,
		"uptime":         time.Since(s.startTime).String(),
		"request_id":     middleware.GetReqID(r.Context()),
	})
}

func timedCheck(fn func() (HealthStatus, string)) HealthCheck {
	start := time.Now()
	status, message := fn()
	return HealthCheck{
		Status:      status,
		Message:     message,
		LastChecked: time.Now().UTC().Format(time.RFC3339),
		Duration:    time.Since(start).String(),
	}
}

func (s *Server) checkArchiveHealth() HealthCheck {
	return timedCheck(func() (HealthStatus, string) {
		if s.archive == nil {
			return HealthStatusDegraded, "Archive not configured"
		}
		list, err := s.archive.ListGames(store.GamesQuery{PerPage: 1})
		if err != nil {
			return HealthStatusUnhealthy, "Archive query failed"
		}
		return HealthStatusHealthy, fmt.Sprintf("%d games archived", list.TotalCount)
	})
}

func (s *Server) checkLedgerHealth() HealthCheck {
	return timedCheck(func() (HealthStatus, string) {
		info := s.ledger.Info()
		if !info.Enabled {
			return HealthStatusDegraded, "Ledger disabled"
		}
		return HealthStatusHealthy, "Ledger backend " + info.Backend
	})
}

func (s *Server) checkEventsHealth() HealthCheck {
	return timedCheck(func() (HealthStatus, string) {
		if s.events == nil {
			return HealthStatusDegraded, "Event stream not configured"
		}
		return HealthStatusHealthy, fmt.Sprintf("%d websocket clients", s.events.Clients())
	})
}

// getSystemInfo collects system information
func (s *Server) getSystemInfo() SystemInfo {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return SystemInfo{
		GoVersion:     runtime.Version(),
		NumGoroutines: runtime.NumGoroutine(),
		NumCPU:        runtime.NumCPU(),
		MemoryAlloc:   m.Alloc,
		MemorySys:     m.Sys,
		GCCycles:      m.NumGC,
	}
}
