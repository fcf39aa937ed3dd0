package handlers

import (
	"github.com/jmylchreest/jellyvr/internal/database"
	"github.com/jmylchreest/jellyvr/pkg/httpclient"
)

// Health status values.
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status        string            `json:"status" doc:"healthy or degraded"`
	Timestamp     string            `json:"timestamp"`
	Version       string            `json:"version"`
	Uptime        string            `json:"uptime"`
	UptimeSeconds float64           `json:"uptime_seconds"`
	CPU           CPUInfo           `json:"cpu"`
	Memory        MemoryInfo        `json:"memory"`
	Components    HealthComponents  `json:"components"`
	Checks        map[string]string `json:"checks,omitempty"`
}

// CPUInfo contains load averages.
type CPUInfo struct {
	Cores     int     `json:"cores"`
	Load1Min  float64 `json:"load_1min"`
	Load5Min  float64 `json:"load_5min"`
	Load15Min float64 `json:"load_15min"`
}

// MemoryInfo contains system and process memory in megabytes.
type MemoryInfo struct {
	TotalMB     float64 `json:"total_mb"`
	UsedMB      float64 `json:"used_mb"`
	AvailableMB float64 `json:"available_mb"`
	ProcessMB   float64 `json:"process_mb"`
}

// HealthComponents contains per-dependency health.
type HealthComponents struct {
	Database        DatabaseHealth                    `json:"database"`
	CircuitBreakers []httpclient.CircuitBreakerStatus `json:"circuit_breakers"`
}

// DatabaseHealth contains database reachability and pool usage.
type DatabaseHealth struct {
	Status         string              `json:"status"`
	Driver         string              `json:"driver,omitempty"`
	ResponseTimeMS float64             `json:"response_time_ms"`
	Pool           *database.PoolStats `json:"pool,omitempty"`
	Error          string              `json:"error,omitempty"`
}
