package handlers

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"

	"github.com/jmylchreest/jellyvr/internal/database"
	"github.com/jmylchreest/jellyvr/pkg/httpclient"
)

const bytesPerMB = 1024 * 1024

// HealthDB is the database surface inspected by the health check.
type HealthDB interface {
	Ping(ctx context.Context) error
	Stats() (database.PoolStats, error)
	Driver() string
}

// BreakerSource reports circuit breaker state.
type BreakerSource interface {
	Statuses() []httpclient.CircuitBreakerStatus
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	version   string
	startTime time.Time
	db        HealthDB
	breakers  BreakerSource
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{
		version:   version,
		startTime: time.Now(),
	}
}

// WithDB sets the database checked by the handler.
func (h *HealthHandler) WithDB(db HealthDB) *HealthHandler {
	h.db = db
	return h
}

// WithBreakers sets the circuit breaker source.
func (h *HealthHandler) WithBreakers(b BreakerSource) *HealthHandler {
	h.breakers = b
	return h
}

// HealthInput is the input for the health check endpoint.
type HealthInput struct{}

// HealthOutput is the output for the health check endpoint.
type HealthOutput struct {
	Body HealthResponse
}

// Register registers the health routes with the API.
func (h *HealthHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getHealth",
		Method:      "GET",
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns service health including database reachability, upstream circuit breakers and system metrics",
		Tags:        []string{"System"},
	}, h.GetHealth)
}

// GetHealth returns the health status of the service. A failing database or
// an open breaker reports degraded; the endpoint itself always answers 200.
func (h *HealthHandler) GetHealth(ctx context.Context, _ *HealthInput) (*HealthOutput, error) {
	now := time.Now()
	uptime := now.Sub(h.startTime)

	dbHealth := h.databaseHealth(ctx)

	breakers := []httpclient.CircuitBreakerStatus{}
	if h.breakers != nil {
		breakers = h.breakers.Statuses()
	}

	status := StatusHealthy
	checks := map[string]string{"database": dbHealth.Status}
	if dbHealth.Status == "error" {
		status = StatusDegraded
	}
	for _, b := range breakers {
		checks["upstream:"+b.Name] = b.State
		if b.State == httpclient.CircuitOpen.String() {
			status = StatusDegraded
		}
	}

	return &HealthOutput{
		Body: HealthResponse{
			Status:        status,
			Timestamp:     now.UTC().Format(time.RFC3339),
			Version:       h.version,
			Uptime:        uptime.Round(time.Second).String(),
			UptimeSeconds: uptime.Seconds(),
			CPU:           cpuInfo(ctx),
			Memory:        memoryInfo(ctx),
			Components: HealthComponents{
				Database:        dbHealth,
				CircuitBreakers: breakers,
			},
			Checks: checks,
		},
	}, nil
}

func (h *HealthHandler) databaseHealth(ctx context.Context) DatabaseHealth {
	if h.db == nil {
		return DatabaseHealth{Status: "unknown"}
	}

	health := DatabaseHealth{Status: "ok", Driver: h.db.Driver()}

	start := time.Now()
	err := h.db.Ping(ctx)
	health.ResponseTimeMS = float64(time.Since(start).Microseconds()) / 1000
	if err != nil {
		health.Status = "error"
		health.Error = err.Error()
		return health
	}

	if stats, err := h.db.Stats(); err == nil {
		health.Pool = &stats
	}
	return health
}

func cpuInfo(ctx context.Context) CPUInfo {
	info := CPUInfo{Cores: runtime.NumCPU()}

	if avg, err := load.AvgWithContext(ctx); err == nil && avg != nil {
		info.Load1Min = avg.Load1
		info.Load5Min = avg.Load5
		info.Load15Min = avg.Load15
	}
	return info
}

func memoryInfo(ctx context.Context) MemoryInfo {
	info := MemoryInfo{}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil && vm != nil {
		info.TotalMB = float64(vm.Total) / bytesPerMB
		info.UsedMB = float64(vm.Used) / bytesPerMB
		info.AvailableMB = float64(vm.Available) / bytesPerMB
	}

	proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		return info
	}
	if pm, err := proc.MemoryInfoWithContext(ctx); err == nil && pm != nil {
		info.ProcessMB = float64(pm.RSS) / bytesPerMB
	}
	return info
}
