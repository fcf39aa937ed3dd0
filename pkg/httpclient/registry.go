package httpclient

import (
	"slices"
	"strings"
	"sync"
	"time"
)

// CircuitBreakerStatus represents the status of a circuit breaker for health reporting.
type CircuitBreakerStatus struct {
	Name          string    `json:"name"`
	State         string    `json:"state"`
	Failures      int       `json:"failures"`
	TotalRequests int64     `json:"total_requests"`
	TotalFailures int64     `json:"total_failures"`
	LastFailure   time.Time `json:"last_failure,omitzero"`
}

// Registry maintains named circuit breakers so clients talking to the same
// upstream share failure state, and health checks can report on them.
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		breakers: make(map[string]*CircuitBreaker),
	}
}

// Client returns a client for the named upstream. The first call for a name
// creates its breaker from cfg; later calls share it.
func (r *Registry) Client(name string, cfg Config) *Client {
	return NewWithBreaker(cfg, r.breaker(name, cfg))
}

func (r *Registry) breaker(name string, cfg Config) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[name]; ok {
		return cb
	}
	cb := NewCircuitBreaker(cfg.CircuitThreshold, cfg.CircuitTimeout, cfg.CircuitHalfOpenMax)
	r.breakers[name] = cb
	return cb
}

// Statuses returns the status of all registered breakers, sorted by name.
func (r *Registry) Statuses() []CircuitBreakerStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	statuses := make([]CircuitBreakerStatus, 0, len(r.breakers))
	for name, cb := range r.breakers {
		stats := cb.Stats()
		statuses = append(statuses, CircuitBreakerStatus{
			Name:          name,
			State:         stats.State,
			Failures:      stats.Failures,
			TotalRequests: stats.TotalRequests,
			TotalFailures: stats.TotalFailures,
			LastFailure:   stats.LastFailure,
		})
	}
	slices.SortFunc(statuses, func(a, b CircuitBreakerStatus) int {
		return strings.Compare(a.Name, b.Name)
	})
	return statuses
}
