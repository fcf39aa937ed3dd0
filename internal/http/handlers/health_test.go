package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/jellyvr/internal/database"
	"github.com/jmylchreest/jellyvr/pkg/httpclient"
)

type stubDB struct {
	pingErr error
}

func (s stubDB) Ping(context.Context) error { return s.pingErr }

func (s stubDB) Stats() (database.PoolStats, error) {
	return database.PoolStats{MaxOpenConnections: 4, Idle: 1}, nil
}

func (s stubDB) Driver() string { return "sqlite" }

type stubBreakers []httpclient.CircuitBreakerStatus

func (s stubBreakers) Statuses() []httpclient.CircuitBreakerStatus { return s }

func TestHealthHandler_GetHealth(t *testing.T) {
	handler := NewHealthHandler("1.0.0").
		WithDB(stubDB{}).
		WithBreakers(stubBreakers{{Name: "jellyfin", State: "closed"}})

	output, err := handler.GetHealth(context.Background(), &HealthInput{})
	require.NoError(t, err)

	body := output.Body
	assert.Equal(t, StatusHealthy, body.Status)
	assert.Equal(t, "1.0.0", body.Version)
	assert.NotEmpty(t, body.Uptime)
	assert.Positive(t, body.CPU.Cores)
	assert.Equal(t, "ok", body.Components.Database.Status)
	assert.Equal(t, "sqlite", body.Components.Database.Driver)
	require.NotNil(t, body.Components.Database.Pool)
	assert.Equal(t, 4, body.Components.Database.Pool.MaxOpenConnections)
	assert.Equal(t, "closed", body.Checks["upstream:jellyfin"])
}

func TestHealthHandler_Degraded(t *testing.T) {
	t.Run("database unreachable", func(t *testing.T) {
		handler := NewHealthHandler("1.0.0").WithDB(stubDB{pingErr: errors.New("connection refused")})

		output, err := handler.GetHealth(context.Background(), &HealthInput{})
		require.NoError(t, err)

		assert.Equal(t, StatusDegraded, output.Body.Status)
		assert.Equal(t, "error", output.Body.Components.Database.Status)
		assert.Equal(t, "connection refused", output.Body.Components.Database.Error)
		assert.Nil(t, output.Body.Components.Database.Pool)
	})

	t.Run("breaker open", func(t *testing.T) {
		handler := NewHealthHandler("1.0.0").
			WithDB(stubDB{}).
			WithBreakers(stubBreakers{{Name: "jellyfin", State: "open", Failures: 5}})

		output, err := handler.GetHealth(context.Background(), &HealthInput{})
		require.NoError(t, err)

		assert.Equal(t, StatusDegraded, output.Body.Status)
	})
}

func TestHealthHandler_NoDatabase(t *testing.T) {
	output, err := NewHealthHandler("dev").GetHealth(context.Background(), &HealthInput{})
	require.NoError(t, err)

	assert.Equal(t, "unknown", output.Body.Components.Database.Status)
	assert.NotNil(t, output.Body.Components.CircuitBreakers)
}
