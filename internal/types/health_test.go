package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHealthStatus_Constructors(t *testing.T) {
	healthy := Healthy("ok")
	assert.Equal(t, HealthStateHealthy, healthy.State)
	assert.Equal(t, "ok", healthy.Message)
	assert.False(t, healthy.CheckedAt.IsZero())
	assert.True(t, healthy.IsHealthy())

	degraded := Degraded("slow queries")
	assert.Equal(t, HealthStateDegraded, degraded.State)
	assert.False(t, degraded.IsHealthy())

	unhealthy := Unhealthy("ping failed")
	assert.Equal(t, HealthStateUnhealthy, unhealthy.State)
	assert.False(t, unhealthy.IsHealthy())
}
