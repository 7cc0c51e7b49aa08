package routing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

func TestProviderMetrics_RecordSuccess(t *testing.T) {
	m := &providerMetrics{}

	m.recordSuccess(100)
	m.recordSuccess(200)

	assert.Equal(t, int64(2), m.totalRequests.Load())
	assert.Equal(t, int64(2), m.successfulReqs.Load())
	assert.Equal(t, int64(0), m.failedReqs.Load())
	assert.Equal(t, int64(150), m.avgLatencyMs())
	assert.Equal(t, int64(200), m.lastLatencyMs.Load())
	assert.Equal(t, 1.0, m.successRate())
}

func TestProviderMetrics_RecordFailure(t *testing.T) {
	m := &providerMetrics{}

	m.recordSuccess(100)
	m.recordFailure()
	m.recordFailure()

	assert.Equal(t, int64(3), m.totalRequests.Load())
	assert.Equal(t, int64(2), m.failedReqs.Load())
	assert.Equal(t, int32(2), m.consecutiveFails.Load())
	assert.InDelta(t, 1.0/3.0, m.successRate(), 0.001)
}

func TestProviderMetrics_SuccessResetsConsecutiveFails(t *testing.T) {
	m := &providerMetrics{}

	m.recordFailure()
	m.recordFailure()
	assert.Equal(t, int32(2), m.consecutiveFails.Load())

	m.recordSuccess(50)
	assert.Equal(t, int32(0), m.consecutiveFails.Load())
}

func TestProviderMetrics_EmptyDefaults(t *testing.T) {
	m := &providerMetrics{}

	assert.Equal(t, int64(0), m.avgLatencyMs())
	assert.Equal(t, 1.0, m.successRate())
}

func TestProvider_IsAvailable(t *testing.T) {
	p := NewProvider("primary", "http://localhost:8082", 100, &fasthttp.Client{})

	assert.True(t, p.IsAvailable())

	p.SetState(StateDegraded)
	assert.True(t, p.IsAvailable())

	p.SetState(StateUnhealthy)
	assert.False(t, p.IsAvailable())
}

func TestProvider_CircuitOpenBlocksUntilTimeout(t *testing.T) {
	p := NewProvider("primary", "http://localhost:8082", 100, &fasthttp.Client{})

	p.SetState(StateCircuitOpen)
	p.circuitOpenUntil.Store(time.Now().Add(time.Hour).Unix())
	assert.False(t, p.IsAvailable())

	// Expired breaker lets the provider back in, degraded.
	p.circuitOpenUntil.Store(time.Now().Add(-time.Second).Unix())
	assert.True(t, p.IsAvailable())
	assert.Equal(t, StateDegraded, p.GetState())
}

func TestProvider_Score(t *testing.T) {
	healthy := NewProvider("primary", "http://localhost:8082", 100, &fasthttp.Client{})
	healthy.metrics.recordSuccess(100)
	assert.Greater(t, healthy.score(), 0.0)

	degraded := NewProvider("secondary", "http://localhost:8083", 100, &fasthttp.Client{})
	degraded.metrics.recordSuccess(100)
	degraded.SetState(StateDegraded)
	assert.Less(t, degraded.score(), healthy.score())

	unhealthy := NewProvider("backup", "http://localhost:8084", 100, &fasthttp.Client{})
	unhealthy.SetState(StateUnhealthy)
	assert.Equal(t, 0.0, unhealthy.score())
}

func TestProvider_ScoreDropsWithConsecutiveFails(t *testing.T) {
	p := NewProvider("primary", "http://localhost:8082", 100, &fasthttp.Client{})
	p.metrics.recordSuccess(100)
	before := p.score()

	p.metrics.recordFailure()
	p.metrics.recordFailure()

	assert.Less(t, p.score(), before)
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(nil)
	assert.EqualError(t, err, "config is required")

	_, err = NewClient(&Config{})
	assert.EqualError(t, err, "at least one provider is required")
}

func TestNewClient_Defaults(t *testing.T) {
	client, err := NewClient(&Config{
		Providers: []ProviderConfig{
			{Name: "primary", URL: "http://localhost:8082", Weight: 100},
		},
	})
	require.NoError(t, err)
	defer client.Close()

	assert.Equal(t, 5*time.Second, client.config.Timeout)
	assert.Equal(t, 100*time.Millisecond, client.config.RetryDelay)
	assert.Equal(t, 5, client.config.CircuitBreakerThreshold)
	assert.Equal(t, 30*time.Second, client.config.CircuitBreakerTimeout)
	assert.Len(t, client.providers, 1)
}

func newTestClient(t *testing.T) *Client {
	t.Helper()

	client, err := NewClient(&Config{
		Providers: []ProviderConfig{
			{Name: "primary", URL: "http://localhost:8082", Weight: 100},
			{Name: "secondary", URL: "http://localhost:8083", Weight: 80},
			{Name: "backup", URL: "http://localhost:8084", Weight: 60},
		},
		HealthCheckInterval: time.Hour,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return client
}

func TestClient_SelectBestProvider(t *testing.T) {
	client := newTestClient(t)

	best, err := client.SelectBestProvider()
	require.NoError(t, err)
	assert.Equal(t, "primary", best.name)
}

func TestClient_SelectBestProviderSkipsUnavailable(t *testing.T) {
	client := newTestClient(t)

	client.providers[0].SetState(StateUnhealthy)

	best, err := client.SelectBestProvider()
	require.NoError(t, err)
	assert.Equal(t, "secondary", best.name)
}

func TestClient_SelectBestProviderAllDown(t *testing.T) {
	client := newTestClient(t)

	for _, p := range client.providers {
		p.SetState(StateUnhealthy)
	}

	_, err := client.SelectBestProvider()
	assert.ErrorIs(t, err, ErrNoAvailableProviders)
}

func TestClient_CircuitBreakerOpensAtThreshold(t *testing.T) {
	client := newTestClient(t)
	client.config.CircuitBreakerThreshold = 3
	p := client.providers[0]

	p.metrics.recordFailure()
	p.metrics.recordFailure()
	client.checkCircuitBreaker(p)
	assert.Equal(t, StateHealthy, p.GetState())

	p.metrics.recordFailure()
	client.checkCircuitBreaker(p)
	assert.Equal(t, StateCircuitOpen, p.GetState())
	assert.Greater(t, p.circuitOpenUntil.Load(), time.Now().Unix())
}

func TestClient_GetProviderStatsSortedByScore(t *testing.T) {
	client := newTestClient(t)

	client.providers[0].metrics.recordFailure()
	client.providers[0].metrics.recordFailure()
	client.providers[1].metrics.recordSuccess(50)

	stats := client.GetProviderStats()
	require.Len(t, stats, 3)
	for i := 1; i < len(stats); i++ {
		assert.GreaterOrEqual(t, stats[i-1].Score, stats[i].Score)
	}
	assert.Equal(t, "secondary", stats[0].Name)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "HEALTHY", stateString(StateHealthy))
	assert.Equal(t, "DEGRADED", stateString(StateDegraded))
	assert.Equal(t, "UNHEALTHY", stateString(StateUnhealthy))
	assert.Equal(t, "CIRCUIT_OPEN", stateString(StateCircuitOpen))
	assert.Equal(t, "UNKNOWN", stateString(ProviderState(99)))
}
