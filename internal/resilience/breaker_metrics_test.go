package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/preorder-api/internal/obs"
)

func TestBreakerPublishesNamespacedMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs.MustRegisterDomainMetrics("preorder", reg)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	breaker := NewBreaker(1, 0.5, time.Minute).WithTarget("stripe-metrics")
	breaker.now = func() time.Time { return now }
	ctx := context.Background()
	state := func() float64 { return testutil.ToFloat64(obs.BreakerState.WithLabelValues("stripe-metrics")) }

	require.True(t, breaker.Allow(ctx))
	breaker.Report(ctx, false)
	require.Equal(t, 1.0, state())
	require.False(t, breaker.Allow(ctx))

	now = now.Add(time.Minute)
	require.True(t, breaker.Allow(ctx))
	require.Equal(t, 2.0, state())

	breaker.Report(ctx, true)
	require.Equal(t, 0.0, state())

	require.Equal(t, 1.0, testutil.ToFloat64(obs.BreakerOpenedTotal.WithLabelValues("stripe-metrics")))
	for _, move := range [][2]string{{"closed", "open"}, {"open", "half_open"}, {"half_open", "closed"}} {
		require.Equalf(t, 1.0, testutil.ToFloat64(obs.BreakerTransitionTotal.WithLabelValues("stripe-metrics", move[0], move[1])), "%s -> %s", move[0], move[1])
	}

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	require.Contains(t, names, "preorder_gateway_breaker_state")
	require.Contains(t, names, "preorder_gateway_breaker_opened_total")
}
