package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveProviderCall(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveProviderCall("initiate_auth", time.Now(), nil)
	m.ObserveProviderCall("initiate_auth", time.Now(), errors.New("boom"))
	m.ObserveProviderCall("initiate_auth", time.Now(), errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderCalls.WithLabelValues("initiate_auth", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ProviderCalls.WithLabelValues("initiate_auth", "error")))
}

func TestObserveUpstream(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveUpstream("bus_list", 200)
	m.ObserveUpstream("bus_list", 404)
	m.ObserveUpstream("bus_list", 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.UpstreamCalls.WithLabelValues("bus_list", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UpstreamCalls.WithLabelValues("bus_list", "4xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UpstreamCalls.WithLabelValues("bus_list", "error")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveProviderCall("refresh", time.Now(), nil)
		m.ObserveUpstream("bus_list", 500)
	})
}
