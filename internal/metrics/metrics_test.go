package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveAuth(t *testing.T) {
	t.Parallel()

	m := New(NewRegistry())
	m.ObserveAuth("login", "ok", time.Now())
	m.ObserveAuth("login", "ok", time.Now())
	m.ObserveAuth("login", "invalid_credentials", time.Now())

	assert.InDelta(t, 2, testutil.ToFloat64(m.AuthTotal.WithLabelValues("login", "ok")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.AuthTotal.WithLabelValues("login", "invalid_credentials")), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(m.AuthDuration))
}

func TestObserveSweep(t *testing.T) {
	t.Parallel()

	m := New(NewRegistry())
	m.ObserveSweep("refresh_tokens", 3)
	m.ObserveSweep("refresh_tokens", 0)
	m.ObserveSweep("revoked_tokens", 1)

	assert.InDelta(t, 3, testutil.ToFloat64(m.SweptTotal.WithLabelValues("refresh_tokens")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.SweptTotal.WithLabelValues("revoked_tokens")), 0)
}

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveAuth("login", "ok", time.Now())
		m.ObserveSweep("refresh_tokens", 1)
	})
}

func TestHandlerExposesCollectors(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	m := New(reg)
	m.ObserveAuth("logout", "ok", time.Now())

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `tictactoe_auth_operations_total{operation="logout",result="ok"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
