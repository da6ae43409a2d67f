package telemetry

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.BridgeCall("get-platform", "ok")
	m.Navigation("window-open", "deny")
	m.ContentLoad("static", "ok")
	m.WindowCreated()
}

func TestCountersAndHandler(t *testing.T) {
	m := New()
	m.BridgeCall("get-platform", "ok")
	m.BridgeCall("get-platform", "ok")
	m.Navigation("will-navigate", "deny")
	m.WindowCreated()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.BridgeCalls.WithLabelValues("get-platform", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NavigationDecisions.WithLabelValues("will-navigate", "deny")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WindowsCreated))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "deskhost_bridge_calls_total")
}
