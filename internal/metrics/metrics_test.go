package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fbadmin/internal/admin"
)

func newTestMetrics(t *testing.T) *Metrics {
	t.Helper()
	m, err := NewMetrics(admin.MetricsConfig{Enabled: true, Namespace: "test"})
	require.NoError(t, err)
	return m
}

func TestMetrics_RemoteCalls(t *testing.T) {
	m := newTestMetrics(t)

	m.ObserveRemoteCall(admin.ServiceTypeRemoteConfig, "get_template", admin.OutcomeSuccess, 20*time.Millisecond)
	m.ObserveRemoteCall(admin.ServiceTypeRemoteConfig, "get_template", admin.OutcomeSuccess, 30*time.Millisecond)
	m.ObserveRemoteCall(admin.ServiceTypeMessaging, "send", admin.OutcomeFailure, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.remoteCalls.WithLabelValues("remote_config", "get_template", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.remoteCalls.WithLabelValues("messaging", "send", "failure")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.remoteCallDuration))
}

func TestMetrics_CountersAndGauges(t *testing.T) {
	m := newTestMetrics(t)

	m.IncTokenCache("hit")
	m.IncTokenCache("miss")
	m.IncTokenCache("hit")
	m.IncListenerEvents("child_added")
	m.SetActiveSubscriptions(3)
	m.IncJobRuns("weekly_email", admin.OutcomeSuccess)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.tokenCache.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.listenerEvents.WithLabelValues("child_added")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.activeSubscriptions))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobRuns.WithLabelValues("weekly_email", "success")))
}

func TestMetrics_PrivateRegistry(t *testing.T) {
	m := newTestMetrics(t)
	m.SetActiveSubscriptions(1)

	expected := `
# HELP test_active_subscriptions Number of open realtime database subscriptions.
# TYPE test_active_subscriptions gauge
test_active_subscriptions 1
`
	err := testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "test_active_subscriptions")
	assert.NoError(t, err)

	// a second instance must not collide on registration
	_ = newTestMetrics(t)
}

func TestNop(t *testing.T) {
	var m admin.Metrics = Nop{}
	m.ObserveRemoteCall(admin.ServiceTypeAuth, "get_user", admin.OutcomeSuccess, time.Second)
	m.IncTokenCache("hit")
	m.IncListenerEvents("value")
	m.SetActiveSubscriptions(0)
	m.IncJobRuns("job", admin.OutcomeFailure)
}

func TestMetrics_ImplementsInterface(t *testing.T) {
	var _ admin.Metrics = newTestMetrics(t)
}
