package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMustRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NotPanics(t, func() { MustRegister(reg) })

	GuardRuns.WithLabelValues("ok").Inc()
	Notifications.WithLabelValues("SENT", "telegram").Inc()

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "adwallet_guard_runs_total")
	assert.Contains(t, names, "adwallet_notifications_total")

	assert.Panics(t, func() { MustRegister(reg) }, "double registration must panic")
}

func TestCounters_Increment(t *testing.T) {
	before := testutil.ToFloat64(WalletOperations.WithLabelValues("topup", "ok"))
	WalletOperations.WithLabelValues("topup", "ok").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(WalletOperations.WithLabelValues("topup", "ok")))
}
