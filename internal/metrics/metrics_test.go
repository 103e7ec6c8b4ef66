package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_RegistersOnGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ReconcileResolutions.WithLabelValues(TierCache).Inc()
	m.UploadsTotal.WithLabelValues("ok").Add(2)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.ReconcileResolutions.WithLabelValues(TierCache)))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.UploadsTotal.WithLabelValues("ok")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["videoscribe_reconcile_resolutions_total"])
	assert.True(t, names["videoscribe_uploads_total"])

	assert.Panics(t, func() { NewMetrics(reg) })
}
