package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	hits := testutil.ToFloat64(gridCache.WithLabelValues("hit"))
	misses := testutil.ToFloat64(gridCache.WithLabelValues("miss"))
	IncGridCache(true)
	IncGridCache(false)
	IncGridCache(false)
	assert.Equal(t, hits+1, testutil.ToFloat64(gridCache.WithLabelValues("hit")))
	assert.Equal(t, misses+2, testutil.ToFloat64(gridCache.WithLabelValues("miss")))

	before := testutil.ToFloat64(transitions.WithLabelValues("lab_order", "collected"))
	IncTransition("lab_order", "collected")
	assert.Equal(t, before+1, testutil.ToFloat64(transitions.WithLabelValues("lab_order", "collected")))
}

func TestRegister_Idempotent(t *testing.T) {
	require.NotPanics(t, func() {
		Register()
		Register()
	})
}
