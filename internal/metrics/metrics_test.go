package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordersUpdateCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ReceiptCreated()
	m.PaymentRecorded("partial", 60)
	m.PaymentRecorded("partial", 40)
	m.PrincipalLookup(true)
	m.PrincipalLookup(false)
	m.PrincipalLookup(false)
	m.PrincipalsEvicted(3)
	m.PrincipalsEvicted(0)
	m.HTTPRequest("GET", "/api/plans", 200, 15*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReceiptsCreatedTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PaymentsRecordedTotal.WithLabelValues("partial")))
	assert.Equal(t, 100.0, testutil.ToFloat64(m.PaymentAmountTotal.WithLabelValues("partial")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PrincipalCacheLookups.WithLabelValues("miss")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.PrincipalCacheEvictions))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/plans", "200")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ReceiptCreated()
		m.PaymentRecorded("full", 1)
		m.ServiceTransition("active")
		m.TicketCreated("billing")
		m.EquipmentReported("online")
		m.PrincipalLookup(true)
		m.PrincipalsEvicted(1)
		m.HTTPRequest("GET", "/", 200, time.Second)
	})
}
