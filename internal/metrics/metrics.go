package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics. A nil *Metrics records nothing.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Business metrics
	ReceiptsCreatedTotal    prometheus.Counter
	PaymentsRecordedTotal   *prometheus.CounterVec
	PaymentAmountTotal      *prometheus.CounterVec
	ServiceTransitionsTotal *prometheus.CounterVec
	TicketsCreatedTotal     *prometheus.CounterVec
	EquipmentReportsTotal   *prometheus.CounterVec

	// Cache metrics
	PrincipalCacheLookups   *prometheus.CounterVec
	PrincipalCacheEvictions prometheus.Counter
}

// NewMetrics creates and registers all metrics on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vigilnet_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vigilnet_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		ReceiptsCreatedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "vigilnet_receipts_created_total",
				Help: "Receipts created",
			},
		),
		PaymentsRecordedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vigilnet_payments_recorded_total",
				Help: "Payments recorded on receipts by kind (partial, full, refund)",
			},
			[]string{"kind"},
		),
		PaymentAmountTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vigilnet_payment_amount_total",
				Help: "Sum of recorded payment amounts by kind",
			},
			[]string{"kind"},
		),
		ServiceTransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vigilnet_service_transitions_total",
				Help: "Internet service status transitions",
			},
			[]string{"to"},
		),
		TicketsCreatedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vigilnet_tickets_created_total",
				Help: "Support tickets created by category",
			},
			[]string{"category"},
		),
		EquipmentReportsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vigilnet_equipment_reports_total",
				Help: "Connectivity reports by resulting status",
			},
			[]string{"status"},
		),
		PrincipalCacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vigilnet_principal_cache_lookups_total",
				Help: "Principal cache lookups by result",
			},
			[]string{"result"},
		),
		PrincipalCacheEvictions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "vigilnet_principal_cache_evictions_total",
				Help: "Principal cache entries removed by expiry sweeps",
			},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.HTTPRequestsTotal,
			m.HTTPRequestDuration,
			m.ReceiptsCreatedTotal,
			m.PaymentsRecordedTotal,
			m.PaymentAmountTotal,
			m.ServiceTransitionsTotal,
			m.TicketsCreatedTotal,
			m.EquipmentReportsTotal,
			m.PrincipalCacheLookups,
			m.PrincipalCacheEvictions,
		)
	}
	return m
}

// HTTPRequest records one served request. route is the matched route
// pattern, not the raw path.
func (m *Metrics) HTTPRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) ReceiptCreated() {
	if m == nil {
		return
	}
	m.ReceiptsCreatedTotal.Inc()
}

func (m *Metrics) PaymentRecorded(kind string, amount float64) {
	if m == nil {
		return
	}
	m.PaymentsRecordedTotal.WithLabelValues(kind).Inc()
	m.PaymentAmountTotal.WithLabelValues(kind).Add(amount)
}

func (m *Metrics) ServiceTransition(to string) {
	if m == nil {
		return
	}
	m.ServiceTransitionsTotal.WithLabelValues(to).Inc()
}

func (m *Metrics) TicketCreated(category string) {
	if m == nil {
		return
	}
	m.TicketsCreatedTotal.WithLabelValues(category).Inc()
}

func (m *Metrics) EquipmentReported(status string) {
	if m == nil {
		return
	}
	m.EquipmentReportsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) PrincipalLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.PrincipalCacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) PrincipalsEvicted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.PrincipalCacheEvictions.Add(float64(n))
}
