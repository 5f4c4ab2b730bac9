package obs

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"feedpos/backend/internal/domain"
)

// HTTPMetrics groups Prometheus collectors for HTTP observability.
type HTTPMetrics struct {
	ReqTotal *prometheus.CounterVec
	ReqDur   *prometheus.HistogramVec
	InFlight prometheus.Gauge
}

func NewHTTPMetrics(namespace string, reg prometheus.Registerer) *HTTPMetrics {
	m := &HTTPMetrics{
		ReqTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests handled by the server.",
		}, []string{"method", "route", "status"}),
		ReqDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency distribution in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		}, []string{"method", "route"}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_in_flight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
	}
	reg.MustRegister(m.ReqTotal, m.ReqDur, m.InFlight)
	return m
}

// SalesMetrics counts checkout outcomes.
type SalesMetrics struct {
	Settled  *prometheus.CounterVec
	Revenue  *prometheus.CounterVec
	KgSold   prometheus.Counter
	Rejected *prometheus.CounterVec
}

func NewSalesMetrics(namespace string, reg prometheus.Registerer) *SalesMetrics {
	m := &SalesMetrics{
		Settled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sales_settled_total",
			Help:      "Settled sales by payment method.",
		}, []string{"method"}),
		Revenue: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sales_revenue_total",
			Help:      "Charged sale totals by payment method, in currency units.",
		}, []string{"method"}),
		KgSold: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sales_kg_sold_total",
			Help:      "Kilograms of stock consumed by settled sales.",
		}),
		Rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_rejections_total",
			Help:      "Checkouts refused by a business rule.",
		}, []string{"reason"}),
	}
	reg.MustRegister(m.Settled, m.Revenue, m.KgSold, m.Rejected)
	return m
}

func (m *SalesMetrics) SaleSettled(method domain.PaymentMethod, total float64, kg float64) {
	m.Settled.WithLabelValues(string(method)).Inc()
	m.Revenue.WithLabelValues(string(method)).Add(total)
	m.KgSold.Add(kg)
}

func (m *SalesMetrics) CheckoutRejected(reason string) {
	m.Rejected.WithLabelValues(reason).Inc()
}

// DurationMillis converts a duration to milliseconds for metric observation.
func DurationMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
