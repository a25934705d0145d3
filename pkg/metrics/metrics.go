package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "storefront"

// Collectors groups the storefront's prometheus instruments. A nil
// *Collectors is valid and records nothing.
type Collectors struct {
	httpDuration  *prometheus.HistogramVec
	cartMutations *prometheus.CounterVec
	checkouts     *prometheus.CounterVec
	orderStatus   *prometheus.CounterVec
	outboxBatch   *prometheus.HistogramVec
	outboxEvents  *prometheus.CounterVec
}

// New registers the storefront collectors on the provided registerer.
func New(reg prometheus.Registerer) *Collectors {
	if reg == nil {
		return &Collectors{}
	}
	c := &Collectors{
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		cartMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_mutations_total",
			Help:      "Cart mutations by operation.",
		}, []string{"op"}),
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_total",
			Help:      "Checkout attempts by payment method and outcome.",
		}, []string{"method", "outcome"}),
		orderStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_status_transitions_total",
			Help:      "Applied order status transitions by target status.",
		}, []string{"status"}),
		outboxBatch: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "outbox_batch_duration_seconds",
			Help:      "Duration of outbox publish batches.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"topic"}),
		outboxEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_total",
			Help:      "Outbox events processed by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(c.httpDuration, c.cartMutations, c.checkouts, c.orderStatus, c.outboxBatch, c.outboxEvents)
	return c
}

// ObserveHTTP records one served request.
func (c *Collectors) ObserveHTTP(method, route string, status int, duration time.Duration) {
	if c == nil || c.httpDuration == nil {
		return
	}
	c.httpDuration.WithLabelValues(method, normalizeLabel(route), strconv.Itoa(status)).Observe(duration.Seconds())
}

// IncCartMutation counts a persisted cart change.
func (c *Collectors) IncCartMutation(op string) {
	if c == nil || c.cartMutations == nil {
		return
	}
	c.cartMutations.WithLabelValues(normalizeLabel(op)).Inc()
}

// IncCheckout counts a checkout outcome.
func (c *Collectors) IncCheckout(method, outcome string) {
	if c == nil || c.checkouts == nil {
		return
	}
	c.checkouts.WithLabelValues(normalizeLabel(method), normalizeLabel(outcome)).Inc()
}

// IncOrderStatus counts an applied status transition.
func (c *Collectors) IncOrderStatus(status string) {
	if c == nil || c.orderStatus == nil {
		return
	}
	c.orderStatus.WithLabelValues(normalizeLabel(status)).Inc()
}

// ObserveOutboxBatch records how long a publish batch took.
func (c *Collectors) ObserveOutboxBatch(topic string, duration time.Duration) {
	if c == nil || c.outboxBatch == nil {
		return
	}
	c.outboxBatch.WithLabelValues(normalizeLabel(topic)).Observe(duration.Seconds())
}

// AddOutboxEvents counts n events with the given outcome.
func (c *Collectors) AddOutboxEvents(outcome string, n int) {
	if c == nil || c.outboxEvents == nil || n <= 0 {
		return
	}
	c.outboxEvents.WithLabelValues(normalizeLabel(outcome)).Add(float64(n))
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
