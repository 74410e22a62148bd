package metrics

import (
	"context"
	"strconv"
	"time"

	"cropmarket-backend/internal/infrastructure/events"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors exposed on /metrics.
type Metrics struct {
	Registry        *prometheus.Registry
	HTTPRequests    *prometheus.CounterVec   // method, route, status
	HTTPLatency     *prometheus.HistogramVec // method, route
	EventsPublished *prometheus.CounterVec   // subject, result
}

// New registers the collectors on a private registry under namespace.
func New(namespace string) *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, matched route and status.",
		}, []string{"method", "route", "status"}),
		HTTPLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and matched route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Domain events handed to the publisher by subject and result.",
		}, []string{"subject", "result"}),
	}
	m.Registry.MustRegister(
		m.HTTPRequests,
		m.HTTPLatency,
		m.EventsPublished,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

// Middleware records every request against the route pattern it matched, so
// listing ids never become label values.
func (m *Metrics) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		// Label values outlive the request; Fiber reuses the method buffer.
		method := utils.CopyString(c.Method())
		route := c.Route().Path
		m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
		m.HTTPLatency.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
		return err
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
}

// Publisher wraps next and counts each publish attempt.
func (m *Metrics) Publisher(next events.Publisher) events.Publisher {
	return &countingPublisher{next: next, counter: m.EventsPublished}
}

type countingPublisher struct {
	next    events.Publisher
	counter *prometheus.CounterVec
}

func (p *countingPublisher) Publish(ctx context.Context, subject string, data interface{}) error {
	err := p.next.Publish(ctx, subject, data)
	result := "ok"
	if err != nil {
		result = "error"
	}
	p.counter.WithLabelValues(subject, result).Inc()
	return err
}
