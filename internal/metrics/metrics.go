// Package metrics exposes Prometheus counters for the booking workflow.
// Every method is safe on a nil *Collector so callers never branch on it.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns a private registry and the service's metrics.
type Collector struct {
	reg *prometheus.Registry

	HTTPDuration  *prometheus.HistogramVec // method, route, status
	Bookings      *prometheus.CounterVec   // outcome
	CheckIns      *prometheus.CounterVec   // result
	Trips         *prometheus.CounterVec   // event
	Events        *prometheus.CounterVec   // sink, result
	NATSConnected prometheus.Gauge
	LiveClients   prometheus.Gauge
}

// NewCollector creates and registers all metrics.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "shuttle_http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		}, []string{"method", "route", "status"}),
		Bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shuttle_bookings_total",
			Help: "Booking transitions by outcome.",
		}, []string{"outcome"}),
		CheckIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shuttle_checkins_total",
			Help: "QR check-in attempts by result.",
		}, []string{"result"}),
		Trips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shuttle_trips_total",
			Help: "Trip instance lifecycle events.",
		}, []string{"event"}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shuttle_events_published_total",
			Help: "Domain events delivered per sink.",
		}, []string{"sink", "result"}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "shuttle_nats_connected",
			Help: "1 if the NATS connection is established, 0 otherwise.",
		}),
		LiveClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "shuttle_live_clients",
			Help: "Connected websocket dashboard clients.",
		}),
	}

	reg.MustRegister(
		c.HTTPDuration, c.Bookings, c.CheckIns, c.Trips, c.Events,
		c.NATSConnected, c.LiveClients,
		collectors.NewGoCollector(),
	)
	return c
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

func (c *Collector) ObserveHTTP(method, route string, status int, d time.Duration) {
	if c == nil {
		return
	}
	c.HTTPDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

func (c *Collector) BookingOutcome(outcome string) {
	if c == nil {
		return
	}
	c.Bookings.WithLabelValues(outcome).Inc()
}

func (c *Collector) CheckInResult(result string) {
	if c == nil {
		return
	}
	c.CheckIns.WithLabelValues(result).Inc()
}

func (c *Collector) TripEvent(event string) {
	if c == nil {
		return
	}
	c.Trips.WithLabelValues(event).Inc()
}

func (c *Collector) EventPublished(sink string, err error) {
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.Events.WithLabelValues(sink, result).Inc()
}

func (c *Collector) NATSSetConnected(connected bool) {
	if c == nil {
		return
	}
	if connected {
		c.NATSConnected.Set(1)
	} else {
		c.NATSConnected.Set(0)
	}
}

func (c *Collector) LiveClientsAdd(delta int) {
	if c == nil {
		return
	}
	c.LiveClients.Add(float64(delta))
}
