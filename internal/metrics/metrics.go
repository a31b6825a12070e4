// Package metrics exposes Prometheus collectors for the HTTP surface, backend
// commands, cache refreshes and push delivery.
package metrics

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"fleet-rental-backend/internal/broadcast"
	"fleet-rental-backend/internal/command"
)

type Metrics struct {
	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
	Commands        *prometheus.CounterVec
	CommandDuration *prometheus.HistogramVec
	Refreshes       *prometheus.CounterVec
	Pushes          *prometheus.CounterVec
	Signals         *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleet_http_requests_total",
			Help: "HTTP requests served, by route and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fleet_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleet_backend_calls_total",
			Help: "Calls to the rental backend, by operation and outcome.",
		}, []string{"op", "outcome"}),
		CommandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fleet_backend_call_duration_seconds",
			Help:    "Rental backend call latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		Refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleet_cache_refreshes_total",
			Help: "Cache refreshes, by target and outcome.",
		}, []string{"target", "outcome"}),
		Pushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleet_push_notifications_total",
			Help: "Web push deliveries, by outcome.",
		}, []string{"outcome"}),
		Signals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleet_broadcast_signals_total",
			Help: "Broadcast signals seen, by kind.",
		}, []string{"kind"}),
	}
	reg.MustRegister(m.HTTPRequests, m.HTTPDuration, m.Commands, m.CommandDuration, m.Refreshes, m.Pushes, m.Signals)
	return m
}

// ObserveCommand implements command.Observer.
func (m *Metrics) ObserveCommand(op string, elapsed time.Duration, err error) {
	m.CommandDuration.WithLabelValues(op).Observe(elapsed.Seconds())
	m.Commands.WithLabelValues(op, commandOutcome(err)).Inc()
}

func commandOutcome(err error) string {
	if err == nil {
		return "ok"
	}
	var cmdErr *command.Error
	if errors.As(err, &cmdErr) {
		return strconv.Itoa(cmdErr.Status)
	}
	return "error"
}

// ObserveRefresh implements reconcile.Observer.
func (m *Metrics) ObserveRefresh(target string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.Refreshes.WithLabelValues(target, outcome).Inc()
}

// ObservePush implements notification.Observer.
func (m *Metrics) ObservePush(outcome string) {
	m.Pushes.WithLabelValues(outcome).Inc()
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveSignal counts a broadcast signal.
func (m *Metrics) ObserveSignal(kind string) {
	m.Signals.WithLabelValues(kind).Inc()
}

// WatchSignals counts every signal the hub delivers until ctx is done.
func (m *Metrics) WatchSignals(ctx context.Context, hub *broadcast.Hub) {
	signals, unsubscribe := hub.Subscribe()
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-signals:
			if !ok {
				return
			}
			m.ObserveSignal(string(sig.Kind))
		}
	}
}
