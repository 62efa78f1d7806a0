package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	serverStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "appshell",
			Subsystem: "server",
			Name:      "starts_total",
			Help:      "Number of successful backend server starts.",
		}, []string{"mode"},
	)
	serverExits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "appshell",
			Subsystem: "server",
			Name:      "exits_total",
			Help:      "Number of backend server exits by reason.",
		}, []string{"reason"},
	)
	serverOutputLines = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "appshell",
			Subsystem: "server",
			Name:      "output_lines_total",
			Help:      "Captured backend output lines by classification.",
		}, []string{"class"},
	)
	updateChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "appshell",
			Subsystem: "update",
			Name:      "checks_total",
			Help:      "Update notification passes by result.",
		}, []string{"result"},
	)
	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "appshell",
			Subsystem: "update",
			Name:      "notifications_total",
			Help:      "Outbound notification signals by event name.",
		}, []string{"event"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{serverStarts, serverExits, serverOutputLines, updateChecks, notifications}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler serving Prometheus metrics for the
// DefaultGatherer. The caller wires the route.
func Handler() http.Handler { return promhttp.Handler() }

// Lightweight helpers used by internal packages. They no-op until Register
// has been called.

func IncStart(mode string) {
	if regOK.Load() {
		serverStarts.WithLabelValues(mode).Inc()
	}
}

func IncExit(reason string) {
	if regOK.Load() {
		serverExits.WithLabelValues(reason).Inc()
	}
}

func IncOutputLine(class string) {
	if regOK.Load() {
		serverOutputLines.WithLabelValues(class).Inc()
	}
}

func IncUpdateCheck(result string) {
	if regOK.Load() {
		updateChecks.WithLabelValues(result).Inc()
	}
}

func IncNotification(event string) {
	if regOK.Load() {
		notifications.WithLabelValues(event).Inc()
	}
}
