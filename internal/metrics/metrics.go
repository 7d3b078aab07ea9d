// v1
// internal/metrics/metrics.go
// Package metrics exposes Prometheus counters and gauges for the control
// loop and the command surface, served on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TicksTotal counts completed control ticks.
	TicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "homecontroller_ticks_total",
		Help: "Completed temperature control ticks.",
	})

	// RoomsSkippedTotal counts per-tick room skips due to a missing reading.
	RoomsSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "homecontroller_rooms_skipped_total",
		Help: "Rooms skipped during a tick because no temperature reading was available.",
	})

	// ActuatorCallsTotal counts heater commands issued, labelled by outcome.
	ActuatorCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "homecontroller_actuator_calls_total",
		Help: "Heater actuator commands issued by the controller.",
	}, []string{"outcome"})

	// TemperatureReportsTotal counts accepted external temperature reports.
	TemperatureReportsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "homecontroller_temperature_reports_total",
		Help: "Accepted temperature reports pushed by external reporters.",
	})

	// AuthRejectionsTotal counts rejected privileged-command validations.
	AuthRejectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "homecontroller_auth_rejections_total",
		Help: "Rejected control command authentications.",
	})

	// RoomsRegistered tracks the size of the room registry.
	RoomsRegistered = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "homecontroller_rooms_registered",
		Help: "Rooms currently registered from the topology.",
	})

	// HeatersOn tracks how many heaters the last tick left running.
	HeatersOn = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "homecontroller_heaters_on",
		Help: "Heaters currently commanded on.",
	})
)

// Handler returns the exposition endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
