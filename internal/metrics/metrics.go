// Package metrics defines Prometheus metrics for device API traffic.
//
// All metrics are registered with the package Registry, which the
// "go2n metrics" command serves. Metric naming follows Prometheus conventions:
//   - go2n_ prefix for all metrics
//   - _total suffix for counters
//   - _seconds suffix for duration histograms
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for RequestsTotal.
const (
	OutcomeSuccess     = "success"
	OutcomeConnection  = "connection_error"
	OutcomeUnsupported = "unsupported_device"
	OutcomeAPIError    = "api_error"
	OutcomeOther       = "error"
)

// Registry holds every go2n metric.
var Registry = prometheus.NewRegistry()

var (
	// RequestsTotal counts device API requests by endpoint, method and outcome.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "go2n_requests_total",
			Help: "Total device API requests by endpoint, method and outcome.",
		},
		[]string{"endpoint", "method", "outcome"},
	)

	// RequestDurationSeconds is a histogram of request latency by endpoint.
	RequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "go2n_request_duration_seconds",
			Help:    "Duration of device API requests in seconds.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"endpoint"},
	)

	// APIErrorsTotal counts classified vendor errors by kind.
	APIErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "go2n_api_errors_total",
			Help: "Total classified API errors reported by devices.",
		},
		[]string{"kind"},
	)

	// SessionRefreshesTotal counts full refreshes by result.
	SessionRefreshesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "go2n_session_refreshes_total",
			Help: "Total full device state refreshes by result.",
		},
		[]string{"result"},
	)

	// DeviceUp is 1 while the last refresh of a device succeeded.
	DeviceUp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "go2n_device_up",
			Help: "Whether the last refresh of the device succeeded.",
		},
		[]string{"host"},
	)

	// SwitchActive mirrors each enabled switch (1 = active).
	SwitchActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "go2n_switch_active",
			Help: "Switch state as last read from the device.",
		},
		[]string{"host", "switch"},
	)

	// PortState mirrors each IO port (1 = on).
	PortState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "go2n_port_state",
			Help: "IO port state as last read from the device.",
		},
		[]string{"host", "port", "type"},
	)
)

func init() {
	Registry.MustRegister(
		RequestsTotal,
		RequestDurationSeconds,
		APIErrorsTotal,
		SessionRefreshesTotal,
		DeviceUp,
		SwitchActive,
		PortState,
	)
}

// RecordRequest records metrics for a completed request.
func RecordRequest(endpoint, method, outcome string, duration time.Duration) {
	RequestsTotal.WithLabelValues(endpoint, method, outcome).Inc()
	RequestDurationSeconds.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordAPIError records a single classified vendor error.
func RecordAPIError(kind string) {
	APIErrorsTotal.WithLabelValues(kind).Inc()
}

// RecordRefresh records the result of a full refresh ("ok" or "failed").
func RecordRefresh(ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	SessionRefreshesTotal.WithLabelValues(result).Inc()
}

// SetDeviceUp records whether host answered its last refresh.
func SetDeviceUp(host string, up bool) {
	DeviceUp.WithLabelValues(host).Set(boolValue(up))
}

// SetSwitchActive records the state of one switch.
func SetSwitchActive(host string, id int, active bool) {
	SwitchActive.WithLabelValues(host, strconv.Itoa(id)).Set(boolValue(active))
}

// SetPortState records the state of one IO port.
func SetPortState(host, port, portType string, on bool) {
	PortState.WithLabelValues(host, port, portType).Set(boolValue(on))
}

// ClearDeviceState drops the switch and port series of host, so switches
// that became disabled and ports that disappeared stop being exported.
func ClearDeviceState(host string) {
	SwitchActive.DeletePartialMatch(prometheus.Labels{"host": host})
	PortState.DeletePartialMatch(prometheus.Labels{"host": host})
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Handler serves the Registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
