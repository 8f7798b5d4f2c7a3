package observability

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	monitorCommands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "c64bridge",
			Subsystem: "monitor",
			Name:      "commands_total",
			Help:      "Binary-monitor commands issued.",
		},
		[]string{"command", "outcome"},
	)
	monitorDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "c64bridge",
			Subsystem: "monitor",
			Name:      "command_duration_seconds",
			Help:      "Binary-monitor command round-trip duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"command", "outcome"},
	)
	emulatorSpawns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "c64bridge",
			Subsystem: "supervisor",
			Name:      "spawns_total",
			Help:      "Emulator subprocess spawn attempts.",
		},
		[]string{"outcome"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "c64bridge",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "c64bridge",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(monitorCommands, monitorDuration, emulatorSpawns, httpRequests, httpDuration)
	})
}

func RecordMonitorCommand(cmd byte, err error, duration time.Duration) {
	RegisterMetrics()
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	label := fmt.Sprintf("0x%02X", cmd)
	monitorCommands.WithLabelValues(label, outcome).Inc()
	monitorDuration.WithLabelValues(label, outcome).Observe(duration.Seconds())
}

func RecordSpawn(err error) {
	RegisterMetrics()
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	emulatorSpawns.WithLabelValues(outcome).Inc()
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}
