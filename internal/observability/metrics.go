package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores Prometheus collectors used by the API and the ingestion pipeline.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal       *prometheus.CounterVec
	httpRequestDuration     *prometheus.HistogramVec
	framesReceivedTotal     prometheus.Counter
	framesDroppedTotal      *prometheus.CounterVec
	eventsIngestedTotal     *prometheus.CounterVec
	channelReconnectsTotal  prometheus.Counter
	activeToasts            prometheus.Gauge
	announcementsTotal      prometheus.Counter
	announcementsFailed     prometheus.Counter
	deviceCommandsTotal     *prometheus.CounterVec
	attendancePersistErrors prometheus.Counter
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "access_panel",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "access_panel",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		framesReceivedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "access_panel",
				Name:      "frames_received_total",
				Help:      "Total number of frames read from the push channel.",
			},
		),
		framesDroppedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "access_panel",
				Name:      "frames_dropped_total",
				Help:      "Total number of frames discarded before ingestion, grouped by reason.",
			},
			[]string{"reason"},
		),
		eventsIngestedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "access_panel",
				Name:      "events_ingested_total",
				Help:      "Total number of access events ingested, grouped by outcome.",
			},
			[]string{"outcome"},
		),
		channelReconnectsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "access_panel",
				Name:      "channel_reconnects_total",
				Help:      "Total number of reconnect attempts against the push channel.",
			},
		),
		activeToasts: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "access_panel",
				Name:      "active_toasts",
				Help:      "Current number of toasts visible on the panel.",
			},
		),
		announcementsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "access_panel",
				Name:      "announcements_total",
				Help:      "Total number of voice announcements started.",
			},
		),
		announcementsFailed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "access_panel",
				Name:      "announcements_failed_total",
				Help:      "Total number of voice announcements that ended in error.",
			},
		),
		deviceCommandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "access_panel",
				Name:      "device_commands_total",
				Help:      "Total number of manual device commands sent, grouped by command.",
			},
			[]string{"command"},
		),
		attendancePersistErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "access_panel",
				Name:      "attendance_persist_errors_total",
				Help:      "Total number of attendance entries that failed to persist.",
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.framesReceivedTotal,
		m.framesDroppedTotal,
		m.eventsIngestedTotal,
		m.channelReconnectsTotal,
		m.activeToasts,
		m.announcementsTotal,
		m.announcementsFailed,
		m.deviceCommandsTotal,
		m.attendancePersistErrors,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncFrameReceived() {
	if m == nil {
		return
	}
	m.framesReceivedTotal.Inc()
}

func (m *Metrics) IncFrameDropped(reason string) {
	if m == nil {
		return
	}
	reasonLabel := strings.TrimSpace(strings.ToLower(reason))
	if reasonLabel == "" {
		reasonLabel = "unknown"
	}
	m.framesDroppedTotal.WithLabelValues(reasonLabel).Inc()
}

func (m *Metrics) IncEventIngested(granted bool) {
	if m == nil {
		return
	}
	outcome := "denied"
	if granted {
		outcome = "granted"
	}
	m.eventsIngestedTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncChannelReconnect() {
	if m == nil {
		return
	}
	m.channelReconnectsTotal.Inc()
}

func (m *Metrics) SetActiveToasts(n int) {
	if m == nil {
		return
	}
	m.activeToasts.Set(float64(n))
}

func (m *Metrics) IncAnnouncementStarted() {
	if m == nil {
		return
	}
	m.announcementsTotal.Inc()
}

func (m *Metrics) IncAnnouncementFailed() {
	if m == nil {
		return
	}
	m.announcementsFailed.Inc()
}

func (m *Metrics) IncDeviceCommand(command string) {
	if m == nil {
		return
	}
	commandLabel := strings.TrimSpace(strings.ToLower(command))
	if commandLabel == "" {
		commandLabel = "unknown"
	}
	m.deviceCommandsTotal.WithLabelValues(commandLabel).Inc()
}

func (m *Metrics) IncAttendancePersistError() {
	if m == nil {
		return
	}
	m.attendancePersistErrors.Inc()
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}
