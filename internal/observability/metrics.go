package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_http_requests_total",
			Help: "Total number of HTTP requests processed by the chat room service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	wsActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_ws_active_connections",
			Help: "Number of active room websocket connections.",
		},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_ws_events_total",
			Help: "Total number of websocket lifecycle events.",
		},
		[]string{"event"},
	)
	changeSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_change_subscribers",
			Help: "Number of active change feed subscriptions.",
		},
	)
	changeNotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_change_notifications_total",
			Help: "Total number of change notifications received from the store.",
		},
		[]string{"op"},
	)
	sendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_message_sends_total",
			Help: "Total number of send attempts by outcome.",
		},
		[]string{"result"},
	)
	fetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_message_fetches_total",
			Help: "Total number of full message list fetches by outcome.",
		},
		[]string{"result"},
	)
	fetchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chat_message_fetch_duration_seconds",
			Help:    "Latency of full message list fetches.",
			Buckets: prometheus.DefBuckets,
		},
	)
	deletesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_message_deletes_total",
			Help: "Total number of soft delete attempts by outcome.",
		},
		[]string{"result"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		wsActiveConnections,
		wsEventsTotal,
		changeSubscribers,
		changeNotificationsTotal,
		sendsTotal,
		fetchesTotal,
		fetchDuration,
		deletesTotal,
		amqpPublishErrorsTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func IncWSActive() {
	wsActiveConnections.Inc()
}

func DecWSActive() {
	wsActiveConnections.Dec()
}

func IncWSEvent(event string) {
	wsEventsTotal.WithLabelValues(event).Inc()
}

func SetChangeSubscribers(n int) {
	changeSubscribers.Set(float64(n))
}

func IncChangeNotification(op string) {
	if op == "" {
		op = "resync"
	}
	changeNotificationsTotal.WithLabelValues(op).Inc()
}

// Send outcomes.
const (
	SendOK       = "ok"
	SendFailed   = "failed"
	SendRejected = "rejected"
)

func IncSend(result string) {
	sendsTotal.WithLabelValues(result).Inc()
}

func ObserveFetch(start time.Time, err error) {
	fetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		fetchesTotal.WithLabelValues("failed").Inc()
		return
	}
	fetchesTotal.WithLabelValues("ok").Inc()
}

func IncDelete(err error) {
	if err != nil {
		deletesTotal.WithLabelValues("failed").Inc()
		return
	}
	deletesTotal.WithLabelValues("ok").Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
