package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voxform_http_requests_total",
			Help: "Total HTTP requests by route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voxform_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	TranscriptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voxform_transcriptions_total",
			Help: "Total transcription attempts by outcome",
		},
		[]string{"status"},
	)

	TranscriptionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "voxform_transcription_duration_seconds",
			Help:    "Time spent in token exchange plus recognition",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	RecordOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voxform_record_operations_total",
			Help: "Total persistence operations by kind and outcome",
		},
		[]string{"operation", "status"},
	)

	ActiveConversations = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "voxform_active_conversations",
			Help: "Conversation sessions currently connected",
		},
	)

	ConversationsCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voxform_conversations_completed_total",
			Help: "Conversations that produced a complete answer set",
		},
		[]string{"document_type"},
	)
)

// Registry holds every voxform collector plus the Go runtime collectors.
var Registry = prometheus.NewRegistry()

var initOnce sync.Once

func Init() {
	initOnce.Do(func() {
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		Registry.MustRegister(HTTPRequestsTotal)
		Registry.MustRegister(HTTPRequestDuration)
		Registry.MustRegister(TranscriptionsTotal)
		Registry.MustRegister(TranscriptionDuration)
		Registry.MustRegister(RecordOperationsTotal)
		Registry.MustRegister(ActiveConversations)
		Registry.MustRegister(ConversationsCompleted)
	})
}

func Handler() http.Handler {
	Init()
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Outcome maps an error to the status label used by the counters above.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
