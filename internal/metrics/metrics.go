package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// WebSocket metrics
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "classroom_ws_connections_active",
		Help: "The current number of open websocket connections.",
	})
	MessagesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "classroom_ws_messages_received_total",
		Help: "Inbound websocket messages by event type.",
	}, []string{"type"})
	ClientsEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classroom_ws_clients_evicted_total",
		Help: "Connections dropped because their outbound queue was full.",
	})

	// Classroom metrics
	Participants = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "classroom_participants",
		Help: "Registered participants by role.",
	}, []string{"role"})
	PollsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classroom_polls_started_total",
		Help: "Polls opened by teachers.",
	})
	PollsRetired = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "classroom_polls_retired_total",
		Help: "Polls moved to history, by trigger.",
	}, []string{"trigger"})
	AnswersAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classroom_answers_accepted_total",
		Help: "Votes counted.",
	})
	AnswersRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "classroom_answers_rejected_total",
		Help: "Votes ignored, by reason.",
	}, []string{"reason"})
	HistoryPersistFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classroom_history_persist_failures_total",
		Help: "Failed rewrites of the persisted poll history.",
	})
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
