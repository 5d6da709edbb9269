package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MessagesReceived counts inbound messages by session and admin/app category
var MessagesReceived = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "fixgate_messages_received_total",
		Help: "Total number of inbound FIX messages processed",
	},
	[]string{"session", "category"},
)

// MessagesSent counts outbound messages by session and admin/app category
var MessagesSent = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "fixgate_messages_sent_total",
		Help: "Total number of outbound FIX messages transmitted",
	},
	[]string{"session", "category"},
)

// ResendsServed counts messages replayed in response to ResendRequest
var ResendsServed = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "fixgate_resends_served_total",
		Help: "Total number of messages replayed for counterparty resend requests",
	},
	[]string{"session"},
)

// RejectsSent counts session-level Rejects emitted
var RejectsSent = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "fixgate_rejects_sent_total",
		Help: "Total number of session-level Reject messages emitted",
	},
	[]string{"session"},
)

// DecodeErrors counts framing failures by kind
var DecodeErrors = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "fixgate_decode_errors_total",
		Help: "Total number of framing failures on inbound byte streams",
	},
	[]string{"session", "kind"},
)

// SessionState tracks the numeric state of each session
var SessionState = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "fixgate_session_state",
		Help: "Current session state (0=Disconnected .. 6=Scheduled)",
	},
	[]string{"session"},
)

// StoreWriteLatency records latency of durable counter writes
var StoreWriteLatency = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "fixgate_store_write_latency_seconds",
		Help:    "Latency in seconds of durable sequence counter writes",
		Buckets: prometheus.DefBuckets,
	},
)

func init() {
	prometheus.MustRegister(MessagesReceived, MessagesSent)
	prometheus.MustRegister(ResendsServed, RejectsSent, DecodeErrors)
	prometheus.MustRegister(SessionState, StoreWriteLatency)
}
