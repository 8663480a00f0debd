// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Connections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "promohub_connections",
			Help: "Open websocket connections.",
		},
	)

	OnlineUsers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "promohub_online_users",
			Help: "Distinct users with at least one joined connection.",
		},
	)

	ChatMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promohub_chat_messages_total",
			Help: "Chat messages accepted, by channel (public, dm, group).",
		},
		[]string{"channel"},
	)

	Votes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promohub_votes_total",
			Help: "Vote attempts by result (accepted, duplicate, error).",
		},
		[]string{"result"},
	)

	FramesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promohub_frames_dropped_total",
			Help: "Inbound or outbound frames dropped, by reason.",
		},
		[]string{"reason"},
	)

	PersistFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promohub_persist_failures_total",
			Help: "Swallowed store write failures, by collection.",
		},
		[]string{"collection"},
	)
)

func init() {
	prometheus.MustRegister(Connections)
	prometheus.MustRegister(OnlineUsers)
	prometheus.MustRegister(ChatMessages)
	prometheus.MustRegister(Votes)
	prometheus.MustRegister(FramesDropped)
	prometheus.MustRegister(PersistFailures)
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
