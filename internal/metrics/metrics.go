// Package metrics exposes the server's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectionsOpen tracks websocket connections currently open.
	ConnectionsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "signaling_connections_open",
		Help: "Number of websocket connections currently open.",
	})

	// RoomsActive tracks rooms currently registered in the hub.
	RoomsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "signaling_rooms_active",
		Help: "Number of rooms currently active.",
	})

	// MessagesRelayed counts peer-to-peer payloads relayed, by type.
	MessagesRelayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signaling_messages_relayed_total",
		Help: "Number of signaling payloads relayed to a peer, by message type.",
	}, []string{"type"})

	// JoinsTotal counts join-room handling, split by genuine joins and
	// reconnect replacements.
	JoinsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signaling_joins_total",
		Help: "Number of join-room messages handled, by kind (join or reconnect).",
	}, []string{"kind"})

	// RelayMisses counts relays that found no deliverable target.
	RelayMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "signaling_relay_misses_total",
		Help: "Number of relayed payloads dropped because the sender had no room or the target was absent.",
	})
)
