// Package metrics provides Prometheus metrics collection for the counselbox client.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ChannelOpens tracks the total number of messaging channel opens
	ChannelOpens = promauto.NewCounter(prometheus.CounterOpts{
		Name: "counselbox_channel_opens_total",
		Help: "Total number of messaging channel opens",
	})

	// ActiveChannels tracks the current number of open messaging channels
	ActiveChannels = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "counselbox_active_channels",
		Help: "Current number of open messaging channels",
	})

	// EnvelopesSent tracks the total number of envelopes sent on the channel
	EnvelopesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "counselbox_envelopes_sent_total",
		Help: "Total number of envelopes sent on the messaging channel",
	})

	// EnvelopesRouted tracks inbound envelopes by routing decision
	EnvelopesRouted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "counselbox_envelopes_routed_total",
		Help: "Total number of inbound envelopes by routing decision",
	}, []string{"action"})

	// TransportErrors tracks channel errors and inbound parse failures
	TransportErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "counselbox_transport_errors_total",
		Help: "Total number of channel transport errors",
	})

	// RosterTicks tracks roster poll ticks by outcome
	RosterTicks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "counselbox_roster_ticks_total",
		Help: "Total number of roster poll ticks by outcome",
	}, []string{"outcome"})

	// NotifyReconnects tracks call-notification channel reconnection attempts
	NotifyReconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "counselbox_notify_reconnects_total",
		Help: "Total number of call-notification channel reconnection attempts",
	})

	// PanicsRecovered tracks panics recovered in background goroutines
	PanicsRecovered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "counselbox_panics_recovered_total",
		Help: "Total number of panics recovered in background goroutines",
	})
)
