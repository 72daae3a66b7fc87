// Tillmirror - Offline-First POS Cache and Pending Write Queue
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tillmirror

package netstatus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	networkOnline = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tillmirror_network_online",
		Help: "1 when the backend is considered reachable, 0 otherwise",
	})

	probeResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tillmirror_network_probes_total",
		Help: "Network probe results",
	}, []string{"result"})

	networkTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tillmirror_network_transitions_total",
		Help: "Online/offline transitions by new state",
	}, []string{"state"})
)

func setOnlineGauge(online bool) {
	if online {
		networkOnline.Set(1)
		return
	}
	networkOnline.Set(0)
}

func recordProbe(ok bool) {
	if ok {
		probeResults.WithLabelValues("ok").Inc()
		return
	}
	probeResults.WithLabelValues("failed").Inc()
}

func recordTransition(online bool) {
	state := "offline"
	if online {
		state = "online"
	}
	networkTransitions.WithLabelValues(state).Inc()
}
