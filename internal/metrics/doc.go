// Tillmirror - Offline-First POS Cache and Pending Write Queue
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tillmirror

/*
Package metrics holds the Prometheus collectors shared across packages.

Store and network-probe collectors live next to their packages; this package
covers the cross-cutting ones:

HTTP Metrics:
  - tillmirror_api_requests_total{method, endpoint, status_code}
  - tillmirror_api_request_duration_seconds{method, endpoint}
  - tillmirror_api_active_requests

Remote Backend Metrics:
  - tillmirror_remote_requests_total{method, result}
  - tillmirror_remote_request_duration_seconds{method}
  - tillmirror_remote_rate_limited_total

Circuit Breaker Metrics:
  - tillmirror_circuit_breaker_state{name} (0=closed, 1=half-open, 2=open)
  - tillmirror_circuit_breaker_requests_total{name, result}
  - tillmirror_circuit_breaker_consecutive_failures{name}
  - tillmirror_circuit_breaker_state_transitions_total{name, from_state, to_state}

Offline Engine Metrics:
  - tillmirror_fetch_outcomes_total{collection, outcome}
  - tillmirror_writes_total{entity_type, op, outcome}
  - tillmirror_sync_records_total{entity_type, result}
  - tillmirror_sync_duration_seconds{entity_type}
  - tillmirror_evictions_total{scope}

WebSocket Metrics:
  - tillmirror_websocket_connections
  - tillmirror_websocket_messages_sent_total

The collectors register with the default registry through promauto and are
served by promhttp at /metrics.
*/
package metrics
