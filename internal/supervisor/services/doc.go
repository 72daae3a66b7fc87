// Tillmirror - Offline-First POS Cache and Pending Write Queue
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tillmirror

// Package services adapts the agent's components to suture.Service.
//
// Components with a Start/Stop lifecycle (the store sweeper, the network
// probe) are wrapped by LifecycleService; the HTTP server by
// HTTPServerService; and automatic queue replay runs in SyncService.
package services
