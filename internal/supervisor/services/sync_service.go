// Tillmirror - Offline-First POS Cache and Pending Write Queue
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tillmirror

package services

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/tillmirror/internal/logging"
	"github.com/tomtom215/tillmirror/internal/models"
	"github.com/tomtom215/tillmirror/internal/netstatus"
	"github.com/tomtom215/tillmirror/internal/offline"
)

// Syncer replays every pending queue. Satisfied by *entities.Registry.
type Syncer interface {
	SyncAll(ctx context.Context) (models.SyncResult, error)
}

// Subscriber registers network transition listeners. Satisfied by
// *netstatus.Probe and *netstatus.Static.
type Subscriber interface {
	netstatus.Provider
	Subscribe(l netstatus.Listener)
}

// SyncConfig selects when the queue is replayed without a host request.
type SyncConfig struct {
	// OnReconnect replays when the network goes from offline to online.
	OnReconnect bool

	// Interval replays periodically while online. Zero disables it.
	Interval time.Duration
}

// SyncService replays the pending queue on reconnect and, optionally, on
// a timer. Failures are logged; records stay queued for the next pass.
type SyncService struct {
	syncer  Syncer
	network Subscriber
	config  SyncConfig
	trigger chan struct{}
	name    string
}

// NewSyncService creates the service and subscribes to network
// transitions. Subscribe once per process; listeners cannot be removed.
func NewSyncService(syncer Syncer, network Subscriber, config SyncConfig) *SyncService {
	s := &SyncService{
		syncer:  syncer,
		network: network,
		config:  config,
		trigger: make(chan struct{}, 1),
		name:    "sync-replayer",
	}
	if config.OnReconnect {
		network.Subscribe(func(online bool) {
			if online {
				s.Trigger()
			}
		})
	}
	return s
}

// Trigger requests a pass. Requests made while one is pending coalesce.
func (s *SyncService) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Serve implements suture.Service.
func (s *SyncService) Serve(ctx context.Context) error {
	var tick <-chan time.Time
	if s.config.Interval > 0 {
		ticker := time.NewTicker(s.config.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.trigger:
			s.run(ctx, "reconnect")
		case <-tick:
			if s.network.IsOnline() {
				s.run(ctx, "interval")
			}
		}
	}
}

func (s *SyncService) run(ctx context.Context, reason string) {
	res, err := s.syncer.SyncAll(ctx)
	log := logging.Ctx(ctx)
	switch {
	case err == nil:
		if res.Synced > 0 || res.Failed > 0 {
			log.Info().Str("reason", reason).Int("synced", res.Synced).Int("failed", res.Failed).Msg("Automatic sync finished")
		}
	case errors.Is(err, offline.ErrSyncInProgress):
		log.Debug().Err(err).Str("reason", reason).Msg("Automatic sync overlapped a running pass")
	case ctx.Err() != nil:
	default:
		log.Warn().Err(err).Str("reason", reason).Int("synced", res.Synced).Int("failed", res.Failed).Msg("Automatic sync failed")
	}
}

func (s *SyncService) String() string {
	return s.name
}
