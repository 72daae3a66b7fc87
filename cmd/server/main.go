// Tillmirror - Offline-First POS Cache and Pending Write Queue
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tillmirror

package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/tillmirror/internal/api"
	"github.com/tomtom215/tillmirror/internal/config"
	"github.com/tomtom215/tillmirror/internal/entities"
	"github.com/tomtom215/tillmirror/internal/logging"
	"github.com/tomtom215/tillmirror/internal/netstatus"
	"github.com/tomtom215/tillmirror/internal/offline"
	"github.com/tomtom215/tillmirror/internal/oplog"
	"github.com/tomtom215/tillmirror/internal/remote"
	"github.com/tomtom215/tillmirror/internal/session"
	"github.com/tomtom215/tillmirror/internal/store"
	"github.com/tomtom215/tillmirror/internal/supervisor"
	"github.com/tomtom215/tillmirror/internal/supervisor/services"
	ws "github.com/tomtom215/tillmirror/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	logging.Info().
		Str("remote", cfg.Remote.BaseURL).
		Str("store_path", cfg.Store.Path).
		Bool("auth", cfg.Server.AuthSecret != "").
		Msg("Starting tillmirror")

	st, err := store.Open(storeConfig(&cfg.Store))
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open local store")
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing local store")
		}
	}()

	opLog, err := oplog.Open(oplog.Config{Path: cfg.OpLog.Path, Retention: cfg.OpLog.Retention})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open operational log")
	}
	defer func() {
		if err := opLog.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing operational log")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := remote.New(&cfg.Remote)
	probe := netstatus.NewProbe(probeConfig(cfg))
	hub := ws.NewHub()

	probe.Subscribe(func(online bool) {
		hub.NetworkChanged(online)
		msg := "offline"
		if online {
			msg = "online"
		}
		opLog.Record(context.Background(), oplog.Entry{Kind: oplog.KindNetwork, Message: msg})
		logging.Info().Bool("online", online).Msg("Network state changed")
	})
	hub.NetworkChanged(probe.IsOnline())

	engine := offline.New(st, probe,
		offline.WithNotifier(hub),
		offline.WithRecorder(opLog),
	)
	registry := entities.NewRegistry(engine, client)

	handler := api.NewHandler(api.HandlerDeps{
		Engine:      engine,
		Registry:    registry,
		Network:     probe,
		Session:     session.NewFileProvider(cfg.Session.Path),
		Oplog:       opLog,
		Hub:         hub,
		CORSOrigins: cfg.Server.CORSOrigins,
	})
	router := api.NewRouter(
		handler,
		api.NewChiMiddleware(api.ChiMiddlewareConfigFromServer(&cfg.Server)),
		api.NewTokenValidator(cfg.Server.AuthSecret),
	)

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.Setup(),
		ReadTimeout:       cfg.Server.Timeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})

	tree.AddDataService(services.NewLifecycleService("store-sweeper", store.NewSweeper(st)))

	tree.AddNetworkService(services.NewLifecycleService("network-probe", probe))
	tree.AddNetworkService(services.NewSyncService(registry, probe, services.SyncConfig{
		OnReconnect: cfg.Sync.OnReconnect,
		Interval:    cfg.Sync.Interval,
	}))
	tree.AddNetworkService(hub)

	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	// Publish the queue size left over from the previous run.
	engine.RefreshPending(ctx)

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutdown signal received, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
	}

	logging.Info().Msg("Tillmirror stopped")
}

func storeConfig(c *config.StoreConfig) store.Config {
	return store.Config{
		Path:             c.Path,
		SyncWrites:       c.SyncWrites,
		Compression:      c.Compression,
		MemTableSize:     c.MemTableSize,
		ValueLogFileSize: c.ValueLogFileSize,
		NumCompactors:    c.NumCompactors,
		BlockCacheSize:   c.BlockCacheSize,
		GCRatio:          c.GCRatio,
		SweepInterval:    c.SweepInterval,
		CloseTimeout:     c.CloseTimeout,
	}
}

func probeConfig(cfg *config.Config) netstatus.ProbeConfig {
	pc := netstatus.DefaultProbeConfig()
	pc.URL = cfg.Network.ProbeURL
	if pc.URL == "" {
		pc.URL = cfg.Remote.BaseURL
	}
	if cfg.Network.ProbeInterval > 0 {
		pc.Interval = cfg.Network.ProbeInterval
	}
	if cfg.Network.ProbeTimeout > 0 {
		pc.Timeout = cfg.Network.ProbeTimeout
	}
	if cfg.Network.FailureThreshold > 0 {
		pc.FailureThreshold = cfg.Network.FailureThreshold
	}
	pc.AssumeOnline = cfg.Network.AssumeOnline
	return pc
}
