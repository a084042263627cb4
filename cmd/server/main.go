// Copyright (c) 2026 The Mailvault Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Mailvault — Ingestion Service
//
// Entry point for the long-running ingestion service. It:
//  1. Loads configuration from config.yaml
//  2. Connects to PostgreSQL and Redis
//  3. Loads Gmail credentials from Secret Manager
//  4. Registers the mailbox watch against the Pub/Sub topic and keeps it renewed
//  5. Serves the Pub/Sub push endpoint and the raw-message ingest endpoint
//  6. Handles graceful shutdown on SIGTERM/SIGINT
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"cloud.google.com/go/bigquery"
	gcs "cloud.google.com/go/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/mailvault/ingestion/internal/config"
	"github.com/mailvault/ingestion/internal/dedup"
	"github.com/mailvault/ingestion/internal/mail"
	"github.com/mailvault/ingestion/internal/pipeline"
	"github.com/mailvault/ingestion/internal/secrets"
	"github.com/mailvault/ingestion/internal/storage"
	"github.com/mailvault/ingestion/internal/warehouse"
	"github.com/mailvault/ingestion/internal/watch"
	"github.com/mailvault/ingestion/internal/webhook"
)

func main() {
	// Structured JSON logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	slog.Info("starting mailvault ingestion service")

	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Connect to PostgreSQL ---
	pgPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to create Postgres pool", "error", err)
		os.Exit(1)
	}
	defer pgPool.Close()

	if err := pgPool.Ping(ctx); err != nil {
		slog.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to PostgreSQL")

	// --- Connect to Redis ---
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("invalid REDIS_URL", "error", err)
		os.Exit(1)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to Redis")

	filter := dedup.NewFilter(rdb)

	// --- Credentials from Secret Manager ---
	sm, err := secrets.NewManager(ctx, cfg.ProjectID)
	if err != nil {
		slog.Error("failed to create secret manager client", "error", err)
		os.Exit(1)
	}
	defer sm.Close()

	tokenJSON, err := sm.Get(ctx, cfg.TokenSecretName)
	if err != nil {
		slog.Error("failed to load gmail token secret", "error", err)
		os.Exit(1)
	}

	ts, err := secrets.GmailTokenSource(ctx, tokenJSON)
	if err != nil {
		slog.Error("failed to build token source", "error", err)
		os.Exit(1)
	}

	// --- Google clients ---
	gmailSvc, err := mail.NewService(ctx, ts)
	if err != nil {
		slog.Error("failed to create gmail service", "error", err)
		os.Exit(1)
	}
	mailClient := mail.NewGmailClient(gmailSvc, cfg.UserID)

	gcsClient, err := gcs.NewClient(ctx)
	if err != nil {
		slog.Error("failed to create storage client", "error", err)
		os.Exit(1)
	}
	defer gcsClient.Close()

	bqClient, err := bigquery.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		slog.Error("failed to create bigquery client", "error", err)
		os.Exit(1)
	}
	defer bqClient.Close()

	uploader := storage.NewUploader(storage.NewGCSStore(gcsClient, cfg.Bucket), cfg.MaxFilenameLength)
	inserter := warehouse.NewBigQueryInserter(bqClient, cfg.Dataset, cfg.Table)

	// --- Pipeline Runner ---
	runner := pipeline.NewRunner(pipeline.RunnerConfig{
		Mail:         mailClient,
		Uploader:     uploader,
		Warehouse:    inserter,
		MaxResults:   cfg.MaxResults,
		MaxBodyBytes: cfg.MaxBodyBytes,
	})

	// --- Watch Store + Manager ---
	watchStore, err := watch.NewStore(ctx, pgPool)
	if err != nil {
		slog.Error("failed to initialise watch store", "error", err)
		os.Exit(1)
	}

	mgr := watch.NewManager(watch.ManagerConfig{
		Watcher:      mailClient,
		Store:        watchStore,
		EmailAddress: cfg.UserID,
		Topic:        cfg.PubSubTopic,
		RenewBuffer:  cfg.WatchRenewBuffer,
	})

	// --- Webhook server ---
	handler := webhook.NewHandler(webhook.HandlerConfig{
		Sweeper:      runner,
		Filter:       filter,
		WatchState:   watchStore,
		Uploader:     uploader,
		Warehouse:    inserter,
		MaxBodyBytes: cfg.MaxBodyBytes,
	})

	ready, err := webhook.Serve(ctx, cfg.Port, handler)
	if err != nil {
		slog.Error("failed to start webhook server", "error", err)
		os.Exit(1)
	}
	<-ready

	// Register the watch only after the push endpoint is reachable.
	if cfg.PubSubTopic != "" {
		if err := mgr.Start(ctx); err != nil {
			slog.Error("failed to start watch manager", "error", err)
			os.Exit(1)
		}
	} else {
		slog.Warn("no pubsub topic configured — push notifications disabled")
	}

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh

	slog.Info("received shutdown signal", "signal", sig)
	if cfg.PubSubTopic != "" {
		mgr.Stop()
	}
	cancel() // Stops the webhook server and background goroutines

	rdb.Close()

	slog.Info("ingestion service stopped")
}
