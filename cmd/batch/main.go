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

// Mailvault batch sweep
//
// One-shot invocation of the ingestion pipeline: lists unread messages,
// decomposes each one, uploads attachments to Cloud Storage, inserts the
// normalized records into BigQuery, and marks fully-processed messages
// read. Prints bucket statistics when done.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"cloud.google.com/go/bigquery"
	gcs "cloud.google.com/go/storage"

	"github.com/mailvault/ingestion/internal/config"
	"github.com/mailvault/ingestion/internal/mail"
	"github.com/mailvault/ingestion/internal/pipeline"
	"github.com/mailvault/ingestion/internal/secrets"
	"github.com/mailvault/ingestion/internal/storage"
	"github.com/mailvault/ingestion/internal/warehouse"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	slog.Info("starting mailvault batch sweep")

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Credentials ---
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

	// --- Clients ---
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
	store := storage.NewGCSStore(gcsClient, cfg.Bucket)

	bqClient, err := bigquery.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		slog.Error("failed to create bigquery client", "error", err)
		os.Exit(1)
	}
	defer bqClient.Close()

	// --- Pipeline ---
	runner := pipeline.NewRunner(pipeline.RunnerConfig{
		Mail:         mailClient,
		Uploader:     storage.NewUploader(store, cfg.MaxFilenameLength),
		Warehouse:    warehouse.NewBigQueryInserter(bqClient, cfg.Dataset, cfg.Table),
		MaxResults:   cfg.MaxResults,
		MaxBodyBytes: cfg.MaxBodyBytes,
	})

	result, err := runner.Run(ctx)
	if err != nil {
		slog.Error("batch sweep failed", "error", err)
		os.Exit(1)
	}

	stats, err := store.Statistics(ctx, "")
	if err != nil {
		slog.Warn("failed to collect bucket statistics", "error", err)
	} else {
		slog.Info("bucket statistics",
			"bucket", cfg.Bucket,
			"total_files", stats.TotalFiles,
			"total_bytes", stats.TotalBytes,
			"file_types", stats.FileTypes,
		)
	}

	// Today's uploads, for a quick eyeball of what this sweep produced.
	recent, err := store.ListRecent(ctx, time.Now().UTC().Format("2006-01-02")+"/", 20)
	if err != nil {
		slog.Warn("failed to list recent uploads", "error", err)
	} else {
		for _, obj := range recent {
			slog.Info("stored attachment",
				"name", obj.Name,
				"size", obj.Size,
				"content_type", obj.ContentType,
			)
		}
	}

	slog.Info("batch sweep finished",
		"run_id", result.RunID,
		"found", result.Found,
		"stored", result.Stored,
		"marked_read", result.MarkedRead,
		"failed", result.Failed,
	)
}
