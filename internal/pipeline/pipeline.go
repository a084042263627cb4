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

// Package pipeline orchestrates one batch sweep over unread messages:
// assemble each message, upload its attachments, insert the finished record
// into the warehouse, and mark the message read only when everything for it
// succeeded. A message left unread is retried by the next sweep; that is
// the system's only retry mechanism.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mailvault/ingestion/internal/extract"
	"github.com/mailvault/ingestion/internal/mail"
	"github.com/mailvault/ingestion/internal/models"
	"github.com/mailvault/ingestion/internal/warehouse"
)

// Runner performs batch sweeps of unread messages.
type Runner struct {
	mail       mail.Client
	uploader   extract.Uploader
	warehouse  warehouse.Inserter
	assembler  *extract.Assembler
	maxResults int64
}

// RunnerConfig holds dependencies for the batch runner.
type RunnerConfig struct {
	Mail         mail.Client
	Uploader     extract.Uploader
	Warehouse    warehouse.Inserter
	MaxResults   int64
	MaxBodyBytes int
}

// NewRunner creates a batch runner.
func NewRunner(cfg RunnerConfig) *Runner {
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 100
	}
	return &Runner{
		mail:      cfg.Mail,
		uploader:  cfg.Uploader,
		warehouse: cfg.Warehouse,
		assembler: extract.NewAssembler(extract.AssemblerConfig{
			Fetch:        cfg.Mail.GetAttachment,
			Mode:         extract.ModeRawAttachments,
			MaxBodyBytes: cfg.MaxBodyBytes,
		}),
		maxResults: maxResults,
	}
}

// Result summarises a completed sweep.
type Result struct {
	RunID       string
	Found       int
	Stored      int
	MarkedRead  int
	Failed      int
	Attachments int
	Uploaded    int
	Elapsed     time.Duration
}

// Run sweeps unread messages once. A listing failure is fatal to the
// invocation; failures within one message's pipeline are logged at that
// message's granularity and the sweep proceeds to the next id.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	result := &Result{RunID: uuid.New().String()}

	ids, err := r.mail.ListUnread(ctx, r.maxResults)
	if err != nil {
		return nil, fmt.Errorf("list unread messages: %w", err)
	}
	result.Found = len(ids)

	slog.Info("starting unread sweep",
		"run_id", result.RunID,
		"unread", len(ids),
	)

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		stored, marked, outcomes := r.processMessage(ctx, id)
		if stored {
			result.Stored++
		} else {
			result.Failed++
		}
		if marked {
			result.MarkedRead++
		}
		result.Attachments += len(outcomes)
		for _, o := range outcomes {
			if o.Uploaded {
				result.Uploaded++
			}
		}
	}

	result.Elapsed = time.Since(start)

	slog.Info("unread sweep complete",
		"run_id", result.RunID,
		"found", result.Found,
		"stored", result.Stored,
		"marked_read", result.MarkedRead,
		"failed", result.Failed,
		"attachments", result.Attachments,
		"uploaded", result.Uploaded,
		"elapsed", result.Elapsed,
	)

	return result, nil
}

// processMessage runs the per-message pipeline: Reading, Uploading, Storing,
// Marking. It reports whether the record was stored, whether the message was
// marked read, and the attachment outcomes for accounting.
func (r *Runner) processMessage(ctx context.Context, id string) (stored, marked bool, outcomes []models.AttachmentOutcome) {
	msg, err := r.mail.GetFullMessage(ctx, id)
	if err != nil {
		slog.Warn("skipping message: fetch failed",
			"message_id", id,
			"error", err,
		)
		return false, false, nil
	}

	rec := r.assembler.Assemble(ctx, msg)

	// Upload attachments, discarding bytes as soon as each attempt finishes
	// so large attachments never accumulate across the batch.
	for i := range rec.RawAttachments {
		outcome := r.uploader.Upload(ctx, rec.MessageID, rec.RawAttachments[i])
		rec.RawAttachments[i].RawBytes = nil
		rec.Attachments = append(rec.Attachments, outcome)
	}
	rec.RawAttachments = nil
	outcomes = rec.Attachments

	if err := r.warehouse.Insert(ctx, rec); err != nil {
		slog.Warn("message left unread: warehouse insert failed",
			"message_id", id,
			"error", err,
		)
		return false, false, outcomes
	}

	if !allUploadsClean(outcomes) {
		slog.Warn("message left unread: attachment upload failed",
			"message_id", id,
			"attachments", len(outcomes),
		)
		return true, false, outcomes
	}

	if err := r.mail.MarkRead(ctx, id); err != nil {
		slog.Warn("failed to mark message read",
			"message_id", id,
			"error", err,
		)
		return true, false, outcomes
	}

	return true, true, outcomes
}

// allUploadsClean reports whether every attachment either had no fetched
// data to begin with or uploaded successfully.
func allUploadsClean(outcomes []models.AttachmentOutcome) bool {
	for _, o := range outcomes {
		if o.HadData && !o.Uploaded {
			return false
		}
	}
	return true
}
