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

// Package webhook handles the service's HTTP transports: Pub/Sub push
// notifications signalling mailbox changes, and direct ingestion of raw
// encoded messages. Both feed the same decomposition pipeline the batch
// path uses.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"

	"github.com/mailvault/ingestion/internal/extract"
	"github.com/mailvault/ingestion/internal/pipeline"
	"github.com/mailvault/ingestion/internal/rawmail"
	"github.com/mailvault/ingestion/internal/warehouse"
)

// Sweeper runs one unread sweep. Implemented by pipeline.Runner.
type Sweeper interface {
	Run(ctx context.Context) (*pipeline.Result, error)
}

// Deduper filters already-seen notification ids. Implemented by
// dedup.Filter.
type Deduper interface {
	IsNew(ctx context.Context, notificationID string) (bool, error)
}

// WatchState records notification bookkeeping. Implemented by watch.Store.
type WatchState interface {
	SaveHistoryID(ctx context.Context, emailAddress string, historyID uint64) error
	TouchNotification(ctx context.Context, emailAddress string) error
}

// Handler processes Pub/Sub push notifications and raw message ingests.
type Handler struct {
	sweeper      Sweeper
	filter       Deduper
	watchState   WatchState // may be nil when no watch store is configured
	uploader     extract.Uploader
	warehouse    warehouse.Inserter
	maxBodyBytes int
}

// HandlerConfig holds dependencies for the webhook handler.
type HandlerConfig struct {
	Sweeper      Sweeper
	Filter       Deduper
	WatchState   WatchState
	Uploader     extract.Uploader
	Warehouse    warehouse.Inserter
	MaxBodyBytes int
}

// NewHandler creates a webhook handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		sweeper:      cfg.Sweeper,
		filter:       cfg.Filter,
		watchState:   cfg.WatchState,
		uploader:     cfg.Uploader,
		warehouse:    cfg.Warehouse,
		maxBodyBytes: cfg.MaxBodyBytes,
	}
}

// pushEnvelope is the Pub/Sub push delivery wrapper.
type pushEnvelope struct {
	Message struct {
		Data      string `json:"data"`
		MessageID string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// mailboxNotification is the payload the mail provider publishes on each
// mailbox change: base64 JSON inside the Pub/Sub message data.
type mailboxNotification struct {
	EmailAddress string `json:"emailAddress"`
	HistoryID    uint64 `json:"historyId"`
}

// ServeNotification handles Pub/Sub push requests.
//
// Pub/Sub delivers at-least-once and expects a fast 2xx ack; anything else
// triggers redelivery. The handler acks immediately and runs the unread
// sweep in the background — a notification only says "something changed",
// the sweep itself discovers what.
func (h *Handler) ServeNotification(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusOK)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		slog.Error("failed to read notification body", "error", err)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	var envelope pushEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		slog.Info("notification body not valid JSON, treating as probe",
			"body_len", len(body),
		)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	// Ack before processing — Pub/Sub redelivers slow responses
	w.WriteHeader(http.StatusNoContent)

	if envelope.Message.MessageID != "" && h.filter != nil {
		isNew, err := h.filter.IsNew(r.Context(), envelope.Message.MessageID)
		if err != nil {
			slog.Warn("dedup check failed, proceeding", "error", err)
		} else if !isNew {
			slog.Debug("skipping duplicate notification",
				"notification_id", envelope.Message.MessageID,
			)
			return
		}
	}

	var note mailboxNotification
	if data, err := rawmail.DecodeRaw(envelope.Message.Data); err == nil {
		_ = json.Unmarshal(data, &note)
	}

	slog.Info("mailbox change notification received",
		"notification_id", envelope.Message.MessageID,
		"mailbox", note.EmailAddress,
		"history_id", note.HistoryID,
	)

	go h.processNotification(context.Background(), note)
}

// processNotification records watch bookkeeping and sweeps unread messages.
// Failures here never reach the transport; the notification was already
// acked.
func (h *Handler) processNotification(ctx context.Context, note mailboxNotification) {
	if h.watchState != nil && note.EmailAddress != "" {
		if err := h.watchState.TouchNotification(ctx, note.EmailAddress); err != nil {
			slog.Warn("failed to touch watch state", "error", err)
		}
		if note.HistoryID > 0 {
			if err := h.watchState.SaveHistoryID(ctx, note.EmailAddress, note.HistoryID); err != nil {
				slog.Warn("failed to save history id", "error", err)
			}
		}
	}

	if _, err := h.sweeper.Run(ctx); err != nil {
		slog.Error("notification-triggered sweep failed", "error", err)
	}
}

// ingestRequest is the direct-ingest payload: a raw RFC 822 message,
// base64url-encoded.
type ingestRequest struct {
	RawEmail string `json:"raw_email"`
}

// ingestResponse summarises a successfully ingested message.
type ingestResponse struct {
	MessageID         string `json:"message_id"`
	AttachmentCount   int    `json:"attachment_count"`
	SuccessfulUploads int    `json:"successful_uploads"`
}

// ServeIngest handles direct ingestion of one raw encoded message.
// Malformed input maps to 400, internal failures to 500; this is the one
// path where an error becomes user-visible.
func (h *Handler) ServeIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "request body must be a JSON object")
		return
	}
	if req.RawEmail == "" {
		writeError(w, http.StatusBadRequest, "missing raw_email in request body")
		return
	}

	raw, err := rawmail.DecodeRaw(req.RawEmail)
	if err != nil {
		writeError(w, http.StatusBadRequest, "raw_email is not valid base64")
		return
	}

	msg, fetch, err := rawmail.Decompose(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "raw_email is not a parseable message")
		return
	}

	assembler := extract.NewAssembler(extract.AssemblerConfig{
		Fetch:        fetch,
		Uploader:     h.uploader,
		Mode:         extract.ModeUploadInline,
		MaxBodyBytes: h.maxBodyBytes,
	})
	rec := assembler.Assemble(r.Context(), msg)

	if err := h.warehouse.Insert(r.Context(), rec); err != nil {
		slog.Error("ingest: warehouse insert failed",
			"message_id", rec.MessageID,
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "failed to store message")
		return
	}

	slog.Info("message ingested",
		"message_id", rec.MessageID,
		"attachments", rec.AttachmentCount(),
		"uploaded", rec.SuccessfulUploads(),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(ingestResponse{
		MessageID:         rec.MessageID,
		AttachmentCount:   rec.AttachmentCount(),
		SuccessfulUploads: rec.SuccessfulUploads(),
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// Serve starts the webhook HTTP server on the given port.
// It binds the port immediately and signals readiness via the returned
// channel before starting to accept connections.
func Serve(ctx context.Context, port int, handler *Handler) (<-chan struct{}, error) {
	mux := http.NewServeMux()

	mux.HandleFunc("/notifications", handler.ServeNotification)
	mux.HandleFunc("/ingest", handler.ServeIngest)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy"}`))
	})

	server := &http.Server{
		Handler: mux,
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("bind webhook port %d: %w", port, err)
	}

	ready := make(chan struct{})

	go func() {
		<-ctx.Done()
		slog.Info("webhook server shutting down")
		server.Close()
	}()

	go func() {
		slog.Info("webhook server listening", "port", port)
		close(ready)
		if err := server.Serve(ln); err != http.ErrServerClosed {
			slog.Error("webhook server error", "error", err)
		}
	}()

	return ready, nil
}
