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

// Package warehouse persists normalized email records to an analytical
// data warehouse as flat rows.
package warehouse

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mailvault/ingestion/internal/models"
)

// Inserter writes one finished record to the warehouse. Insert failures are
// recovered at the message granularity (the message stays unread).
type Inserter interface {
	Insert(ctx context.Context, rec *models.EmailRecord) error
}

// InsertError wraps a row-level insert failure.
type InsertError struct {
	MessageID string
	Err       error
}

func (e *InsertError) Error() string {
	return "warehouse insert " + e.MessageID + ": " + e.Err.Error()
}

func (e *InsertError) Unwrap() error { return e.Err }

// Row is the flat persisted shape of one EmailRecord. LabelIDs and the
// attachment summary are JSON-serialized sub-documents per the table
// contract.
type Row struct {
	MessageID           string    `bigquery:"message_id" json:"message_id"`
	ThreadID            string    `bigquery:"thread_id" json:"thread_id"`
	Subject             string    `bigquery:"subject" json:"subject"`
	Sender              string    `bigquery:"sender" json:"sender"`
	Recipient           string    `bigquery:"recipient" json:"recipient"`
	DateReceived        string    `bigquery:"date_received" json:"date_received"`
	ParsedDate          string    `bigquery:"parsed_date" json:"parsed_date"`
	BodyText            string    `bigquery:"body_text" json:"body_text"`
	LabelIDs            string    `bigquery:"label_ids" json:"label_ids"`
	Snippet             string    `bigquery:"snippet" json:"snippet"`
	MessageSize         int64     `bigquery:"message_size" json:"message_size"`
	AttachmentCount     int       `bigquery:"attachment_count" json:"attachment_count"`
	AttachmentSummary   string    `bigquery:"attachment_summary" json:"attachment_summary"`
	TotalAttachmentSize int64     `bigquery:"total_attachment_size" json:"total_attachment_size"`
	SuccessfulUploads   int       `bigquery:"successful_uploads" json:"successful_uploads"`
	ProcessedAt         time.Time `bigquery:"processed_at" json:"processed_at"`
}

// attachmentSummary is the wire shape of one outcome inside the
// attachment_summary column. A failed upload serializes gcs_url as null.
type attachmentSummary struct {
	Filename             string  `json:"filename"`
	MimeType             string  `json:"mime_type"`
	Size                 int64   `json:"size"`
	GCSURL               *string `json:"gcs_url"`
	UploadedSuccessfully bool    `json:"uploaded_successfully"`
}

// RowFromRecord flattens an EmailRecord into its persisted shape.
func RowFromRecord(rec *models.EmailRecord) (*Row, error) {
	labels := rec.LabelIDs
	if labels == nil {
		labels = []string{}
	}
	labelJSON, err := json.Marshal(labels)
	if err != nil {
		return nil, fmt.Errorf("serialize label ids: %w", err)
	}

	summary := make([]attachmentSummary, 0, len(rec.Attachments))
	for _, a := range rec.Attachments {
		s := attachmentSummary{
			Filename:             a.FileName,
			MimeType:             a.MimeType,
			Size:                 a.SizeBytes,
			UploadedSuccessfully: a.Uploaded,
		}
		if a.Uploaded {
			uri := a.StorageURI
			s.GCSURL = &uri
		}
		summary = append(summary, s)
	}
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return nil, fmt.Errorf("serialize attachment summary: %w", err)
	}

	return &Row{
		MessageID:           rec.MessageID,
		ThreadID:            rec.ThreadID,
		Subject:             rec.Subject,
		Sender:              rec.Sender,
		Recipient:           rec.Recipient,
		DateReceived:        rec.DateReceivedRaw,
		ParsedDate:          rec.DateReceived,
		BodyText:            rec.BodyText,
		LabelIDs:            string(labelJSON),
		Snippet:             rec.Snippet,
		MessageSize:         rec.SizeEstimate,
		AttachmentCount:     rec.AttachmentCount(),
		AttachmentSummary:   string(summaryJSON),
		TotalAttachmentSize: rec.TotalAttachmentSize(),
		SuccessfulUploads:   rec.SuccessfulUploads(),
		ProcessedAt:         rec.ProcessedAt,
	}, nil
}
