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

package warehouse

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/mailvault/ingestion/internal/models"
)

func TestRowFromRecord(t *testing.T) {
	rec := &models.EmailRecord{
		MessageID:       "m1",
		ThreadID:        "t1",
		Subject:         "Q2 report",
		Sender:          "alice@example.com",
		Recipient:       "bob@example.com",
		DateReceivedRaw: "Mon, 02 Jan 2006 15:04:05 -0700",
		DateReceived:    "2006-01-02T15:04:05-07:00",
		BodyText:        "Hello",
		LabelIDs:        []string{"INBOX", "UNREAD"},
		Snippet:         "Hello",
		SizeEstimate:    4321,
		ProcessedAt:     time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC),
		Attachments: []models.AttachmentOutcome{
			{
				FileName:   "report.csv",
				MimeType:   "text/csv",
				SizeBytes:  10,
				StorageURI: "gs://b/2026-08-30/m1/report.csv",
				Uploaded:   true,
			},
			{
				FileName:     "broken.bin",
				MimeType:     "application/octet-stream",
				SizeBytes:    2048,
				ErrorMessage: "bucket unavailable",
				HadData:      true,
			},
		},
	}

	row, err := RowFromRecord(rec)
	if err != nil {
		t.Fatalf("RowFromRecord: %v", err)
	}

	if row.MessageID != "m1" || row.ThreadID != "t1" {
		t.Errorf("ids = %q/%q", row.MessageID, row.ThreadID)
	}
	if row.DateReceived != rec.DateReceivedRaw {
		t.Errorf("date_received must carry the raw header, got %q", row.DateReceived)
	}
	if row.ParsedDate != rec.DateReceived {
		t.Errorf("parsed_date = %q", row.ParsedDate)
	}
	if row.AttachmentCount != 2 || row.SuccessfulUploads != 1 {
		t.Errorf("counts = %d/%d, want 2/1", row.AttachmentCount, row.SuccessfulUploads)
	}
	if row.TotalAttachmentSize != 2058 {
		t.Errorf("total_attachment_size = %d, want 2058 (failed uploads still counted)", row.TotalAttachmentSize)
	}

	var labels []string
	if err := json.Unmarshal([]byte(row.LabelIDs), &labels); err != nil {
		t.Fatalf("label_ids not valid JSON: %v", err)
	}
	if len(labels) != 2 || labels[0] != "INBOX" {
		t.Errorf("labels = %v", labels)
	}

	var summary []map[string]any
	if err := json.Unmarshal([]byte(row.AttachmentSummary), &summary); err != nil {
		t.Fatalf("attachment_summary not valid JSON: %v", err)
	}
	if len(summary) != 2 {
		t.Fatalf("summary entries = %d, want 2", len(summary))
	}
	if summary[0]["gcs_url"] != "gs://b/2026-08-30/m1/report.csv" {
		t.Errorf("first gcs_url = %v", summary[0]["gcs_url"])
	}
	if summary[1]["gcs_url"] != nil {
		t.Errorf("failed upload gcs_url = %v, want null", summary[1]["gcs_url"])
	}
	if summary[1]["uploaded_successfully"] != false {
		t.Errorf("uploaded_successfully = %v", summary[1]["uploaded_successfully"])
	}
	if summary[1]["size"] != float64(2048) {
		t.Errorf("failed upload size = %v, want 2048", summary[1]["size"])
	}
}

func TestRowFromRecord_NoLabelsNoAttachments(t *testing.T) {
	row, err := RowFromRecord(&models.EmailRecord{MessageID: "m2"})
	if err != nil {
		t.Fatalf("RowFromRecord: %v", err)
	}

	if row.LabelIDs != "[]" {
		t.Errorf("label_ids = %q, want %q", row.LabelIDs, "[]")
	}
	if row.AttachmentSummary != "[]" {
		t.Errorf("attachment_summary = %q, want %q", row.AttachmentSummary, "[]")
	}
	if row.AttachmentCount != 0 || row.TotalAttachmentSize != 0 {
		t.Errorf("counts = %d/%d", row.AttachmentCount, row.TotalAttachmentSize)
	}
}
