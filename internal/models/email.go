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

// Package models defines the data structures shared across the ingestion service.
package models

import "time"

// AttachmentRecord is a raw attachment pulled from the mail provider.
// RawBytes is nil when the fetch failed; FetchError carries the reason.
// The uploader consumes the bytes and replaces the record with an
// AttachmentOutcome before anything is persisted.
type AttachmentRecord struct {
	FileID     string
	FileName   string
	MimeType   string
	RawBytes   []byte
	FetchError string
}

// AttachmentOutcome describes one attachment after its upload attempt.
// Uploaded is true iff StorageURI is non-empty.
type AttachmentOutcome struct {
	FileName     string `json:"filename"`
	MimeType     string `json:"mime_type"`
	SizeBytes    int64  `json:"size"`
	StorageURI   string `json:"gcs_url"`
	Uploaded     bool   `json:"uploaded_successfully"`
	ErrorMessage string `json:"-"`

	// HadData records whether any bytes were fetched for this attachment.
	// The orchestrator's mark-read decision skips attachments that never
	// had data.
	HadData bool `json:"-"`
}

// EmailRecord is the normalized representation of one processed message.
// It is built once by the assembler, immutable afterwards, and written
// exactly once to the warehouse.
type EmailRecord struct {
	MessageID       string
	ThreadID        string
	Subject         string
	Sender          string
	Recipient       string
	DateReceivedRaw string
	DateReceived    string // RFC 3339
	BodyText        string
	LabelIDs        []string
	Snippet         string
	SizeEstimate    int64
	ProcessedAt     time.Time

	// Exactly one of these is populated, depending on the assembler mode.
	// RawAttachments carries provider bytes destined for the uploader;
	// Attachments carries final upload outcomes.
	RawAttachments []AttachmentRecord
	Attachments    []AttachmentOutcome
}

// AttachmentCount returns the number of attachment outcomes.
func (r *EmailRecord) AttachmentCount() int {
	return len(r.Attachments)
}

// SuccessfulUploads counts outcomes that reached the object store.
func (r *EmailRecord) SuccessfulUploads() int {
	n := 0
	for _, a := range r.Attachments {
		if a.Uploaded {
			n++
		}
	}
	return n
}

// TotalAttachmentSize sums the fetched sizes across all outcomes,
// including ones whose upload failed.
func (r *EmailRecord) TotalAttachmentSize() int64 {
	var total int64
	for _, a := range r.Attachments {
		total += a.SizeBytes
	}
	return total
}
