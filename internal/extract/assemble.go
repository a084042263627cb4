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

package extract

import (
	"context"
	"net/textproto"
	"time"
	"unicode/utf8"

	"github.com/mailvault/ingestion/internal/mail"
	"github.com/mailvault/ingestion/internal/models"
)

// Mode selects how an assembled record carries its attachments.
type Mode int

const (
	// ModeRawAttachments leaves fetched bytes on the record for a separate
	// upload step (the batch orchestrator's Uploading state).
	ModeRawAttachments Mode = iota

	// ModeUploadInline uploads during assembly; the record carries final
	// outcomes and never holds raw bytes.
	ModeUploadInline
)

// Uploader converts one raw attachment into an upload outcome.
type Uploader interface {
	Upload(ctx context.Context, messageID string, att models.AttachmentRecord) models.AttachmentOutcome
}

// Assembler builds normalized EmailRecords from provider messages. It is
// pure composition over the body extractor, attachment extractor, and date
// normalizer; the only network I/O is what those already perform.
type Assembler struct {
	fetch        FetchFunc
	uploader     Uploader
	mode         Mode
	maxBodyBytes int
	now          func() time.Time
}

// AssemblerConfig holds dependencies for the assembler. Uploader is required
// only for ModeUploadInline.
type AssemblerConfig struct {
	Fetch        FetchFunc
	Uploader     Uploader
	Mode         Mode
	MaxBodyBytes int
}

// NewAssembler creates an assembler.
func NewAssembler(cfg AssemblerConfig) *Assembler {
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1000000
	}
	return &Assembler{
		fetch:        cfg.Fetch,
		uploader:     cfg.Uploader,
		mode:         cfg.Mode,
		maxBodyBytes: maxBody,
		now:          time.Now,
	}
}

// Assemble builds the EmailRecord for one message. Depending on the mode the
// record carries either raw attachment bytes or final upload outcomes,
// never both.
func (a *Assembler) Assemble(ctx context.Context, msg *mail.Message) *models.EmailRecord {
	headers := headerLookup(msg.Headers)

	rec := &models.EmailRecord{
		MessageID:       msg.ID,
		ThreadID:        msg.ThreadID,
		Subject:         headers["Subject"],
		Sender:          headers["From"],
		Recipient:       headers["To"],
		DateReceivedRaw: headers["Date"],
		DateReceived:    NormalizeDate(headers["Date"]),
		BodyText:        truncate(ExtractBody(msg.Payload), a.maxBodyBytes),
		LabelIDs:        msg.LabelIDs,
		Snippet:         msg.Snippet,
		SizeEstimate:    msg.SizeEstimate,
		ProcessedAt:     a.now().UTC(),
	}

	raw := ExtractAttachments(ctx, msg.Payload, msg.ID, a.fetch)

	switch a.mode {
	case ModeUploadInline:
		for _, att := range raw {
			rec.Attachments = append(rec.Attachments, a.uploader.Upload(ctx, msg.ID, att))
		}
	default:
		rec.RawAttachments = raw
	}

	return rec
}

// headerLookup builds a name → value map; the first occurrence wins per
// header name.
func headerLookup(headers []mail.Header) map[string]string {
	out := make(map[string]string, len(headers))
	for _, h := range headers {
		name := textproto.CanonicalMIMEHeaderKey(h.Name)
		if _, ok := out[name]; !ok {
			out[name] = h.Value
		}
	}
	return out
}

// truncate caps s at max bytes without splitting a rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
