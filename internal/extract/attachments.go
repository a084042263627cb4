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
	"log/slog"

	"github.com/mailvault/ingestion/internal/mail"
	"github.com/mailvault/ingestion/internal/models"
)

// FetchFunc retrieves the raw bytes behind an attachment reference.
type FetchFunc func(ctx context.Context, messageID, attachmentID string) ([]byte, error)

// ExtractAttachments walks the part tree depth-first and fetches every
// attachment candidate: a part with a non-empty filename AND an attachment
// reference id. A candidate's children are still walked for candidates of
// their own.
//
// A fetch failure is recorded per-attachment (zero size, no bytes, error
// annotation) and never aborts extraction of siblings, so downstream
// counting stays accurate.
func ExtractAttachments(ctx context.Context, root *mail.Part, messageID string, fetch FetchFunc) []models.AttachmentRecord {
	if root == nil {
		return nil
	}
	var records []models.AttachmentRecord
	walkAttachments(ctx, root, messageID, fetch, &records, 0)
	return records
}

func walkAttachments(ctx context.Context, p *mail.Part, messageID string, fetch FetchFunc, records *[]models.AttachmentRecord, depth int) {
	if p == nil || depth > maxPartDepth {
		return
	}

	if p.Filename != "" && p.Body.AttachmentID != "" {
		*records = append(*records, fetchAttachment(ctx, p, messageID, fetch))
	}

	for _, child := range p.Parts {
		walkAttachments(ctx, child, messageID, fetch, records, depth+1)
	}
}

func fetchAttachment(ctx context.Context, p *mail.Part, messageID string, fetch FetchFunc) models.AttachmentRecord {
	rec := models.AttachmentRecord{
		FileID:   p.Body.AttachmentID,
		FileName: p.Filename,
		MimeType: p.MimeType,
	}
	if rec.MimeType == "" {
		rec.MimeType = "application/octet-stream"
	}

	data, err := fetch(ctx, messageID, p.Body.AttachmentID)
	if err != nil {
		slog.Warn("attachment fetch failed",
			"message_id", messageID,
			"attachment_id", p.Body.AttachmentID,
			"filename", p.Filename,
			"error", err,
		)
		rec.FetchError = err.Error()
		return rec
	}

	rec.RawBytes = data
	return rec
}
