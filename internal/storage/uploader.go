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

package storage

import (
	"context"
	"log/slog"
	"time"

	"github.com/mailvault/ingestion/internal/models"
)

// Uploader persists raw attachments and reports per-attachment outcomes.
// Upload failures are fully recovered locally; one bad attachment can never
// abort the rest of a batch.
type Uploader struct {
	store      ObjectStore
	maxNameLen int
	now        func() time.Time
}

// NewUploader creates an uploader writing through the given store.
func NewUploader(store ObjectStore, maxNameLen int) *Uploader {
	if maxNameLen <= 0 {
		maxNameLen = DefaultMaxFilenameLength
	}
	return &Uploader{store: store, maxNameLen: maxNameLen, now: time.Now}
}

// Upload attempts to store one attachment's bytes and returns its outcome.
// Size accounting is computed before the attempt so it survives failures.
// Records whose fetch already failed (no bytes) become failed outcomes
// without touching the store.
func (u *Uploader) Upload(ctx context.Context, messageID string, att models.AttachmentRecord) models.AttachmentOutcome {
	out := models.AttachmentOutcome{
		FileName:  att.FileName,
		MimeType:  att.MimeType,
		SizeBytes: int64(len(att.RawBytes)),
		HadData:   att.RawBytes != nil,
	}

	if att.RawBytes == nil {
		out.ErrorMessage = att.FetchError
		return out
	}

	key := ObjectKey(u.now(), messageID, att.FileName, u.maxNameLen)

	uri, err := u.store.Put(ctx, key, att.RawBytes, att.MimeType)
	if err != nil {
		slog.Warn("attachment upload failed",
			"message_id", messageID,
			"key", key,
			"error", err,
		)
		out.ErrorMessage = err.Error()
		return out
	}

	out.StorageURI = uri
	out.Uploaded = true
	return out
}
