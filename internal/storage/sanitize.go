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

// Package storage persists attachment binaries to an object store and
// derives deterministic storage keys for them.
package storage

import (
	"strings"
	"time"
)

// UnnamedAttachment is the placeholder for attachments without a filename.
const UnnamedAttachment = "unnamed_attachment"

// DefaultMaxFilenameLength bounds sanitized filenames.
const DefaultMaxFilenameLength = 200

var unsafeReplacer = strings.NewReplacer(
	"<", "_", ">", "_", ":", "_", `"`, "_",
	"/", "_", `\`, "_", "|", "_", "?", "_", "*", "_",
)

// SanitizeFilename makes a display filename safe for use as a storage key
// segment. Empty input yields UnnamedAttachment; unsafe characters become
// underscores; names longer than maxLength are truncated preserving the
// final extension. Total over all inputs, and idempotent.
func SanitizeFilename(name string, maxLength int) string {
	if maxLength <= 0 {
		maxLength = DefaultMaxFilenameLength
	}
	if name == "" {
		return UnnamedAttachment
	}

	name = unsafeReplacer.Replace(name)

	runes := []rune(name)
	if len(runes) <= maxLength {
		return name
	}

	ext := ""
	if i := strings.LastIndex(name, "."); i > 0 {
		ext = name[i:]
	}
	extRunes := []rune(ext)
	if len(extRunes) == 0 || len(extRunes) >= maxLength {
		return string(runes[:maxLength])
	}
	return string(runes[:maxLength-len(extRunes)]) + ext
}

// ObjectKey builds the storage key for one attachment:
// {YYYY-MM-DD}/{messageId}/{sanitizedFileName}.
//
// The message id segment avoids collisions between same-named attachments on
// different messages within the same day. Two same-named attachments on one
// message share a key; the last write wins at the storage layer.
func ObjectKey(now time.Time, messageID, filename string, maxNameLength int) string {
	return now.Format("2006-01-02") + "/" + messageID + "/" + SanitizeFilename(filename, maxNameLength)
}
