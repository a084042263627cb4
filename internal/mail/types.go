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

// Package mail defines the provider-neutral message model and the narrow
// client surface the pipeline needs from a mail provider.
package mail

import (
	"encoding/base64"
	"strings"
	"time"
)

// Header is a single message header.
type Header struct {
	Name  string
	Value string
}

// PartBody is the payload of a leaf part: either inline encoded data or a
// provider-side attachment reference.
type PartBody struct {
	Data         string // base64url-encoded inline content, empty if absent
	AttachmentID string
	Size         int64
}

// Part is one node of a message's content tree. A part is usually either a
// container (Parts non-empty) or a leaf carrying a body payload or an
// attachment reference, but providers do not guarantee this strictly, so
// consumers must tolerate nodes that are both.
type Part struct {
	MimeType string
	Filename string
	Body     PartBody
	Parts    []*Part
}

// Message is a full message as returned by the provider.
type Message struct {
	ID           string
	ThreadID     string
	LabelIDs     []string
	Snippet      string
	SizeEstimate int64
	Headers      []Header
	Payload      *Part
}

// WatchInfo is the result of registering a push-notification watch.
type WatchInfo struct {
	HistoryID uint64
	Expires   time.Time
}

// DecodeData decodes base64url content with optional padding. Providers are
// inconsistent about padding, and some senders emit standard-alphabet
// base64 in the same field.
func DecodeData(data string) ([]byte, error) {
	data = strings.TrimSpace(data)
	if m := len(data) % 4; m != 0 {
		data += strings.Repeat("=", 4-m)
	}
	b, err := base64.URLEncoding.DecodeString(data)
	if err == nil {
		return b, nil
	}
	return base64.StdEncoding.DecodeString(data)
}
