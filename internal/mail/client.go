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

package mail

import "context"

// Client is the narrow mail-provider surface required by the pipeline.
type Client interface {
	// ListUnread returns the ids of unread messages, newest first, bounded
	// by maxResults. An empty slice is a valid non-error result.
	ListUnread(ctx context.Context, maxResults int64) ([]string, error)

	// GetFullMessage retrieves one message with its complete part tree.
	GetFullMessage(ctx context.Context, id string) (*Message, error)

	// GetAttachment fetches the raw bytes behind an attachment reference.
	GetAttachment(ctx context.Context, messageID, attachmentID string) ([]byte, error)

	// MarkRead clears the unread state of a message.
	MarkRead(ctx context.Context, id string) error
}

// ProviderError wraps a transport or auth failure from the mail provider.
// Listing-stage provider errors are fatal to a batch invocation.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return "mail provider: " + e.Op + ": " + e.Err.Error()
}

func (e *ProviderError) Unwrap() error { return e.Err }

// AttachmentFetchError wraps a failure to retrieve one attachment's bytes.
// It is always recovered at the attachment granularity.
type AttachmentFetchError struct {
	MessageID    string
	AttachmentID string
	Err          error
}

func (e *AttachmentFetchError) Error() string {
	return "fetch attachment " + e.AttachmentID + " of message " + e.MessageID + ": " + e.Err.Error()
}

func (e *AttachmentFetchError) Unwrap() error { return e.Err }
