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

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// GmailClient adapts *gmail.Service to the Client interface.
type GmailClient struct {
	svc    *gmail.Service
	userID string
}

// NewGmailClient wraps an authorized Gmail service for a single mailbox.
// userID is usually "me".
func NewGmailClient(svc *gmail.Service, userID string) *GmailClient {
	return &GmailClient{svc: svc, userID: userID}
}

// NewService builds a Gmail service from an OAuth2 token source.
func NewService(ctx context.Context, ts oauth2.TokenSource) (*gmail.Service, error) {
	svc, err := gmail.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return svc, nil
}

// ListUnread returns ids of unread messages bounded by maxResults.
func (c *GmailClient) ListUnread(ctx context.Context, maxResults int64) ([]string, error) {
	res, err := c.svc.Users.Messages.List(c.userID).
		Q("is:unread").
		MaxResults(maxResults).
		Context(ctx).Do()
	if err != nil {
		return nil, &ProviderError{Op: "list unread", Err: err}
	}

	ids := make([]string, 0, len(res.Messages))
	for _, m := range res.Messages {
		ids = append(ids, m.Id)
	}
	return ids, nil
}

// GetFullMessage retrieves a message in full format and converts its part
// tree to the provider-neutral shape.
func (c *GmailClient) GetFullMessage(ctx context.Context, id string) (*Message, error) {
	msg, err := c.svc.Users.Messages.Get(c.userID, id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, &ProviderError{Op: "get message " + id, Err: err}
	}

	m := &Message{
		ID:           msg.Id,
		ThreadID:     msg.ThreadId,
		LabelIDs:     msg.LabelIds,
		Snippet:      msg.Snippet,
		SizeEstimate: msg.SizeEstimate,
		Payload:      convertPart(msg.Payload),
	}
	if msg.Payload != nil {
		for _, h := range msg.Payload.Headers {
			m.Headers = append(m.Headers, Header{Name: h.Name, Value: h.Value})
		}
	}
	return m, nil
}

// GetAttachment fetches and decodes the bytes behind an attachment reference.
func (c *GmailClient) GetAttachment(ctx context.Context, messageID, attachmentID string) ([]byte, error) {
	att, err := c.svc.Users.Messages.Attachments.Get(c.userID, messageID, attachmentID).Context(ctx).Do()
	if err != nil {
		return nil, &AttachmentFetchError{MessageID: messageID, AttachmentID: attachmentID, Err: err}
	}

	data, err := DecodeData(att.Data)
	if err != nil {
		return nil, &AttachmentFetchError{MessageID: messageID, AttachmentID: attachmentID, Err: err}
	}
	return data, nil
}

// MarkRead removes the UNREAD label from a message.
func (c *GmailClient) MarkRead(ctx context.Context, id string) error {
	_, err := c.svc.Users.Messages.Modify(c.userID, id, &gmail.ModifyMessageRequest{
		RemoveLabelIds: []string{"UNREAD"},
	}).Context(ctx).Do()
	if err != nil {
		return &ProviderError{Op: "mark read " + id, Err: err}
	}
	return nil
}

// Watch registers a push-notification watch on the inbox against the given
// Pub/Sub topic.
func (c *GmailClient) Watch(ctx context.Context, topic string) (*WatchInfo, error) {
	res, err := c.svc.Users.Watch(c.userID, &gmail.WatchRequest{
		LabelIds:  []string{"INBOX"},
		TopicName: topic,
	}).Context(ctx).Do()
	if err != nil {
		return nil, &ProviderError{Op: "watch", Err: err}
	}
	return &WatchInfo{
		HistoryID: res.HistoryId,
		Expires:   time.UnixMilli(res.Expiration).UTC(),
	}, nil
}

// Stop cancels the active push-notification watch.
func (c *GmailClient) Stop(ctx context.Context) error {
	if err := c.svc.Users.Stop(c.userID).Context(ctx).Do(); err != nil {
		return &ProviderError{Op: "stop watch", Err: err}
	}
	return nil
}

func convertPart(p *gmail.MessagePart) *Part {
	if p == nil {
		return nil
	}
	out := &Part{
		MimeType: p.MimeType,
		Filename: p.Filename,
	}
	if p.Body != nil {
		out.Body = PartBody{
			Data:         p.Body.Data,
			AttachmentID: p.Body.AttachmentId,
			Size:         p.Body.Size,
		}
	}
	for _, child := range p.Parts {
		out.Parts = append(out.Parts, convertPart(child))
	}
	return out
}
