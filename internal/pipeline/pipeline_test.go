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

package pipeline

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/mailvault/ingestion/internal/mail"
	"github.com/mailvault/ingestion/internal/models"
)

type fakeMail struct {
	listErr     error
	messages    map[string]*mail.Message
	attachments map[string][]byte
	markReadErr error
	marked      []string
}

func (f *fakeMail) ListUnread(_ context.Context, _ int64) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var ids []string
	for id := range f.messages {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeMail) GetFullMessage(_ context.Context, id string) (*mail.Message, error) {
	msg, ok := f.messages[id]
	if !ok {
		return nil, &mail.ProviderError{Op: "get message", Err: errors.New("not found")}
	}
	return msg, nil
}

func (f *fakeMail) GetAttachment(_ context.Context, messageID, attachmentID string) ([]byte, error) {
	data, ok := f.attachments[attachmentID]
	if !ok {
		return nil, &mail.AttachmentFetchError{
			MessageID:    messageID,
			AttachmentID: attachmentID,
			Err:          errors.New("expired"),
		}
	}
	return data, nil
}

func (f *fakeMail) MarkRead(_ context.Context, id string) error {
	if f.markReadErr != nil {
		return f.markReadErr
	}
	f.marked = append(f.marked, id)
	return nil
}

type fakeUploader struct {
	failNames map[string]bool
	uploads   []string
}

func (u *fakeUploader) Upload(_ context.Context, messageID string, att models.AttachmentRecord) models.AttachmentOutcome {
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
	if u.failNames[att.FileName] {
		out.ErrorMessage = "simulated store failure"
		return out
	}
	u.uploads = append(u.uploads, att.FileName)
	out.StorageURI = "gs://test/" + messageID + "/" + att.FileName
	out.Uploaded = true
	return out
}

type fakeInserter struct {
	failIDs  map[string]bool
	inserted []*models.EmailRecord
}

func (i *fakeInserter) Insert(_ context.Context, rec *models.EmailRecord) error {
	if i.failIDs[rec.MessageID] {
		return errors.New("table not found")
	}
	i.inserted = append(i.inserted, rec)
	return nil
}

func testMessage(id string, parts ...*mail.Part) *mail.Message {
	return &mail.Message{
		ID:       id,
		ThreadID: "t-" + id,
		LabelIDs: []string{"INBOX", "UNREAD"},
		Headers: []mail.Header{
			{Name: "Subject", Value: "hello"},
			{Name: "From", Value: "alice@example.com"},
			{Name: "To", Value: "bob@example.com"},
			{Name: "Date", Value: "Mon, 02 Jan 2006 15:04:05 -0700"},
		},
		Payload: &mail.Part{MimeType: "multipart/mixed", Parts: parts},
	}
}

func textPart(s string) *mail.Part {
	return &mail.Part{
		MimeType: "text/plain",
		Body:     mail.PartBody{Data: base64.URLEncoding.EncodeToString([]byte(s))},
	}
}

func filePart(name, attID, mimeType string) *mail.Part {
	return &mail.Part{MimeType: mimeType, Filename: name, Body: mail.PartBody{AttachmentID: attID}}
}

func TestRun_SingleMessageRoundTrip(t *testing.T) {
	fm := &fakeMail{
		messages: map[string]*mail.Message{
			"m1": testMessage("m1", textPart("Hello"), filePart("notes.txt", "att-1", "text/plain")),
		},
		attachments: map[string][]byte{"att-1": []byte("0123456789")},
	}
	up := &fakeUploader{}
	ins := &fakeInserter{}

	r := NewRunner(RunnerConfig{Mail: fm, Uploader: up, Warehouse: ins})
	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.Found != 1 || res.Stored != 1 || res.MarkedRead != 1 || res.Failed != 0 {
		t.Errorf("result = %+v", res)
	}
	if res.Attachments != 1 || res.Uploaded != 1 {
		t.Errorf("attachment accounting = %d/%d", res.Attachments, res.Uploaded)
	}

	if len(ins.inserted) != 1 {
		t.Fatalf("inserted %d records", len(ins.inserted))
	}
	rec := ins.inserted[0]
	if rec.BodyText != "Hello" {
		t.Errorf("BodyText = %q", rec.BodyText)
	}
	if rec.AttachmentCount() != 1 || rec.SuccessfulUploads() != 1 {
		t.Errorf("counts = %d/%d", rec.AttachmentCount(), rec.SuccessfulUploads())
	}
	if rec.TotalAttachmentSize() != 10 {
		t.Errorf("TotalAttachmentSize = %d, want 10", rec.TotalAttachmentSize())
	}
	if len(rec.RawAttachments) != 0 {
		t.Error("raw bytes must be discarded before insert")
	}

	if len(fm.marked) != 1 || fm.marked[0] != "m1" {
		t.Errorf("marked = %v", fm.marked)
	}
}

func TestRun_UploadFailureLeavesUnread(t *testing.T) {
	fm := &fakeMail{
		messages: map[string]*mail.Message{
			"m1": testMessage("m1", textPart("Hello"), filePart("notes.txt", "att-1", "text/plain")),
		},
		attachments: map[string][]byte{"att-1": []byte("0123456789")},
	}
	up := &fakeUploader{failNames: map[string]bool{"notes.txt": true}}
	ins := &fakeInserter{}

	r := NewRunner(RunnerConfig{Mail: fm, Uploader: up, Warehouse: ins})
	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// The record is still stored, with the failure reflected in its
	// outcomes, but the message stays unread for the next sweep.
	if res.Stored != 1 || res.MarkedRead != 0 {
		t.Errorf("result = %+v", res)
	}
	if len(ins.inserted) != 1 {
		t.Fatalf("inserted %d records", len(ins.inserted))
	}
	rec := ins.inserted[0]
	if rec.SuccessfulUploads() != 0 || rec.TotalAttachmentSize() != 10 {
		t.Errorf("outcome accounting = %d uploads, %d bytes", rec.SuccessfulUploads(), rec.TotalAttachmentSize())
	}
	if len(fm.marked) != 0 {
		t.Errorf("marked = %v, want none", fm.marked)
	}
}

func TestRun_FetchFailedAttachmentStillMarksRead(t *testing.T) {
	// An attachment whose bytes could never be fetched does not block
	// mark-read: it had no data to protect.
	fm := &fakeMail{
		messages: map[string]*mail.Message{
			"m1": testMessage("m1", textPart("Hello"), filePart("gone.pdf", "att-missing", "application/pdf")),
		},
	}
	up := &fakeUploader{}
	ins := &fakeInserter{}

	r := NewRunner(RunnerConfig{Mail: fm, Uploader: up, Warehouse: ins})
	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.Stored != 1 || res.MarkedRead != 1 {
		t.Errorf("result = %+v", res)
	}
	rec := ins.inserted[0]
	if rec.AttachmentCount() != 1 || rec.SuccessfulUploads() != 0 {
		t.Errorf("counts = %d/%d", rec.AttachmentCount(), rec.SuccessfulUploads())
	}
}

func TestRun_InsertFailureIsolatedPerMessage(t *testing.T) {
	fm := &fakeMail{
		messages: map[string]*mail.Message{
			"m1": testMessage("m1", textPart("one")),
			"m2": testMessage("m2", textPart("two")),
			"m3": testMessage("m3", textPart("three")),
		},
	}
	up := &fakeUploader{}
	ins := &fakeInserter{failIDs: map[string]bool{"m2": true}}

	r := NewRunner(RunnerConfig{Mail: fm, Uploader: up, Warehouse: ins})
	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.Found != 3 || res.Stored != 2 || res.Failed != 1 || res.MarkedRead != 2 {
		t.Errorf("result = %+v", res)
	}
	for _, id := range fm.marked {
		if id == "m2" {
			t.Error("failed message m2 must stay unread")
		}
	}
}

func TestRun_ListFailureIsFatal(t *testing.T) {
	fm := &fakeMail{listErr: &mail.ProviderError{Op: "list", Err: errors.New("auth expired")}}

	r := NewRunner(RunnerConfig{Mail: fm, Uploader: &fakeUploader{}, Warehouse: &fakeInserter{}})
	if _, err := r.Run(context.Background()); err == nil {
		t.Fatal("expected error from listing failure")
	}
}

func TestRun_MessageFetchFailureSkips(t *testing.T) {
	fm := &fakeMail{
		messages: map[string]*mail.Message{
			"m1": testMessage("m1", textPart("only")),
		},
	}
	// ListUnread returns ids from messages; add a phantom id by overriding
	// the list via listErr-free custom: simulate with a message removed
	// after listing by using a list wrapper.
	missing := &listOverride{fakeMail: fm, ids: []string{"m1", "m-gone"}}

	r := NewRunner(RunnerConfig{Mail: missing, Uploader: &fakeUploader{}, Warehouse: &fakeInserter{}})
	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.Found != 2 || res.Stored != 1 || res.Failed != 1 {
		t.Errorf("result = %+v", res)
	}
}

type listOverride struct {
	*fakeMail
	ids []string
}

func (l *listOverride) ListUnread(_ context.Context, _ int64) ([]string, error) {
	return l.ids, nil
}
