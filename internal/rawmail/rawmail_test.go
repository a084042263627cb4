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

package rawmail

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/mailvault/ingestion/internal/extract"
)

const sampleRaw = "From: alice@example.com\r\n" +
	"To: bob@example.com\r\n" +
	"Subject: Quarterly report\r\n" +
	"Date: Mon, 02 Jan 2006 15:04:05 -0700\r\n" +
	"Message-ID: <abc123@example.com>\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/mixed; boundary=xyz\r\n" +
	"\r\n" +
	"--xyz\r\n" +
	"Content-Type: text/plain\r\n" +
	"\r\n" +
	"Hello from the raw path\r\n" +
	"--xyz\r\n" +
	"Content-Type: text/csv; name=\"report.csv\"\r\n" +
	"Content-Disposition: attachment; filename=\"report.csv\"\r\n" +
	"Content-Transfer-Encoding: base64\r\n" +
	"\r\n" +
	"MSwyLDM=\r\n" +
	"--xyz--\r\n"

func TestDecompose(t *testing.T) {
	msg, fetch, err := Decompose([]byte(sampleRaw))
	if err != nil {
		t.Fatalf("Decompose: %v", err)
	}

	if msg.ID != "abc123@example.com" {
		t.Errorf("message id = %q", msg.ID)
	}
	if msg.SizeEstimate != int64(len(sampleRaw)) {
		t.Errorf("SizeEstimate = %d", msg.SizeEstimate)
	}

	headers := make(map[string]string)
	for _, h := range msg.Headers {
		headers[strings.ToLower(h.Name)] = h.Value
	}
	if headers["subject"] != "Quarterly report" {
		t.Errorf("subject header = %q", headers["subject"])
	}
	if headers["from"] != "alice@example.com" {
		t.Errorf("from header = %q", headers["from"])
	}

	if msg.Payload == nil || len(msg.Payload.Parts) != 2 {
		t.Fatalf("payload parts = %+v", msg.Payload)
	}

	text := msg.Payload.Parts[0]
	if text.MimeType != "text/plain" || text.Filename != "" {
		t.Errorf("first part = %q/%q", text.MimeType, text.Filename)
	}

	att := msg.Payload.Parts[1]
	if att.Filename != "report.csv" {
		t.Errorf("attachment filename = %q", att.Filename)
	}
	if att.Body.AttachmentID == "" {
		t.Fatal("attachment part has no synthesized reference id")
	}

	// The fetch function resolves the captured, transfer-decoded bytes.
	data, err := fetch(context.Background(), msg.ID, att.Body.AttachmentID)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(data) != "1,2,3" {
		t.Errorf("attachment bytes = %q, want %q", data, "1,2,3")
	}
}

func TestDecompose_FeedsAssembler(t *testing.T) {
	msg, fetch, err := Decompose([]byte(sampleRaw))
	if err != nil {
		t.Fatalf("Decompose: %v", err)
	}

	a := extract.NewAssembler(extract.AssemblerConfig{Fetch: fetch})
	rec := a.Assemble(context.Background(), msg)

	if rec.Subject != "Quarterly report" || rec.Sender != "alice@example.com" {
		t.Errorf("record headers = %q/%q", rec.Subject, rec.Sender)
	}
	if rec.BodyText != "Hello from the raw path" {
		t.Errorf("BodyText = %q", rec.BodyText)
	}
	if len(rec.RawAttachments) != 1 || string(rec.RawAttachments[0].RawBytes) != "1,2,3" {
		t.Errorf("raw attachments = %+v", rec.RawAttachments)
	}
}

func TestDecompose_NoMessageIDFallsBackToUUID(t *testing.T) {
	raw := "From: x@example.com\r\nContent-Type: text/plain\r\n\r\nhi\r\n"

	msg, _, err := Decompose([]byte(raw))
	if err != nil {
		t.Fatalf("Decompose: %v", err)
	}
	if msg.ID == "" {
		t.Error("expected generated message id")
	}
}

func TestDecompose_Malformed(t *testing.T) {
	if _, _, err := Decompose([]byte("this is not a mime message")); err == nil {
		t.Error("expected parse error for header-less input")
	}
}

func TestDecodeRaw(t *testing.T) {
	// Unpadded base64url round-trips.
	enc := strings.TrimRight(base64.URLEncoding.EncodeToString([]byte(sampleRaw)), "=")
	got, err := DecodeRaw(enc)
	if err != nil {
		t.Fatalf("DecodeRaw: %v", err)
	}
	if string(got) != sampleRaw {
		t.Error("round trip mismatch")
	}

	if _, err := DecodeRaw(""); err == nil {
		t.Error("expected error for empty input")
	}
	if _, err := DecodeRaw("!!!!"); err == nil {
		t.Error("expected error for invalid base64")
	}
}
