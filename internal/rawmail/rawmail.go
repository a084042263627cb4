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

// Package rawmail decomposes raw RFC 822 messages into the same part-tree
// shape the provider path uses, so one assembler serves both transports.
package rawmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"strconv"
	"strings"

	gomessage "github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/google/uuid"

	"github.com/mailvault/ingestion/internal/extract"
	"github.com/mailvault/ingestion/internal/mail"
)

// Decompose parses a raw message into a provider-neutral Message plus a
// fetch function resolving the synthesized attachment references to the
// bytes captured during parsing. Attachment parts get ids of the form
// "part-N" in document order.
func Decompose(raw []byte) (*mail.Message, extract.FetchFunc, error) {
	ent, err := gomessage.Read(bytes.NewReader(raw))
	if err != nil && !gomessage.IsUnknownCharset(err) {
		return nil, nil, fmt.Errorf("parse raw message: %w", err)
	}

	payload := make(map[string][]byte)
	seq := 0
	root := convertEntity(ent, payload, &seq, 0)

	msg := &mail.Message{
		ID:           messageID(ent),
		SizeEstimate: int64(len(raw)),
		Payload:      root,
	}

	fields := ent.Header.Fields()
	for fields.Next() {
		value, err := fields.Text()
		if err != nil {
			// Undecodable header: keep the raw value
			value = fields.Value()
		}
		msg.Headers = append(msg.Headers, mail.Header{Name: fields.Key(), Value: value})
	}

	fetch := func(_ context.Context, _, attachmentID string) ([]byte, error) {
		data, ok := payload[attachmentID]
		if !ok {
			return nil, fmt.Errorf("no payload captured for part %s", attachmentID)
		}
		return data, nil
	}

	return msg, fetch, nil
}

// DecodeRaw decodes the base64url envelope around a raw message, tolerating
// missing padding and the standard alphabet.
func DecodeRaw(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, fmt.Errorf("empty raw message")
	}
	return mail.DecodeData(encoded)
}

func convertEntity(e *gomessage.Entity, payload map[string][]byte, seq *int, depth int) *mail.Part {
	if e == nil || depth > 100 {
		return nil
	}

	mimeType, typeParams, _ := e.Header.ContentType()
	p := &mail.Part{
		MimeType: mimeType,
		Filename: entityFilename(e, typeParams),
	}

	if mr := e.MultipartReader(); mr != nil {
		for {
			sub, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				// Truncated or malformed epilogue: keep what parsed so far
				break
			}
			if child := convertEntity(sub, payload, seq, depth+1); child != nil {
				p.Parts = append(p.Parts, child)
			}
		}
		return p
	}

	body, err := io.ReadAll(e.Body)
	if err != nil {
		return p
	}
	p.Body.Size = int64(len(body))
	p.Body.Data = base64.URLEncoding.EncodeToString(body)

	if p.Filename != "" {
		*seq++
		id := "part-" + strconv.Itoa(*seq)
		payload[id] = body
		p.Body.AttachmentID = id
	}

	return p
}

func entityFilename(e *gomessage.Entity, typeParams map[string]string) string {
	if _, params, err := e.Header.ContentDisposition(); err == nil {
		if name := params["filename"]; name != "" {
			return name
		}
	}
	return typeParams["name"]
}

func messageID(e *gomessage.Entity) string {
	id := strings.Trim(strings.TrimSpace(e.Header.Get("Message-Id")), "<>")
	if id == "" {
		return uuid.New().String()
	}
	return id
}
