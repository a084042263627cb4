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

// Package extract walks message part trees and assembles normalized email
// records: best-effort body text, attachment discovery, header parsing.
package extract

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/mailvault/ingestion/internal/mail"
)

// maxPartDepth bounds recursion over part trees. Provider trees are shallow
// in practice; anything deeper contributes nothing rather than crashing.
const maxPartDepth = 100

var stripPolicy = bluemonday.StrictPolicy()

// ExtractBody returns the best-available human-readable body of a message.
//
// Plain-text leaves are concatenated in document order. An HTML leaf is used
// only while the accumulated body is still empty, with its markup stripped;
// later HTML leaves never overwrite it. Parts carrying a filename are
// attachments, never body content. Absence of any matching part yields an
// empty string.
func ExtractBody(root *mail.Part) string {
	if root == nil {
		return ""
	}

	var body strings.Builder

	if len(root.Parts) == 0 {
		// Single-part message
		appendBodyLeaf(root, &body)
	} else {
		walkBody(root.Parts, &body, 1)
	}

	return strings.TrimSpace(body.String())
}

func walkBody(parts []*mail.Part, body *strings.Builder, depth int) {
	if depth > maxPartDepth {
		return
	}
	for _, p := range parts {
		if len(p.Parts) > 0 {
			walkBody(p.Parts, body, depth+1)
			continue
		}
		appendBodyLeaf(p, body)
	}
}

func appendBodyLeaf(p *mail.Part, body *strings.Builder) {
	if p.Filename != "" || p.Body.Data == "" {
		return
	}

	switch p.MimeType {
	case "text/plain":
		if text, ok := decodeText(p.Body.Data); ok {
			body.WriteString(text)
		}
	case "text/html":
		if body.Len() > 0 {
			return
		}
		if text, ok := decodeText(p.Body.Data); ok {
			body.WriteString(StripHTML(text))
		}
	}
}

// decodeText decodes a base64url inline payload. Decoding errors are
// swallowed; the leaf simply contributes nothing.
func decodeText(data string) (string, bool) {
	b, err := mail.DecodeData(data)
	if err != nil {
		return "", false
	}
	return string(b), true
}

// StripHTML removes all markup from an HTML fragment, leaving its text
// content with entities resolved.
func StripHTML(s string) string {
	return html.UnescapeString(stripPolicy.Sanitize(s))
}
