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
	"strings"
	"testing"
	"time"
)

func TestSanitizeFilename_Basic(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", "unnamed_attachment"},
		{"clean", "report.pdf", "report.pdf"},
		{"slashes", "a/b\\c.txt", "a_b_c.txt"},
		{"all unsafe chars", `<>:"/\|?*`, "_________"},
		{"mixed", `inv<oice>:2026?.csv`, "inv_oice__2026_.csv"},
		{"unicode preserved", "día de pago.xlsx", "día de pago.xlsx"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeFilename(tt.in, 200); got != tt.want {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizeFilename_Truncation(t *testing.T) {
	long := strings.Repeat("a", 300) + ".pdf"

	got := SanitizeFilename(long, 200)
	if n := len([]rune(got)); n != 200 {
		t.Errorf("truncated length = %d, want 200", n)
	}
	if !strings.HasSuffix(got, ".pdf") {
		t.Errorf("extension not preserved: %q", got[len(got)-10:])
	}

	// No extension: hard truncate
	noExt := strings.Repeat("b", 300)
	got = SanitizeFilename(noExt, 200)
	if n := len([]rune(got)); n != 200 {
		t.Errorf("no-extension truncated length = %d, want 200", n)
	}
}

func TestSanitizeFilename_Idempotent(t *testing.T) {
	inputs := []string{
		"",
		"normal.txt",
		`we?ird/na*me.tar.gz`,
		strings.Repeat("x", 500) + ".jpeg",
		strings.Repeat("y", 500),
		".hidden",
		"no_dot",
	}

	for _, in := range inputs {
		once := SanitizeFilename(in, 200)
		twice := SanitizeFilename(once, 200)
		if once != twice {
			t.Errorf("not idempotent for %q: first %q, second %q", in, once, twice)
		}
		if n := len([]rune(once)); n > 200 {
			t.Errorf("length bound violated for %q: %d", in, n)
		}
	}
}

func TestObjectKey(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	got := ObjectKey(now, "msg-123", "notes.txt", 200)
	want := "2026-08-30/msg-123/notes.txt"
	if got != want {
		t.Errorf("ObjectKey = %q, want %q", got, want)
	}

	// Sanitization applies to the filename segment
	got = ObjectKey(now, "msg-123", "a/b.txt", 200)
	if got != "2026-08-30/msg-123/a_b.txt" {
		t.Errorf("ObjectKey with slash = %q", got)
	}

	// Empty filename gets the placeholder
	got = ObjectKey(now, "msg-123", "", 200)
	if got != "2026-08-30/msg-123/unnamed_attachment" {
		t.Errorf("ObjectKey with empty filename = %q", got)
	}
}
