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

package extract

import (
	netmail "net/mail"
	"time"
)

// NormalizeDate parses an RFC 5322-ish Date header into RFC 3339. On any
// parse failure it returns the current time in UTC — a fallback, not an
// error; the function never fails.
func NormalizeDate(raw string) string {
	t, err := netmail.ParseDate(raw)
	if err != nil {
		return time.Now().UTC().Format(time.RFC3339)
	}
	return t.Format(time.RFC3339)
}
