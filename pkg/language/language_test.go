// Copyright 2026 Noesis Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package language

import "testing"

func TestDetect(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		fallback string
		want     string
	}{
		{"italian question", "Dove si trova la scultura di Canova?", "en", "it"},
		{"english question", "Where can I find the paintings of the second floor?", "it", "en"},
		{"french question", "Où est la salle des peintures, pouvez vous me montrer?", "it", "fr"},
		{"spanish question", "¿Dónde están las obras del escultor?", "it", "es"},
		{"empty falls back", "", "en", "en"},
		{"numbers only fall back", "1234 5678", "it", "it"},
		{"no marker falls back", "Caravaggio", "it", "it"},
		{"empty fallback uses default", "zzzz", "", Default},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Detect(tt.text, tt.fallback); got != tt.want {
				t.Fatalf("Detect(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestSupported(t *testing.T) {
	for _, code := range []string{Italian, English, French, Spanish} {
		if !Supported(code) {
			t.Fatalf("Supported(%q) = false", code)
		}
	}
	if Supported("de") {
		t.Fatal("Supported(de) = true")
	}
}
