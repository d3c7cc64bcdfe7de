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

// Package language guesses the visitor's language from a short chat
// message so replies and localized content match it. The detector is a
// keyword vote over the four supported languages; ties and unknown
// input fall back to the caller's default.
package language

import (
	"strings"
	"unicode"
)

// Supported language codes.
const (
	Italian = "it"
	English = "en"
	French  = "fr"
	Spanish = "es"
)

// Default is used when detection is inconclusive and no tenant default
// is configured.
const Default = Italian

var markers = map[string]map[string]struct{}{
	Italian: wordSet("il", "lo", "la", "gli", "le", "di", "del", "della",
		"che", "chi", "dove", "quando", "come", "perché", "quale", "quali",
		"sono", "è", "sei", "c'è", "ci", "una", "uno", "questo", "questa",
		"quadro", "opera", "opere", "sala", "piano", "mostra", "dipinto",
		"scultura", "artista", "autore", "vorrei", "mi", "puoi", "grazie"),
	English: wordSet("the", "a", "an", "is", "are", "was", "were", "of",
		"in", "on", "what", "which", "where", "when", "who", "how", "why",
		"can", "could", "would", "show", "tell", "me", "about", "painting",
		"paintings", "sculpture", "artwork", "artworks", "artist", "room",
		"floor", "please", "thanks"),
	French: wordSet("le", "la", "les", "un", "une", "des", "du", "est",
		"sont", "je", "tu", "vous", "que", "qui", "où", "quand", "comment",
		"pourquoi", "quel", "quelle", "peinture", "tableau", "sculpture",
		"œuvre", "artiste", "salle", "étage", "montrez", "merci",
		"pouvez", "voudrais"),
	Spanish: wordSet("el", "los", "las", "un", "una", "unos", "es", "son",
		"de", "del", "que", "qué", "quién", "dónde", "cuándo", "cómo",
		"por", "cuál", "cuadro", "pintura", "escultura", "obra", "obras",
		"artista", "sala", "piso", "planta", "muestra", "gracias",
		"puedes", "quisiera"),
}

func wordSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// Detect guesses the language of text. fallback is returned when no
// language wins the keyword vote; an empty fallback means Default.
func Detect(text, fallback string) string {
	if fallback == "" {
		fallback = Default
	}
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return fallback
	}

	scores := make(map[string]int, len(markers))
	for _, tok := range tokens {
		for lang, set := range markers {
			if _, ok := set[tok]; ok {
				scores[lang]++
			}
		}
	}

	best, bestScore, tied := fallback, 0, false
	for _, lang := range []string{Italian, English, French, Spanish} {
		switch score := scores[lang]; {
		case score > bestScore:
			best, bestScore, tied = lang, score, false
		case score == bestScore && score > 0 && lang != best:
			tied = true
		}
	}
	if bestScore == 0 || tied {
		return fallback
	}
	return best
}

// Supported reports whether code is one of the supported languages.
func Supported(code string) bool {
	_, ok := markers[code]
	return ok
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
}
