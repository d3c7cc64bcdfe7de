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

package broker

import "strings"

// Stop-word sets keep Italian articles and prepositions out of LIKE
// patterns, where they would match nearly every row.
var (
	titleStopWords = wordSet("il", "lo", "la", "i", "gli", "le", "un", "uno",
		"una", "del", "della", "dei", "degli", "delle", "di", "con", "in")

	artistStopWords = wordSet("di", "da", "del", "de")

	generalStopWords = wordSet("di", "del", "della", "dei", "degli", "con",
		"per", "tra", "fra", "nel", "nella", "uno", "una")
)

func wordSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// tokenize splits text into search terms, dropping stop words and
// terms at or below minLen runes.
func tokenize(text string, stop map[string]struct{}, minLen int) []string {
	var terms []string
	for _, tok := range strings.Fields(text) {
		if len([]rune(tok)) <= minLen {
			continue
		}
		if _, ok := stop[strings.ToLower(tok)]; ok {
			continue
		}
		terms = append(terms, tok)
	}
	return terms
}

// Category synonyms: visitors say "scultore" or "sculture"; the
// category table says "SCULTORI". Matching either form must hit the
// canonical row.
var categorySynonyms = map[string]string{
	"SCULTORE": "SCULTORI",
	"SCULTORI": "SCULTORI",
	"SCULTURA": "SCULTORI",
	"SCULTURE": "SCULTORI",
	"PITTORE":  "PITTORI",
	"PITTORI":  "PITTORI",
	"PITTURA":  "PITTORI",
	"DIPINTO":  "PITTORI",
	"DIPINTI":  "PITTORI",
}

// canonicalCategory maps a visitor's category term to the canonical
// category row value, or "" when no synonym applies.
func canonicalCategory(category string) string {
	return categorySynonyms[strings.ToUpper(category)]
}

// sculptureTerms and paintingTerms widen general-query terms to the
// canonical category the same way.
var (
	sculptureTerms = wordSet("scultura", "sculture", "scultore", "scultori")
	paintingTerms  = wordSet("dipinto", "dipinti", "pittore", "pittori", "pittura")
)

// techniqueSynonyms maps technique mentions (Italian and English) to
// the LIKE fragments that identify them in the technique table.
// Filtering is strict: techniques match only via this table, never via
// free-text descriptions.
var techniqueSynonyms = []struct {
	mentions []string
	patterns []string
}{
	{mentions: []string{"BRONZ"}, patterns: []string{"%bronz%"}},
	{mentions: []string{"OLIO", "OIL"}, patterns: []string{"%olio%", "%oil%"}},
	{mentions: []string{"GESSO", "PLASTER"}, patterns: []string{"%gess%", "%plaster%"}},
	{mentions: []string{"TERRACOTTA"}, patterns: []string{"%terracott%"}},
	{mentions: []string{"MARMO", "MARBLE"}, patterns: []string{"%marmo%", "%marble%"}},
}

// techniquePatterns returns the fragments for the first synonym entry
// the mention matches, or nil when none applies.
func techniquePatterns(technique string) []string {
	up := strings.ToUpper(technique)
	for _, syn := range techniqueSynonyms {
		for _, m := range syn.mentions {
			if strings.Contains(up, m) {
				return syn.patterns
			}
		}
	}
	return nil
}

// categoryLabels localizes the canonical category descriptions for
// display. Unknown categories pass through unchanged.
var categoryLabels = map[string]map[string]string{
	"it": {"SCULTORI": "Scultori", "PITTORI": "Pittori", "DIRETTORI": "Direttori"},
	"en": {"SCULTORI": "Sculptors", "PITTORI": "Painters", "DIRETTORI": "Directors"},
	"fr": {"SCULTORI": "Sculpteurs", "PITTORI": "Peintres", "DIRETTORI": "Directeurs"},
	"es": {"SCULTORI": "Escultores", "PITTORI": "Pintores", "DIRETTORI": "Directores"},
}

// LocalizeCategory renders a canonical category description in the
// visitor's language.
func LocalizeCategory(category, lang string) string {
	if category == "" {
		return ""
	}
	labels, ok := categoryLabels[lang]
	if !ok {
		labels = categoryLabels["it"]
	}
	if label, ok := labels[strings.ToUpper(category)]; ok {
		return label
	}
	return category
}
