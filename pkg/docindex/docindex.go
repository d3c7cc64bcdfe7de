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

// Package docindex maintains a per-tenant full-text index over the
// museum's practical documents (opening hours, tickets, services,
// accessibility) and serves passage retrieval for the document search
// tool.
package docindex

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/blevesearch/bleve"
	"go.uber.org/zap"

	"github.com/noesis-labs/cicerone/internal/log"
)

// Passage is one retrieved chunk with its provenance.
type Passage struct {
	Source string  `json:"source"`
	Text   string  `json:"text"`
	Score  float64 `json:"score"`
}

// Searcher is the retrieval contract the document search tool depends
// on.
type Searcher interface {
	Query(ctx context.Context, query string, limit int) ([]Passage, error)
}

type chunk struct {
	Source string `json:"source"`
	Text   string `json:"text"`
}

// Index is a bleve-backed document index.
type Index struct {
	idx    bleve.Index
	logger *zap.Logger
}

// Open opens the index at path, creating it when absent.
func Open(path string, logger *zap.Logger) (*Index, error) {
	if logger == nil {
		logger = log.Logger()
	}

	idx, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		idx, err = bleve.New(path, bleve.NewIndexMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("docindex: opening %s: %w", path, err)
	}
	return &Index{idx: idx, logger: logger}, nil
}

// NewMemory creates an in-memory index, used in tests and for tenants
// without persistent document storage.
func NewMemory(logger *zap.Logger) (*Index, error) {
	if logger == nil {
		logger = log.Logger()
	}
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("docindex: creating memory index: %w", err)
	}
	return &Index{idx: idx, logger: logger}, nil
}

// BuildFromDir indexes every .txt and .md file under dir, one document
// per paragraph. Re-indexing a file replaces its previous chunks
// because chunk IDs are deterministic.
func (i *Index) BuildFromDir(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".txt" && ext != ".md" {
			return nil
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("docindex: reading %s: %w", path, err)
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = filepath.Base(path)
		}
		if err := i.IndexDocument(rel, string(raw)); err != nil {
			return err
		}

		i.logger.Debug("indexed document", zap.String("file", rel))
		return nil
	})
}

// IndexDocument splits text into paragraphs and indexes each one under
// a deterministic chunk ID.
func (i *Index) IndexDocument(source, text string) error {
	batch := i.idx.NewBatch()
	for n, paragraph := range splitParagraphs(text) {
		id := fmt.Sprintf("%s#%d", source, n)
		if err := batch.Index(id, chunk{Source: source, Text: paragraph}); err != nil {
			return fmt.Errorf("docindex: indexing %s: %w", id, err)
		}
	}
	if err := i.idx.Batch(batch); err != nil {
		return fmt.Errorf("docindex: committing batch for %s: %w", source, err)
	}
	return nil
}

// splitParagraphs chunks text on blank lines, skipping markdown
// heading-only fragments and trimming whitespace.
func splitParagraphs(text string) []string {
	var out []string
	for _, block := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		paragraph := strings.TrimSpace(block)
		if paragraph == "" {
			continue
		}
		if lines := strings.Split(paragraph, "\n"); len(lines) == 1 && strings.HasPrefix(lines[0], "#") {
			continue
		}
		out = append(out, paragraph)
	}
	return out
}

// Query retrieves up to limit passages ranked by relevance.
func (i *Index) Query(ctx context.Context, query string, limit int) ([]Passage, error) {
	if limit <= 0 {
		limit = 3
	}

	req := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(query), limit, 0, false)
	req.Fields = []string{"source", "text"}

	res, err := i.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("docindex: searching %q: %w", query, err)
	}

	passages := make([]Passage, 0, len(res.Hits))
	for _, hit := range res.Hits {
		p := Passage{Score: hit.Score}
		if s, ok := hit.Fields["source"].(string); ok {
			p.Source = s
		}
		if t, ok := hit.Fields["text"].(string); ok {
			p.Text = t
		}
		passages = append(passages, p)
	}
	return passages, nil
}

// DocCount reports the number of indexed chunks.
func (i *Index) DocCount() (uint64, error) {
	return i.idx.DocCount()
}

// Close releases the underlying index.
func (i *Index) Close() error {
	return i.idx.Close()
}

var _ Searcher = (*Index)(nil)
