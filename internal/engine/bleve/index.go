// Package bleve runs structured queries against an embedded bleve index, for local
// development and tests without an Elasticsearch cluster.
package bleve

import (
	"context"
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
)

// Field names, shared with the Elasticsearch index.
const (
	FieldText        = "document_text"
	FieldDate        = "document_date"
	FieldCaseName    = "case_name"
	FieldDocumentURL = "document_url"
)

// Document is one judgment as indexed.
type Document struct {
	ID          string `json:"id"`
	Text        string `json:"document_text"`
	Date        string `json:"document_date,omitempty"`
	CaseName    string `json:"case_name,omitempty"`
	DocumentURL string `json:"document_url,omitempty"`
}

func newMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()

	text := bleve.NewTextFieldMapping()
	text.Analyzer = standard.Name
	text.Store = true
	text.IncludeTermVectors = true

	keywordStored := bleve.NewTextFieldMapping()
	keywordStored.Analyzer = keyword.Name
	keywordStored.Store = true

	stored := bleve.NewTextFieldMapping()
	stored.Index = false
	stored.Store = true

	docMapping.AddFieldMappingsAt(FieldText, text)
	docMapping.AddFieldMappingsAt(FieldDate, keywordStored)
	docMapping.AddFieldMappingsAt(FieldCaseName, stored)
	docMapping.AddFieldMappingsAt(FieldDocumentURL, stored)
	im.DefaultMapping = docMapping
	return im
}

// Open opens the index at path, creating it when missing. An empty path gives an
// in-memory index.
func Open(path string) (bleve.Index, error) {
	if path == "" {
		idx, err := bleve.NewMemOnly(newMapping())
		if err != nil {
			return nil, fmt.Errorf("create in-memory index: %w", err)
		}
		return idx, nil
	}
	if _, err := os.Stat(path); err == nil {
		idx, err := bleve.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open bleve index: %w", err)
		}
		return idx, nil
	}
	idx, err := bleve.New(path, newMapping())
	if err != nil {
		return nil, fmt.Errorf("create bleve index: %w", err)
	}
	return idx, nil
}

// Index adds or replaces documents in one batch.
func (e *Engine) Index(ctx context.Context, docs []Document) error {
	batch := e.index.NewBatch()
	for _, d := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.ID == "" {
			return fmt.Errorf("document without id")
		}
		fields := map[string]any{FieldText: d.Text}
		if d.Date != "" {
			fields[FieldDate] = d.Date
		}
		if d.CaseName != "" {
			fields[FieldCaseName] = d.CaseName
		}
		if d.DocumentURL != "" {
			fields[FieldDocumentURL] = d.DocumentURL
		}
		if err := batch.Index(d.ID, fields); err != nil {
			return fmt.Errorf("index %s: %w", d.ID, err)
		}
	}
	if err := e.index.Batch(batch); err != nil {
		return fmt.Errorf("apply batch: %w", err)
	}
	return nil
}

// DocCount returns the number of indexed documents.
func (e *Engine) DocCount() (uint64, error) {
	return e.index.DocCount()
}

// Close closes the index.
func (e *Engine) Close() error {
	return e.index.Close()
}
