// Package loader provides document loading adapters.
package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/0xcro3dile/docsqa-go/internal/domain/entities"
)

// TextLoader loads plain text documents (.txt, .md) as single ingestion
// records.
type TextLoader struct{}

// NewTextLoader creates a new text document loader.
func NewTextLoader() *TextLoader {
	return &TextLoader{}
}

// Load reads a text document from the given path.
func (l *TextLoader) Load(ctx context.Context, path string) ([]entities.SourceDocument, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	name := filepath.Base(path)
	docType := "text"
	if ext := strings.ToLower(filepath.Ext(path)); ext == ".md" || ext == ".markdown" {
		docType = "markdown"
	}

	return []entities.SourceDocument{{
		Content: string(content),
		Source:  name,
		Title:   strings.TrimSuffix(name, filepath.Ext(name)),
		Type:    docType,
	}}, nil
}

// SupportedExtensions returns file extensions this loader handles.
func (l *TextLoader) SupportedExtensions() []string {
	return []string{".txt", ".md", ".markdown"}
}

// RecordsLoader loads JSON batches of ingestion records, the handoff
// format used by external producers (scraper, PDF pipeline).
type RecordsLoader struct{}

// NewRecordsLoader creates a new JSON records loader.
func NewRecordsLoader() *RecordsLoader {
	return &RecordsLoader{}
}

// Load reads a JSON array of records from the given path.
func (l *RecordsLoader) Load(ctx context.Context, path string) ([]entities.SourceDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var records []entities.SourceDocument
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parsing records file %s: %w", filepath.Base(path), err)
	}

	name := filepath.Base(path)
	for i := range records {
		if records[i].Source == "" {
			records[i].Source = name
		}
		if records[i].Type == "" {
			records[i].Type = "record"
		}
	}
	return records, nil
}

// SupportedExtensions returns file extensions this loader handles.
func (l *RecordsLoader) SupportedExtensions() []string {
	return []string{".json"}
}

// MultiLoader combines multiple loaders.
type MultiLoader struct {
	loaders map[string]interface {
		Load(context.Context, string) ([]entities.SourceDocument, error)
	}
}

// NewMultiLoader creates a loader that handles multiple file types.
func NewMultiLoader() *MultiLoader {
	text := NewTextLoader()
	return &MultiLoader{
		loaders: map[string]interface {
			Load(context.Context, string) ([]entities.SourceDocument, error)
		}{
			".txt":      text,
			".md":       text,
			".markdown": text,
			".json":     NewRecordsLoader(),
		},
	}
}

// Load dispatches to the appropriate loader based on extension.
func (m *MultiLoader) Load(ctx context.Context, path string) ([]entities.SourceDocument, error) {
	ext := strings.ToLower(filepath.Ext(path))
	loader, ok := m.loaders[ext]
	if !ok {
		// Default to text loader
		loader = NewTextLoader()
	}
	return loader.Load(ctx, path)
}

// SupportedExtensions returns all supported extensions.
func (m *MultiLoader) SupportedExtensions() []string {
	exts := make([]string, 0, len(m.loaders))
	for ext := range m.loaders {
		exts = append(exts, ext)
	}
	return exts
}
