package library

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/sha1n/mcp-manual-server/internal/domain"
	"github.com/sha1n/mcp-manual-server/internal/manual"
)

const (
	// IndexSuffix is the suffix for index directories
	IndexSuffix = ".bleve"

	// MaxBatchSize is the maximum number of documents per batch
	MaxBatchSize = 100

	// MaxBatchBytes is the maximum bytes per batch (10MB)
	MaxBatchBytes = 10 * 1024 * 1024
)

// ErrNoIndexes indicates that no page has an index to search.
var ErrNoIndexes = errors.New("no indexes to combine")

// Indexer manages one Bleve index per page under the base directory.
type Indexer struct {
	baseDir string
}

// NewIndexer creates a new indexer.
func NewIndexer(baseDir string) *Indexer {
	return &Indexer{baseDir: baseDir}
}

func (i *Indexer) indexPath(pageID string) string {
	return filepath.Join(i.baseDir, "indexes", pageID+IndexSuffix)
}

// CreateIndexMapping creates the Bleve index mapping for manual documents.
// Title and content are analyzed; identifiers are keywords.
func CreateIndexMapping() mapping.IndexMapping {
	docMapping := bleve.NewDocumentMapping()

	for _, field := range []string{domain.ManualFieldContent, domain.ManualFieldTitle, domain.ManualFieldSectionTitle} {
		text := bleve.NewTextFieldMapping()
		text.Analyzer = standard.Name
		text.Store = true
		text.IncludeTermVectors = true
		docMapping.AddFieldMappingsAt(field, text)
	}

	for _, field := range []string{domain.ManualFieldPage, domain.ManualFieldSection, domain.ManualFieldAnchor, domain.ManualFieldType} {
		kw := bleve.NewTextFieldMapping()
		kw.Analyzer = keyword.Name
		kw.Store = true
		docMapping.AddFieldMappingsAt(field, kw)
	}

	idField := bleve.NewTextFieldMapping()
	idField.Index = false
	idField.Store = true
	docMapping.AddFieldMappingsAt(domain.ManualFieldID, idField)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = standard.Name
	return indexMapping
}

// Documents converts a page's search entries into index documents.
func Documents(pageID string, entries []manual.IndexEntry) []domain.ManualDocument {
	docs := make([]domain.ManualDocument, len(entries))
	for n, e := range entries {
		docs[n] = domain.ManualDocument{
			ID:           domain.DocumentID(pageID, e.ID),
			Page:         pageID,
			Section:      e.SectionID,
			SectionTitle: e.SectionTitle,
			Anchor:       e.AnchorID,
			Type:         string(e.Type),
			Title:        e.Title,
			Content:      e.Text,
		}
	}
	return docs
}

// OpenForRead opens an existing index read-only, so several processes can
// search it at once.
func (i *Indexer) OpenForRead(pageID string) (bleve.Index, error) {
	index, err := bleve.OpenUsing(i.indexPath(pageID), map[string]interface{}{"read_only": true})
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	return index, nil
}

// IndexExists checks if an index exists for the given page.
func (i *Indexer) IndexExists(pageID string) bool {
	_, err := os.Stat(i.indexPath(pageID))
	return err == nil
}

// Alias searches several page indexes at once and owns them: closing it
// closes every index.
type Alias struct {
	bleve.IndexAlias
	indexes []bleve.Index
}

// Close closes the alias and its indexes.
func (a *Alias) Close() error {
	errs := []error{a.IndexAlias.Close()}
	for _, idx := range a.indexes {
		errs = append(errs, idx.Close())
	}
	return errors.Join(errs...)
}

// CreateAlias opens the indexes of pageIDs and combines them into one
// searchable alias.
func (i *Indexer) CreateAlias(pageIDs []string) (*Alias, error) {
	indexes := make([]bleve.Index, 0, len(pageIDs))
	for _, id := range pageIDs {
		index, err := i.OpenForRead(id)
		if err != nil {
			for _, idx := range indexes {
				_ = idx.Close()
			}
			return nil, fmt.Errorf("failed to open index for %s: %w", id, err)
		}
		indexes = append(indexes, index)
	}

	if len(indexes) == 0 {
		return nil, ErrNoIndexes
	}
	return &Alias{IndexAlias: bleve.NewIndexAlias(indexes...), indexes: indexes}, nil
}

// FullIndex replaces the page's index with docs. Indexes are rebuilt
// wholesale, never patched. It returns the number of documents indexed.
func (i *Indexer) FullIndex(pageID string, docs []domain.ManualDocument) (count int, err error) {
	if err := i.DeleteIndex(pageID); err != nil {
		return 0, fmt.Errorf("failed to remove old index: %w", err)
	}
	index, err := bleve.New(i.indexPath(pageID), CreateIndexMapping())
	if err != nil {
		return 0, fmt.Errorf("failed to create index: %w", err)
	}
	defer func() {
		if cerr := index.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	batch := index.NewBatch()
	batchBytes := 0
	for _, doc := range docs {
		if err := batch.Index(doc.ID, doc); err != nil {
			return count, fmt.Errorf("failed to index %s: %w", doc.ID, err)
		}
		batchBytes += len(doc.Content)

		if batch.Size() >= MaxBatchSize || batchBytes >= MaxBatchBytes {
			n := batch.Size()
			if err := index.Batch(batch); err != nil {
				return count, fmt.Errorf("batch index failed: %w", err)
			}
			count += n
			batch = index.NewBatch()
			batchBytes = 0
		}
	}

	if n := batch.Size(); n > 0 {
		if err := index.Batch(batch); err != nil {
			return count, fmt.Errorf("final batch index failed: %w", err)
		}
		count += n
	}
	return count, nil
}

// DeleteIndex removes an index from disk.
func (i *Indexer) DeleteIndex(pageID string) error {
	return os.RemoveAll(i.indexPath(pageID))
}

// GetDocumentCount returns the number of documents in an index.
func (i *Indexer) GetDocumentCount(pageID string) (count uint64, err error) {
	index, err := i.OpenForRead(pageID)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := index.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return index.DocCount()
}
