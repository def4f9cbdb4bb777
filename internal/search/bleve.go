package search

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/lang/cjk"
	"go.uber.org/zap"
)

const (
	fieldRecordID  = "record_id"
	fieldContent   = "content"
	fieldTimestamp = "timestamp"

	refreshBatchSize = 500
)

// BleveIndex keeps the full-text index in an in-memory bleve index. A
// refresh builds a fresh index from scratch and swaps it in atomically;
// the previous snapshot keeps serving searches until the swap.
type BleveIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	logger *zap.Logger
}

// NewBleveIndex builds an empty index. It is unusable for matching until
// the first Refresh.
func NewBleveIndex(logger *zap.Logger) (*BleveIndex, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	index, err := newMemIndex()
	if err != nil {
		return nil, err
	}
	return &BleveIndex{index: index, logger: logger}, nil
}

func newMemIndex() (bleve.Index, error) {
	docMapping := bleve.NewDocumentMapping()

	content := bleve.NewTextFieldMapping()
	content.Analyzer = cjk.AnalyzerName
	content.Store = false
	content.IncludeTermVectors = true
	content.IncludeInAll = true
	docMapping.AddFieldMappingsAt(fieldContent, content)

	recordID := bleve.NewNumericFieldMapping()
	recordID.Store = true
	recordID.IncludeInAll = false
	docMapping.AddFieldMappingsAt(fieldRecordID, recordID)

	timestamp := bleve.NewNumericFieldMapping()
	timestamp.Store = false
	timestamp.IncludeInAll = false
	docMapping.AddFieldMappingsAt(fieldTimestamp, timestamp)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	// Queries against the composite field must analyze keywords the same
	// way the content field was indexed, or CJK bigrams never line up.
	indexMapping.DefaultAnalyzer = cjk.AnalyzerName

	index, err := bleve.NewMemOnly(indexMapping)
	if err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}
	return index, nil
}

var _ Index = (*BleveIndex)(nil)

// Refresh rebuilds the index from docs and makes the new snapshot visible.
// The rebuild is full rather than incremental, costing one pass over every
// record, which keeps the store free of per-record dirtiness tracking.
func (b *BleveIndex) Refresh(docs []Document) error {
	started := time.Now()
	fresh, err := newMemIndex()
	if err != nil {
		return err
	}

	batch := fresh.NewBatch()
	for i, doc := range docs {
		err := batch.Index(strconv.FormatInt(doc.RecordID, 10), map[string]interface{}{
			fieldRecordID:  doc.RecordID,
			fieldContent:   doc.Content,
			fieldTimestamp: doc.Timestamp,
		})
		if err != nil {
			fresh.Close()
			return fmt.Errorf("index record %d: %w", doc.RecordID, err)
		}
		if batch.Size() >= refreshBatchSize || i == len(docs)-1 {
			if err := fresh.Batch(batch); err != nil {
				fresh.Close()
				return fmt.Errorf("commit index batch: %w", err)
			}
			batch = fresh.NewBatch()
		}
	}

	b.mu.Lock()
	previous := b.index
	b.index = fresh
	b.mu.Unlock()

	if previous != nil {
		previous.Close()
	}

	b.logger.Info("search index refreshed",
		zap.Int("documents", len(docs)),
		zap.Duration("elapsed", time.Since(started)))
	return nil
}

// Search parses keyword as a query string restricted to the content text,
// ranks matches by timestamp descending, takes the top offset+limit and
// returns the record ids after skipping offset. Malformed keyword syntax
// surfaces as an error.
func (b *BleveIndex) Search(offset, limit int, keyword string) ([]int64, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		return nil, nil
	}

	// Held for the whole query: Refresh's write lock then waits out
	// in-flight searches before the snapshot they read is closed.
	b.mu.RLock()
	defer b.mu.RUnlock()

	query := bleve.NewQueryStringQuery(keyword)
	request := bleve.NewSearchRequestOptions(query, offset+limit, 0, false)
	request.SortBy([]string{"-" + fieldTimestamp})
	request.Fields = []string{fieldRecordID}

	result, err := b.index.Search(request)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", keyword, err)
	}

	ids := make([]int64, 0, limit)
	for i, hit := range result.Hits {
		if i < offset {
			continue
		}
		value, ok := hit.Fields[fieldRecordID].(float64)
		if !ok {
			continue
		}
		ids = append(ids, int64(value))
	}
	return ids, nil
}

// Close releases the current snapshot.
func (b *BleveIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.index == nil {
		return nil
	}
	err := b.index.Close()
	b.index = nil
	return err
}
