// Package search maintains the derived full-text index over record content.
// The index is rebuilt wholesale on refresh and read through a snapshot
// that only advances on refresh, so searches never observe store writes
// made since the last rebuild.
package search

// Document is the indexed projection of one record.
type Document struct {
	RecordID  int64
	Content   string
	Timestamp int64
}

// Index is the contract between the record store and the indexing engine.
// Refresh replaces every document; Search returns record ids ranked
// most-recent-first. Implementations allow one writer at a time; callers
// serialize Refresh externally.
type Index interface {
	Refresh(docs []Document) error
	Search(offset, limit int, keyword string) ([]int64, error)
	Close() error
}
