// Package recorder is the public entry point to the chat history store:
// upsert, removal and querying of records, attachment and blob access, and
// the lifecycle of the derived search index.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/chatvault/chatvault/internal/database"
	"github.com/chatvault/chatvault/internal/record"
	"github.com/chatvault/chatvault/internal/search"
)

var (
	errMissingDatabase = errors.New("recorder: database handle is required")
	errMissingIndex    = errors.New("recorder: search index is required")
)

// Config configures Open.
type Config struct {
	DatabasePath string
	Logger       *zap.Logger
}

// Recorder orchestrates the record store and the search index under one
// surface. The index is only rebuilt through RefreshIndex; between
// refreshes keyword searches serve the snapshot of the last rebuild.
type Recorder struct {
	db        *gorm.DB
	store     *record.Store
	index     search.Index
	logger    *zap.Logger
	refreshMu sync.Mutex
}

// Open opens (or creates) the store at cfg.DatabasePath, builds the search
// index and performs the initial index rebuild.
func Open(cfg Config) (*Recorder, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := database.OpenSQLite(cfg.DatabasePath, logger)
	if err != nil {
		return nil, fmt.Errorf("recorder: open database: %w", err)
	}

	index, err := search.NewBleveIndex(logger)
	if err != nil {
		return nil, fmt.Errorf("recorder: open search index: %w", err)
	}

	return New(db, index, logger)
}

// New assembles a recorder from an opened database handle and index and
// performs the initial index rebuild.
func New(db *gorm.DB, index search.Index, logger *zap.Logger) (*Recorder, error) {
	if db == nil {
		return nil, errMissingDatabase
	}
	if index == nil {
		return nil, errMissingIndex
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	store, err := record.NewStore(db, logger)
	if err != nil {
		return nil, err
	}

	r := &Recorder{
		db:     db,
		store:  store,
		index:  index,
		logger: logger,
	}

	if err := r.RefreshIndex(context.Background()); err != nil {
		return nil, err
	}
	return r, nil
}

// InsertOrUpdate writes the referenced record, creating it when its natural
// key (and id, if supplied) matches no stored row and updating it in place
// otherwise. On conflicting metadata the merger decides; a nil merger means
// the incoming value wins. A bare id carries nothing to write and reports
// false.
func (r *Recorder) InsertOrUpdate(ctx context.Context, ref record.Ref, merger record.MetadataMerger) (bool, error) {
	switch v := ref.(type) {
	case record.ID:
		return false, nil
	case *record.Record:
		return r.store.Upsert(ctx, v, nil, merger)
	case record.WithAttachments:
		return r.store.Upsert(ctx, v.Record, v.Attachments, merger)
	default:
		return false, fmt.Errorf("recorder: unsupported record reference %T", ref)
	}
}

// Remove deletes the referenced record. A bare id deletes that row only; a
// record value resolves the row by id or natural key and cascades to its
// attachments. Referenced blobs stay; see PruneBlobs.
func (r *Recorder) Remove(ctx context.Context, ref record.Ref) (bool, error) {
	switch v := ref.(type) {
	case record.ID:
		return r.store.RemoveByID(ctx, int64(v))
	case *record.Record:
		return r.store.Remove(ctx, v)
	case record.WithAttachments:
		return r.store.Remove(ctx, v.Record)
	default:
		return false, fmt.Errorf("recorder: unsupported record reference %T", ref)
	}
}

// Get runs a query. With a keyword the search index ranks and paginates
// candidate ids and the store loads them under the query's time window and
// pattern filters; without one the store filters and paginates directly.
func (r *Recorder) Get(ctx context.Context, q record.Query) ([]record.Record, error) {
	if q.Keyword == "" {
		return r.store.Find(ctx, q)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = record.DefaultLimit
	}
	ids, err := r.index.Search(q.Offset, limit, q.Keyword)
	if err != nil {
		return nil, err
	}
	return r.store.FindByIDs(ctx, q, ids)
}

// GetBlob returns the stored bytes for hash.
func (r *Recorder) GetBlob(ctx context.Context, hash int64) ([]byte, error) {
	return r.store.GetBlob(ctx, hash)
}

// Attachments lists the attachments owned by a record.
func (r *Recorder) Attachments(ctx context.Context, recordID int64) ([]record.Attachment, error) {
	return r.store.AttachmentsFor(ctx, recordID)
}

// PruneBlobs deletes blobs no attachment references and returns the count.
func (r *Recorder) PruneBlobs(ctx context.Context) (int64, error) {
	return r.store.PruneBlobs(ctx)
}

// RefreshIndex rebuilds the search index from the store's full contents.
// Concurrent calls are serialized; the index never refreshes on its own,
// so read-after-write consistency for keyword search belongs to the
// caller's refresh cadence.
func (r *Recorder) RefreshIndex(ctx context.Context) error {
	r.refreshMu.Lock()
	defer r.refreshMu.Unlock()

	records, err := r.store.AllRecords(ctx)
	if err != nil {
		return err
	}

	docs := make([]search.Document, 0, len(records))
	for _, rec := range records {
		docs = append(docs, search.Document{
			RecordID:  rec.ID,
			Content:   rec.Content,
			Timestamp: rec.Timestamp,
		})
	}
	return r.index.Refresh(docs)
}

// Close releases the search index and the database connection.
func (r *Recorder) Close() error {
	indexErr := r.index.Close()
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.Close(); err != nil {
		return err
	}
	return indexErr
}
