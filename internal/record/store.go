package record

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var errMissingDatabase = errors.New("record: database handle is required")

// Store provides canonical CRUD over records, blobs and attachments. All
// multi-step write sequences run inside a single transaction, and the
// records table carries a unique index on the natural key, so concurrent
// writers targeting the same logical record cannot duplicate it.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewStore wraps a database handle opened by the database package.
func NewStore(db *gorm.DB, logger *zap.Logger) (*Store, error) {
	if db == nil {
		return nil, errMissingDatabase
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger}, nil
}

// matchClause builds the SQL condition identifying rec: the surrogate id
// when one is present, falling back to the natural key either way.
func matchClause(rec *Record) (string, []interface{}) {
	const naturalKey = "chat_type = ? AND owner_id = ? AND group_id = ? AND sender_id = ? AND timestamp = ?"
	naturalArgs := []interface{}{rec.ChatType, rec.OwnerID, rec.GroupID, rec.SenderID, rec.Timestamp}
	if rec.ID != 0 {
		return "id = ? OR (" + naturalKey + ")", append([]interface{}{rec.ID}, naturalArgs...)
	}
	return naturalKey, naturalArgs
}

// Upsert writes rec and its attachment payloads. A row matching the natural
// key (or rec.ID when set) is updated in place: sender_name and content are
// always overwritten, and metadata is resolved through merger when both the
// stored row and rec carry a payload. Without a match the record is
// inserted. It reports true only when exactly one record row was written,
// the surrogate id resolved, and every attachment upsert succeeded.
func (s *Store) Upsert(ctx context.Context, rec *Record, attachments map[string][]byte, merger MetadataMerger) (bool, error) {
	if rec == nil {
		return false, errors.New("record: record value is required")
	}
	if merger == nil {
		merger = TakeNewMetadata
	}

	ok := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		clause, args := matchClause(rec)

		var existing Record
		err := tx.Where(clause, args...).Take(&existing).Error
		written := int64(0)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			result := tx.Create(rec)
			if result.Error != nil {
				return fmt.Errorf("insert record: %w", result.Error)
			}
			written = result.RowsAffected
		case err != nil:
			return fmt.Errorf("check record: %w", err)
		default:
			updates := map[string]interface{}{
				"sender_name": rec.SenderName,
				"content":     rec.Content,
			}
			if rec.Metadata != nil {
				if existing.Metadata != nil {
					updates["metadata"] = merger(s, attachments, existing.Metadata, rec.Metadata)
				} else {
					updates["metadata"] = rec.Metadata
				}
			}
			result := tx.Model(&Record{}).Where(clause, args...).Updates(updates)
			if result.Error != nil {
				return fmt.Errorf("update record: %w", result.Error)
			}
			written = result.RowsAffected
			rec.ID = existing.ID
		}

		if rec.ID <= 0 {
			s.logger.Warn("record id did not resolve after write",
				zap.String("chat_type", rec.ChatType),
				zap.Int64("timestamp", rec.Timestamp))
			return nil
		}

		linked := 0
		for name, data := range attachments {
			if err := upsertAttachment(tx, rec.ID, name, data); err != nil {
				return err
			}
			linked++
		}

		ok = written == 1 && linked == len(attachments)
		return nil
	})
	if err != nil {
		return false, err
	}
	return ok, nil
}

// RemoveByID deletes the record with the given surrogate id. Attachments
// are left alone on this path; remove by record value to cascade.
func (s *Store) RemoveByID(ctx context.Context, id int64) (bool, error) {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&Record{})
	if result.Error != nil {
		return false, fmt.Errorf("remove record %d: %w", id, result.Error)
	}
	return result.RowsAffected == 1, nil
}

// Remove deletes every record matching rec by id or natural key together
// with their attachments. It reports true only when exactly one record row
// was deleted and the attachment cascade fully succeeded; an id and natural
// key pointing at different rows deletes both and reports false.
func (s *Store) Remove(ctx context.Context, rec *Record) (bool, error) {
	if rec == nil {
		return false, errors.New("record: record value is required")
	}

	ok := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		clause, args := matchClause(rec)

		var matches []Record
		if err := tx.Where(clause, args...).Find(&matches).Error; err != nil {
			return fmt.Errorf("resolve record: %w", err)
		}
		if len(matches) == 0 {
			return nil
		}

		result := tx.Where(clause, args...).Delete(&Record{})
		if result.Error != nil {
			return fmt.Errorf("remove record: %w", result.Error)
		}

		cascaded := true
		for _, match := range matches {
			done, err := removeAttachments(tx, match.ID)
			if err != nil {
				return err
			}
			cascaded = cascaded && done
		}

		ok = result.RowsAffected == 1 && cascaded
		return nil
	})
	if err != nil {
		return false, err
	}
	return ok, nil
}

// Find runs a structured-mode query: every pattern filter plus the time
// window, ranked most-recent-first, paginated in the store.
func (s *Store) Find(ctx context.Context, q Query) ([]Record, error) {
	var records []Record
	err := s.filtered(s.db.WithContext(ctx), q).
		Order("timestamp DESC, id DESC").
		Offset(q.offsetOrDefault()).
		Limit(q.limitOrDefault()).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	return records, nil
}

// FindByIDs loads the records behind a ranked candidate id list, bounded by
// the same time window and pattern filters as structured mode. Pagination
// already happened when the candidates were ranked, so none is applied.
func (s *Store) FindByIDs(ctx context.Context, q Query, ids []int64) ([]Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var records []Record
	err := s.filtered(s.db.WithContext(ctx), q).
		Where("id IN ?", ids).
		Order("timestamp DESC, id DESC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("load candidate records: %w", err)
	}
	return records, nil
}

func (s *Store) filtered(db *gorm.DB, q Query) *gorm.DB {
	return db.
		Where("timestamp >= ? AND timestamp < ?", q.afterBound(), q.beforeBound()).
		Where("chat_type LIKE ? AND owner_id LIKE ? AND group_id LIKE ? AND sender_id LIKE ? AND sender_name LIKE ?",
			pattern(q.ChatType), pattern(q.OwnerID), pattern(q.GroupID), pattern(q.SenderID), pattern(q.SenderName))
}

// AllRecords loads the full table, the input for an index rebuild.
func (s *Store) AllRecords(ctx context.Context) ([]Record, error) {
	var records []Record
	if err := s.db.WithContext(ctx).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("load all records: %w", err)
	}
	return records, nil
}
