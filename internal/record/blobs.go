package record

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// InsertBlob stores content under its hash and returns that hash. Inserting
// bytes that are already stored is a dedup hit and succeeds without writing
// a second row.
func (s *Store) InsertBlob(ctx context.Context, data []byte) (int64, error) {
	return insertBlob(s.db.WithContext(ctx), data)
}

func insertBlob(db *gorm.DB, data []byte) (int64, error) {
	hash := BlobHash(data)

	var count int64
	if err := db.Model(&Blob{}).Where("hash = ?", hash).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("check blob %d: %w", hash, err)
	}
	if count > 0 {
		return hash, nil
	}

	if err := db.Create(&Blob{Hash: hash, Data: data}).Error; err != nil {
		return 0, fmt.Errorf("insert blob %d: %w", hash, err)
	}
	return hash, nil
}

// GetBlob returns the stored bytes for hash, or ErrBlobNotFound.
func (s *Store) GetBlob(ctx context.Context, hash int64) ([]byte, error) {
	var blob Blob
	err := s.db.WithContext(ctx).Where("hash = ?", hash).Take(&blob).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrBlobNotFound, hash)
	}
	if err != nil {
		return nil, fmt.Errorf("get blob %d: %w", hash, err)
	}
	return blob.Data, nil
}

// RemoveBlob deletes the blob stored under hash and returns the number of
// rows removed. It does not check for attachments that still reference the
// hash; see PruneBlobs for reference-aware cleanup.
func (s *Store) RemoveBlob(ctx context.Context, hash int64) (int64, error) {
	result := s.db.WithContext(ctx).Where("hash = ?", hash).Delete(&Blob{})
	if result.Error != nil {
		return 0, fmt.Errorf("remove blob %d: %w", hash, result.Error)
	}
	return result.RowsAffected, nil
}

// PruneBlobs deletes every blob no attachment references and returns the
// number of rows removed. Blobs are never pruned implicitly; callers invoke
// this explicitly, typically after bulk removals.
func (s *Store) PruneBlobs(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).Exec(
		"DELETE FROM blobs WHERE NOT EXISTS (SELECT 1 FROM attachments WHERE attachments.hash = blobs.hash)")
	if result.Error != nil {
		return 0, fmt.Errorf("prune blobs: %w", result.Error)
	}
	return result.RowsAffected, nil
}
