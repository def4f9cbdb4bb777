package record

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// AttachmentsFor lists the attachments owned by a record, ordered by name.
func (s *Store) AttachmentsFor(ctx context.Context, recordID int64) ([]Attachment, error) {
	var attachments []Attachment
	err := s.db.WithContext(ctx).
		Where("record_id = ?", recordID).
		Order("name ASC").
		Find(&attachments).Error
	if err != nil {
		return nil, fmt.Errorf("load attachments for record %d: %w", recordID, err)
	}
	return attachments, nil
}

// upsertAttachment stores data as a blob and links it to (recordID, name),
// replacing the hash reference when the name is already linked.
func upsertAttachment(db *gorm.DB, recordID int64, name string, data []byte) error {
	hash, err := insertBlob(db, data)
	if err != nil {
		return err
	}

	var existing Attachment
	err = db.Where("record_id = ? AND name = ?", recordID, name).Take(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := db.Create(&Attachment{RecordID: recordID, Name: name, Hash: hash}).Error; err != nil {
			return fmt.Errorf("insert attachment %q for record %d: %w", name, recordID, err)
		}
	case err != nil:
		return fmt.Errorf("check attachment %q for record %d: %w", name, recordID, err)
	default:
		err := db.Model(&Attachment{}).
			Where("record_id = ? AND name = ?", recordID, name).
			Update("hash", hash).Error
		if err != nil {
			return fmt.Errorf("update attachment %q for record %d: %w", name, recordID, err)
		}
	}
	return nil
}

// removeAttachments deletes every attachment owned by recordID one row at a
// time and reports whether all of them went away. A false result means the
// cascade is partially applied; re-invoking converges.
func removeAttachments(db *gorm.DB, recordID int64) (bool, error) {
	var attachments []Attachment
	if err := db.Where("record_id = ?", recordID).Find(&attachments).Error; err != nil {
		return false, fmt.Errorf("load attachments for record %d: %w", recordID, err)
	}

	removed := 0
	for _, attachment := range attachments {
		result := db.Where("id = ?", attachment.ID).Delete(&Attachment{})
		if result.Error != nil {
			return false, fmt.Errorf("remove attachment %d: %w", attachment.ID, result.Error)
		}
		if result.RowsAffected == 1 {
			removed++
		}
	}
	return removed == len(attachments), nil
}
