package record

import (
	"errors"
	"time"
)

var (
	// ErrBlobNotFound indicates that no blob is stored under the requested hash.
	ErrBlobNotFound = errors.New("record: blob not found")
)

// Record models one observed chat message. A record is logically identified
// by its natural key (ChatType, OwnerID, GroupID, SenderID, Timestamp); the
// surrogate ID is assigned by storage on first insert and never changes.
type Record struct {
	ID         int64  `gorm:"column:id;primaryKey;autoIncrement"`
	ChatType   string `gorm:"column:chat_type;size:190;not null;uniqueIndex:idx_records_natural_key,priority:1"`
	OwnerID    string `gorm:"column:owner_id;size:190;not null;uniqueIndex:idx_records_natural_key,priority:2"`
	GroupID    string `gorm:"column:group_id;size:190;not null;uniqueIndex:idx_records_natural_key,priority:3"`
	SenderID   string `gorm:"column:sender_id;size:190;not null;uniqueIndex:idx_records_natural_key,priority:4"`
	SenderName string `gorm:"column:sender_name;size:190;not null;default:''"`
	Content    string `gorm:"column:content;type:text;not null"`
	Timestamp  int64  `gorm:"column:timestamp;not null;index:idx_records_timestamp;uniqueIndex:idx_records_natural_key,priority:5"`
	Metadata   []byte `gorm:"column:metadata"`
}

// TableName provides the explicit table binding for GORM.
func (Record) TableName() string {
	return "records"
}

// Blob stores deduplicated binary content addressed by the hash of its bytes.
type Blob struct {
	Hash int64  `gorm:"column:hash;primaryKey;autoIncrement:false"`
	Data []byte `gorm:"column:blob;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Blob) TableName() string {
	return "blobs"
}

// Attachment is a named link from a record to a blob. (RecordID, Name) is
// unique; re-attaching under the same name replaces the hash reference.
type Attachment struct {
	ID       int64  `gorm:"column:id;primaryKey;autoIncrement"`
	RecordID int64  `gorm:"column:record_id;not null;uniqueIndex:idx_attachments_record_name,priority:1"`
	Name     string `gorm:"column:name;size:190;not null;uniqueIndex:idx_attachments_record_name,priority:2"`
	Hash     int64  `gorm:"column:hash;not null;index:idx_attachments_hash"`
}

// TableName provides the explicit table binding for GORM.
func (Attachment) TableName() string {
	return "attachments"
}

// Ref identifies a record for writes and removals: a bare surrogate id, a
// record value, or a record value together with named attachment payloads.
type Ref interface {
	recordRef()
}

// ID refers to a record by surrogate id alone.
type ID int64

func (ID) recordRef() {}

func (*Record) recordRef() {}

// WithAttachments pairs a record with the attachment payloads to persist
// alongside it, keyed by attachment name.
type WithAttachments struct {
	Record      *Record
	Attachments map[string][]byte
}

func (WithAttachments) recordRef() {}

// DefaultLimit bounds a query that does not name its own page size.
const DefaultLimit = 50

// Query describes a read request. Pattern fields use SQL LIKE syntax and
// default to match-all; the time window is [After, Before) in milliseconds
// with Before defaulting to now; Offset/Limit paginate the ranked result.
type Query struct {
	ChatType   string
	OwnerID    string
	GroupID    string
	SenderID   string
	SenderName string
	Keyword    string
	After      int64
	Before     int64
	Offset     int
	Limit      int
}

func pattern(value string) string {
	if value == "" {
		return "%%"
	}
	return value
}

func (q Query) afterBound() int64 {
	if q.After < 0 {
		return 0
	}
	return q.After
}

func (q Query) beforeBound() int64 {
	if q.Before <= 0 {
		return NowMillis() + 1
	}
	return q.Before
}

func (q Query) offsetOrDefault() int {
	if q.Offset < 0 {
		return 0
	}
	return q.Offset
}

func (q Query) limitOrDefault() int {
	if q.Limit <= 0 {
		return DefaultLimit
	}
	return q.Limit
}

// NowMillis returns the current time in milliseconds since the epoch, the
// unit every record timestamp is expressed in.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}
