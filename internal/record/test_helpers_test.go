package record

import (
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&Record{}, &Blob{}, &Attachment{}); err != nil {
		t.Fatalf("migrate schema: %v", err)
	}
	t.Cleanup(func() {
		sqlDB.Close()
	})
	return db
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(openTestDB(t), zap.NewNop())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store
}

func testRecord(senderID, senderName, content string, timestamp int64) *Record {
	return &Record{
		ChatType:   "group",
		OwnerID:    "owner-1",
		GroupID:    "group-1",
		SenderID:   senderID,
		SenderName: senderName,
		Content:    content,
		Timestamp:  timestamp,
	}
}

func mustUpsert(t *testing.T, store *Store, rec *Record, attachments map[string][]byte, merger MetadataMerger) {
	t.Helper()
	ok, err := store.Upsert(t.Context(), rec, attachments, merger)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if !ok {
		t.Fatalf("upsert reported failure")
	}
}
