package recorder

import (
	"bytes"
	"testing"

	"go.uber.org/zap"

	"github.com/chatvault/chatvault/internal/database"
	"github.com/chatvault/chatvault/internal/record"
	"github.com/chatvault/chatvault/internal/search"
)

func newTestRecorder(t *testing.T) *Recorder {
	t.Helper()
	db, err := database.OpenSQLite(":memory:", zap.NewNop())
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	index, err := search.NewBleveIndex(zap.NewNop())
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	rec, err := New(db, index, zap.NewNop())
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	t.Cleanup(func() {
		rec.Close()
	})
	return rec
}

func testRecord(senderID, senderName, content string, timestamp int64) *record.Record {
	return &record.Record{
		ChatType:   "group",
		OwnerID:    "owner-1",
		GroupID:    "group-1",
		SenderID:   senderID,
		SenderName: senderName,
		Content:    content,
		Timestamp:  timestamp,
	}
}

func TestInsertBareIDReportsFalse(t *testing.T) {
	rec := newTestRecorder(t)
	applied, err := rec.InsertOrUpdate(t.Context(), record.ID(42), nil)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if applied {
		t.Fatalf("a bare id carries nothing to write and must report false")
	}
}

func TestKeywordSearchRoundTrip(t *testing.T) {
	rec := newTestRecorder(t)

	stored := testRecord("people_daily", "人民日报", "张华考上了北京大学；李萍进了中等技术学校", 1000)
	other := testRecord("news", "新闻", "Intel线路图显示他们想恢复两年升级一次工艺", 2000)
	for _, r := range []*record.Record{stored, other} {
		applied, err := rec.InsertOrUpdate(t.Context(), r, nil)
		if err != nil || !applied {
			t.Fatalf("insert %q: applied=%v err=%v", r.SenderID, applied, err)
		}
	}

	if err := rec.RefreshIndex(t.Context()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	records, err := rec.Get(t.Context(), record.Query{Keyword: "技术学校"})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(records) != 1 || records[0].ID != stored.ID {
		t.Fatalf("expected exactly the matching record, got %+v", records)
	}

	records, err = rec.Get(t.Context(), record.Query{Keyword: "quarterly"})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("unrelated keyword must return nothing, got %+v", records)
	}
}

func TestKeywordSearchIsStaleUntilRefresh(t *testing.T) {
	rec := newTestRecorder(t)

	late := testRecord("sender-1", "Alice", "unindexed so far", 1000)
	applied, err := rec.InsertOrUpdate(t.Context(), late, nil)
	if err != nil || !applied {
		t.Fatalf("insert: applied=%v err=%v", applied, err)
	}

	records, err := rec.Get(t.Context(), record.Query{Keyword: "unindexed"})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("writes must stay invisible to keyword search before a refresh, got %+v", records)
	}

	if err := rec.RefreshIndex(t.Context()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	records, err = rec.Get(t.Context(), record.Query{Keyword: "unindexed"})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("refresh must make the write searchable, got %+v", records)
	}
}

func TestAttachmentAndBlobRoundTrip(t *testing.T) {
	rec := newTestRecorder(t)

	payload := []byte{0, 1, 2, 3}
	stored := testRecord("sender-1", "Alice", "with attachment", 1000)
	applied, err := rec.InsertOrUpdate(t.Context(), record.WithAttachments{
		Record:      stored,
		Attachments: map[string][]byte{"test": payload},
	}, nil)
	if err != nil || !applied {
		t.Fatalf("insert: applied=%v err=%v", applied, err)
	}

	attachments, err := rec.Attachments(t.Context(), stored.ID)
	if err != nil {
		t.Fatalf("attachments: %v", err)
	}
	if len(attachments) != 1 || attachments[0].Name != "test" {
		t.Fatalf("unexpected attachments %+v", attachments)
	}

	data, err := rec.GetBlob(t.Context(), attachments[0].Hash)
	if err != nil {
		t.Fatalf("get blob: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Fatalf("blob bytes do not round-trip")
	}
}

func TestRemoveByNaturalKeyThenPrune(t *testing.T) {
	rec := newTestRecorder(t)

	stored := testRecord("sender-1", "Alice", "doomed", 1000)
	applied, err := rec.InsertOrUpdate(t.Context(), record.WithAttachments{
		Record:      stored,
		Attachments: map[string][]byte{"file": []byte("blob content")},
	}, nil)
	if err != nil || !applied {
		t.Fatalf("insert: applied=%v err=%v", applied, err)
	}

	removed, err := rec.Remove(t.Context(), testRecord("sender-1", "Alice", "", 1000))
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if !removed {
		t.Fatalf("remove reported failure")
	}

	hash := record.BlobHash([]byte("blob content"))
	if _, err := rec.GetBlob(t.Context(), hash); err != nil {
		t.Fatalf("blob must survive record removal: %v", err)
	}

	pruned, err := rec.PruneBlobs(t.Context())
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if pruned != 1 {
		t.Fatalf("expected the orphaned blob to be pruned, got %d", pruned)
	}
}

func TestGetStructuredMode(t *testing.T) {
	rec := newTestRecorder(t)

	news := testRecord("news", "新闻", "roadmap", 1000)
	daily := testRecord("people_daily", "人民日报", "前途", 2000)
	for _, r := range []*record.Record{news, daily} {
		if applied, err := rec.InsertOrUpdate(t.Context(), r, nil); err != nil || !applied {
			t.Fatalf("insert: applied=%v err=%v", applied, err)
		}
	}

	records, err := rec.Get(t.Context(), record.Query{SenderName: "%日报"})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(records) != 1 || records[0].SenderID != "people_daily" {
		t.Fatalf("pattern query returned %+v", records)
	}
}
