package record

import (
	"errors"
	"testing"
)

func TestInsertBlobIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	content := []byte("attachment payload")

	first, err := store.InsertBlob(t.Context(), content)
	if err != nil {
		t.Fatalf("first insert: %v", err)
	}
	second, err := store.InsertBlob(t.Context(), content)
	if err != nil {
		t.Fatalf("second insert: %v", err)
	}
	if first != second {
		t.Fatalf("hashes differ across inserts: %d vs %d", first, second)
	}

	var count int64
	if err := store.db.Model(&Blob{}).Count(&count).Error; err != nil {
		t.Fatalf("count blobs: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one blob row, got %d", count)
	}

	data, err := store.GetBlob(t.Context(), first)
	if err != nil {
		t.Fatalf("get blob: %v", err)
	}
	if string(data) != string(content) {
		t.Fatalf("stored bytes differ from inserted bytes")
	}
}

func TestGetBlobMissing(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetBlob(t.Context(), 12345)
	if !errors.Is(err, ErrBlobNotFound) {
		t.Fatalf("expected ErrBlobNotFound, got %v", err)
	}
}

func TestRemoveBlob(t *testing.T) {
	store := newTestStore(t)
	hash, err := store.InsertBlob(t.Context(), []byte("removable"))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	removed, err := store.RemoveBlob(t.Context(), hash)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected one row removed, got %d", removed)
	}

	removed, err = store.RemoveBlob(t.Context(), hash)
	if err != nil {
		t.Fatalf("second remove: %v", err)
	}
	if removed != 0 {
		t.Fatalf("expected zero rows on second remove, got %d", removed)
	}
}

func TestPruneBlobsKeepsReferencedContent(t *testing.T) {
	store := newTestStore(t)

	rec := testRecord("sender-1", "Sender", "with attachment", 1000)
	mustUpsert(t, store, rec, map[string][]byte{"photo": []byte("referenced bytes")}, nil)

	orphan, err := store.InsertBlob(t.Context(), []byte("orphaned bytes"))
	if err != nil {
		t.Fatalf("insert orphan: %v", err)
	}

	pruned, err := store.PruneBlobs(t.Context())
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if pruned != 1 {
		t.Fatalf("expected one pruned blob, got %d", pruned)
	}

	if _, err := store.GetBlob(t.Context(), orphan); !errors.Is(err, ErrBlobNotFound) {
		t.Fatalf("orphan should be gone, got %v", err)
	}
	referenced := BlobHash([]byte("referenced bytes"))
	if _, err := store.GetBlob(t.Context(), referenced); err != nil {
		t.Fatalf("referenced blob should survive prune: %v", err)
	}
}
