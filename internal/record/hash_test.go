package record

import "testing"

func TestBlobHashKnownValues(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want int64
	}{
		{name: "empty", data: []byte{}, want: 1408967024370891078},
		{name: "ascii", data: []byte("hello"), want: 8351822036116911122},
		{name: "negative value", data: []byte("chatvault"), want: -2978190739717076720},
		{name: "binary", data: []byte{0, 1, 2, 3}, want: -3447069698064795576},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := BlobHash(tc.data); got != tc.want {
				t.Fatalf("hash of %q = %d, want %d", tc.data, got, tc.want)
			}
		})
	}
}

func TestBlobHashDeterministic(t *testing.T) {
	data := []byte("the same bytes, hashed twice")
	if BlobHash(data) != BlobHash(data) {
		t.Fatalf("hash is not stable across calls")
	}
}

func TestBlobHashDistinguishesContent(t *testing.T) {
	if BlobHash([]byte("one")) == BlobHash([]byte("two")) {
		t.Fatalf("distinct content produced identical hashes")
	}
}
