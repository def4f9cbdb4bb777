package record

import (
	"encoding/binary"

	"golang.org/x/crypto/sha3"
)

// BlobHash computes the content address for data: the first 8 bytes of its
// SHAKE-256 digest read as a little-endian int64. A fresh hasher is built
// per call, so the function is pure and safe for concurrent use.
func BlobHash(data []byte) int64 {
	shake := sha3.NewShake256()
	shake.Write(data)
	var sum [8]byte
	shake.Read(sum[:])
	return int64(binary.LittleEndian.Uint64(sum[:]))
}
