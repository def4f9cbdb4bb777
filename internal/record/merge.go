package record

// MetadataMerger resolves the stored metadata when an upsert matches an
// existing record and both sides carry a metadata payload. It receives the
// store and the attachment payloads of the incoming write for context and
// returns the bytes to persist; returning nil clears the stored metadata.
type MetadataMerger func(store *Store, attachments map[string][]byte, oldMeta, newMeta []byte) []byte

// TakeNewMetadata is the default merge policy: the incoming value wins and
// the stored value is discarded.
func TakeNewMetadata(_ *Store, _ map[string][]byte, _, newMeta []byte) []byte {
	return newMeta
}

// KeepOldMetadata retains the stored value and discards the incoming one.
func KeepOldMetadata(_ *Store, _ map[string][]byte, oldMeta, _ []byte) []byte {
	return oldMeta
}
