package plugin

import (
	"encoding/json"
	"hash/fnv"
)

// configHash hashes a plugin config block after canonicalizing it, so
// whitespace and key order changes don't count as a change. Invalid JSON is
// hashed as raw bytes.
func configHash(raw json.RawMessage) uint64 {
	if len(raw) == 0 {
		return 0
	}
	b := []byte(raw)
	var v any
	if err := json.Unmarshal(raw, &v); err == nil {
		if cb, err := json.Marshal(v); err == nil {
			b = cb
		}
	}
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}
