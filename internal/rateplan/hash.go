package rateplan

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// ContentHash returns a stable hex digest of the structure's pricing
// content. Any change to the structure must change the hash: cached
// estimates key on it, and staleness there is a correctness bug.
//
// encoding/json marshals struct fields in declaration order, so the digest
// is deterministic without a custom canonicalizer.
func (s *Structure) ContentHash() string {
	payload, err := json.Marshal(s)
	if err != nil {
		// Structure contains only plain data fields; Marshal cannot fail
		// on it short of memory corruption.
		panic(err)
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
