// Package cid converts between the 32-byte SHA-256 digest a Job
// account stores on chain and the base58 CID string the blob gateway
// and job/result documents use.
package cid

import (
	"fmt"

	"github.com/mr-tron/base58"
)

// multihashPrefix marks the following bytes as a sha2-256, 32-byte
// digest per the multihash spec. The node never needs the rest of
// the multicodec table, so it hardcodes this one prefix rather than
// pulling in a general multihash library.
var multihashPrefix = [2]byte{0x12, 0x20}

// Encode turns a 32-byte digest into its base58 CID string.
func Encode(digest [32]byte) string {
	buf := make([]byte, 0, 34)
	buf = append(buf, multihashPrefix[:]...)
	buf = append(buf, digest[:]...)
	return base58.Encode(buf)
}

// Decode recovers the 32-byte digest backing a CID string.
func Decode(s string) ([32]byte, error) {
	var digest [32]byte

	raw, err := base58.Decode(s)
	if err != nil {
		return digest, fmt.Errorf("decode cid %q: %w", s, err)
	}
	if len(raw) != 34 {
		return digest, fmt.Errorf("decode cid %q: want 34 bytes, got %d", s, len(raw))
	}
	if raw[0] != multihashPrefix[0] || raw[1] != multihashPrefix[1] {
		return digest, fmt.Errorf("decode cid %q: unexpected multihash prefix %02x%02x", s, raw[0], raw[1])
	}

	copy(digest[:], raw[2:])
	return digest, nil
}
