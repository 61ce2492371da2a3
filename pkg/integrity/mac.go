package integrity

import (
	"encoding/binary"
)

// FrameSizes returns the cksum_bytes/mac_bytes pair for a container (spec §4.1,
// §4.3): encrypted mode carries no plaintext digest and authenticates with a
// keyed HMAC; unencrypted mode carries the plaintext digest and authenticates
// with a 4-byte CRC32.
func FrameSizes(algo Algorithm, encrypted bool) (cksumBytes, macBytes int) {
	if encrypted {
		return 0, algo.MACBytes
	}
	return algo.CksumBytes, 4
}

// Tagger computes the integrity tag for a header or chunk frame: an HMAC
// keyed by the derived key in encrypted mode, or a CRC32 otherwise. Both
// tags are computed over the frame with its MAC slot zeroed.
type Tagger struct {
	algo      Algorithm
	encrypted bool
	key       []byte
}

// NewTagger builds a Tagger. key is ignored (may be nil) when encrypted is false.
func NewTagger(algo Algorithm, encrypted bool, key []byte) Tagger {
	return Tagger{algo: algo, encrypted: encrypted, key: key}
}

// Size is the width in bytes of the tag Compute returns.
func (t Tagger) Size() int {
	_, mb := FrameSizes(t.algo, t.encrypted)
	return mb
}

// Compute returns the integrity tag over b (which must already have its
// MAC slot zeroed by the caller).
func (t Tagger) Compute(b []byte) []byte {
	if t.encrypted {
		h := t.algo.NewHMAC(t.key)
		h.Write(b)
		return h.Sum(nil)
	}
	var out [4]byte
	binary.BigEndian.PutUint32(out[:], CRC32IEEE(b))
	return out[:]
}

// Verify recomputes the tag over b and compares it to want in constant
// time, for HMAC and CRC32 tags alike.
func (t Tagger) Verify(b []byte, want []byte) bool {
	got := t.Compute(b)
	if len(got) != len(want) {
		return false
	}
	var diff byte
	for i := range got {
		diff |= got[i] ^ want[i]
	}
	return diff == 0
}
