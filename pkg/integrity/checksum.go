// Package integrity implements the checksum/MAC table of spec §4.3/§6:
// a per-algorithm digest, and the HMAC-or-CRC32 integrity tags applied
// to the header and to each chunk frame.
package integrity

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
	"hash/crc32"
	"hash/crc64"

	"github.com/gburd/pcompress-go/pkg/config"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/blake2s"
	"golang.org/x/crypto/sha3"
)

// Algorithm is a checksum family: it can hash plaintext (unencrypted mode)
// and it backs an HMAC for encrypted mode / chunk-frame authentication.
type Algorithm struct {
	ID         config.ChecksumAlgo
	CksumBytes int // digest size used for the plaintext checksum
	MACBytes   int // HMAC output size when encryption is enabled
	newHash    func() hash.Hash
}

// New returns a fresh plaintext-digest hash.Hash for the algorithm.
func (a Algorithm) New() hash.Hash { return a.newHash() }

// NewHMAC returns a keyed HMAC hash.Hash for header/chunk authentication.
func (a Algorithm) NewHMAC(key []byte) hash.Hash {
	return hmac.New(a.newHash, key)
}

var crc64Table = crc64.MakeTable(crc64.ISO)

var registry = map[config.ChecksumAlgo]Algorithm{
	config.ChecksumCRC64: {
		ID: config.ChecksumCRC64, CksumBytes: 8, MACBytes: 8,
		newHash: func() hash.Hash { return crc64.New(crc64Table) },
	},
	config.ChecksumBLAKE256: {
		ID: config.ChecksumBLAKE256, CksumBytes: 32, MACBytes: 32,
		newHash: func() hash.Hash { h, _ := blake2s.New256(nil); return h },
	},
	config.ChecksumBLAKE512: {
		ID: config.ChecksumBLAKE512, CksumBytes: 64, MACBytes: 64,
		newHash: func() hash.Hash { h, _ := blake2b.New512(nil); return h },
	},
	config.ChecksumSHA256: {
		ID: config.ChecksumSHA256, CksumBytes: 32, MACBytes: 32,
		newHash: sha256.New,
	},
	config.ChecksumSHA512: {
		ID: config.ChecksumSHA512, CksumBytes: 64, MACBytes: 64,
		newHash: sha512.New,
	},
	config.ChecksumKECCAK256: {
		ID: config.ChecksumKECCAK256, CksumBytes: 32, MACBytes: 32,
		newHash: sha3.NewLegacyKeccak256,
	},
	config.ChecksumKECCAK512: {
		ID: config.ChecksumKECCAK512, CksumBytes: 64, MACBytes: 64,
		newHash: sha3.NewLegacyKeccak512,
	},
	// Legacy, read-only: decode-time fallback onto the BLAKE table (spec §3, §12).
	config.ChecksumSKEIN256: {
		ID: config.ChecksumSKEIN256, CksumBytes: 32, MACBytes: 32,
		newHash: func() hash.Hash { h, _ := blake2s.New256(nil); return h },
	},
	config.ChecksumSKEIN512: {
		ID: config.ChecksumSKEIN512, CksumBytes: 64, MACBytes: 64,
		newHash: func() hash.Hash { h, _ := blake2b.New512(nil); return h },
	},
}

// Lookup returns the Algorithm for id, or an error if unknown.
func Lookup(id config.ChecksumAlgo) (Algorithm, error) {
	a, ok := registry[id]
	if !ok {
		return Algorithm{}, fmt.Errorf("integrity: unknown checksum algorithm %#x", uint16(id))
	}
	return a, nil
}

// CRC32IEEE computes the container's unencrypted-mode frame/header tag:
// IEEE CRC32, initial 0, final XOR 0xFFFFFFFF (the defaults of hash/crc32).
func CRC32IEEE(b []byte) uint32 {
	return crc32.ChecksumIEEE(b)
}
