package crypt

import (
	"fmt"

	"golang.org/x/crypto/salsa20/salsa"
)

// XSalsa20Stream is a cipher.Stream-like XOR keystream generator for
// XSalsa20, keyed per-chunk exactly like AESCTRStream: the header's 24-byte
// nonce is combined with the chunk id to derive a unique per-chunk nonce,
// since XSalsa20's own 24-byte nonce has no spare bytes for a running
// counter the way the AES-CTR IV does.
type XSalsa20Stream struct {
	key   [32]byte
	nonce [24]byte
}

// NewXSalsa20Stream builds a per-chunk XSalsa20 stream.
func NewXSalsa20Stream(key, nonce []byte, chunkID uint64) (*XSalsa20Stream, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("crypt: XSalsa20 key must be 32 bytes, got %d", len(key))
	}
	if len(nonce) != 24 {
		return nil, fmt.Errorf("crypt: XSalsa20 nonce must be 24 bytes, got %d", len(nonce))
	}
	s := &XSalsa20Stream{}
	copy(s.key[:], key)
	copy(s.nonce[:], nonce)
	// Fold the chunk id into the last 8 bytes of the nonce, the part that
	// XORKeyStream hands to Salsa20 rather than to HSalsa20.
	for i := 0; i < 8; i++ {
		s.nonce[16+i] ^= byte(chunkID >> (8 * i))
	}
	return s, nil
}

// XORKeyStream encrypts/decrypts src into dst. dst and src must either be
// the same slice (in place, as the transform stack calls it) or not overlap
// at all (spec §9).
func (s *XSalsa20Stream) XORKeyStream(dst, src []byte) {
	var hNonce [16]byte
	copy(hNonce[:], s.nonce[:16])
	var subKey [32]byte
	salsa.HSalsa20(&subKey, &hNonce, &s.key, &salsa.Sigma)

	var counter [16]byte
	copy(counter[:], s.nonce[16:24])
	salsa.XORKeyStream(dst, src, &counter, &subKey)
}
