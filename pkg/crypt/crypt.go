package crypt

import (
	"fmt"

	"github.com/gburd/pcompress-go/pkg/config"
)

// Cipher is the crypto interface of spec §6, narrowed to what the pipeline
// needs per chunk: crypto_buf(state, in, out, len, counter) where counter
// is the chunk id. Implementations must be safe for concurrent use by
// distinct workers as long as each call uses a distinct chunkID (the
// worker pool never calls the same chunkID twice).
type Cipher interface {
	// CryptBuf XOR-encrypts/decrypts src into dst for the given chunk id.
	// dst and src must not overlap unless identical (spec §9).
	CryptBuf(dst, src []byte, chunkID uint64) error
}

type aesCipher struct {
	key   []byte
	nonce []byte
}

func (c *aesCipher) CryptBuf(dst, src []byte, chunkID uint64) error {
	stream, err := AESCTRStream(c.key, c.nonce, chunkID)
	if err != nil {
		return err
	}
	stream.XORKeyStream(dst, src)
	return nil
}

type salsaCipher struct {
	key   []byte
	nonce []byte
}

func (c *salsaCipher) CryptBuf(dst, src []byte, chunkID uint64) error {
	stream, err := NewXSalsa20Stream(c.key, c.nonce, chunkID)
	if err != nil {
		return err
	}
	stream.XORKeyStream(dst, src)
	return nil
}

// New builds the Cipher for alg, already keyed and nonced from the header.
func New(alg config.CryptoAlgo, key, nonce []byte) (Cipher, error) {
	switch alg {
	case config.CryptoAES:
		if len(key) != 16 && len(key) != 32 {
			return nil, fmt.Errorf("crypt: AES key must be 16 or 32 bytes, got %d", len(key))
		}
		return &aesCipher{key: key, nonce: nonce}, nil
	case config.CryptoSalsa20:
		if len(key) != 32 {
			return nil, fmt.Errorf("crypt: XSalsa20 key must be 32 bytes, got %d", len(key))
		}
		return &salsaCipher{key: key, nonce: nonce}, nil
	default:
		return nil, fmt.Errorf("crypt: unknown crypto algorithm %#x", uint16(alg))
	}
}
