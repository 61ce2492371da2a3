package crypt

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gburd/pcompress-go/pkg/config"
)

func TestAESCipherRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, 32)
	nonce := bytes.Repeat([]byte{0x01}, 8)
	c, err := New(config.CryptoAES, key, nonce)
	require.NoError(t, err)

	plain := []byte("the quick brown fox jumps over the lazy dog")
	enc := make([]byte, len(plain))
	require.NoError(t, c.CryptBuf(enc, plain, 7))
	assert.NotEqual(t, plain, enc)

	dec := make([]byte, len(plain))
	require.NoError(t, c.CryptBuf(dec, enc, 7))
	assert.Equal(t, plain, dec)
}

func TestSalsaCipherRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x11}, 32)
	nonce := bytes.Repeat([]byte{0x02}, 24)
	c, err := New(config.CryptoSalsa20, key, nonce)
	require.NoError(t, err)

	plain := []byte("another plaintext block for xsalsa20 round trip")
	enc := make([]byte, len(plain))
	require.NoError(t, c.CryptBuf(enc, plain, 3))

	dec := make([]byte, len(plain))
	require.NoError(t, c.CryptBuf(dec, enc, 3))
	assert.Equal(t, plain, dec)
}

func TestCipherDistinctChunkIDsDiffer(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, 32)
	nonce := bytes.Repeat([]byte{0x01}, 8)
	c, err := New(config.CryptoAES, key, nonce)
	require.NoError(t, err)

	plain := bytes.Repeat([]byte{0xAA}, 64)
	out1 := make([]byte, len(plain))
	out2 := make([]byte, len(plain))
	require.NoError(t, c.CryptBuf(out1, plain, 1))
	require.NoError(t, c.CryptBuf(out2, plain, 2))
	assert.NotEqual(t, out1, out2)
}

func TestNewRejectsBadKeyLengths(t *testing.T) {
	_, err := New(config.CryptoAES, []byte("short"), bytes.Repeat([]byte{0}, 8))
	assert.Error(t, err)

	_, err = New(config.CryptoSalsa20, []byte("short"), bytes.Repeat([]byte{0}, 24))
	assert.Error(t, err)
}

func TestNewUnknownAlgo(t *testing.T) {
	_, err := New(config.CryptoAlgo(0xFF), bytes.Repeat([]byte{0}, 32), bytes.Repeat([]byte{0}, 8))
	assert.Error(t, err)
}

func TestNonceSize(t *testing.T) {
	assert.Equal(t, 8, NonceSize("AES"))
	assert.Equal(t, 24, NonceSize("SALSA20"))
	assert.Equal(t, 0, NonceSize("unknown"))
}

func TestDeriveKeyDeterministic(t *testing.T) {
	k1 := DeriveKey([]byte("password"), []byte("salt1234"), 32)
	k2 := DeriveKey([]byte("password"), []byte("salt1234"), 32)
	assert.Equal(t, k1, k2)
	assert.Len(t, k1, 32)

	k3 := DeriveKey([]byte("password"), []byte("other-salt"), 32)
	assert.NotEqual(t, k1, k3)
}

func TestZero(t *testing.T) {
	b := []byte{1, 2, 3, 4}
	Zero(b)
	assert.Equal(t, []byte{0, 0, 0, 0}, b)
}
