package container

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gburd/pcompress-go/pkg/config"
)

func noTag(b []byte) []byte { return nil }

func TestHeaderEncodeDecodeFixedRoundTrip(t *testing.T) {
	h := Header{
		Algo:      "zlib",
		Version:   config.Version,
		Flags:     uint16(config.ChecksumBLAKE256),
		ChunkSize: 8 * 1024 * 1024,
		Level:     6,
	}
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, h, 0, noTag))

	got, raw, err := DecodeFixed(&buf)
	require.NoError(t, err)
	assert.Equal(t, h.Algo, got.Algo)
	assert.Equal(t, h.Version, got.Version)
	assert.Equal(t, h.Flags, got.Flags)
	assert.Equal(t, h.ChunkSize, got.ChunkSize)
	assert.Equal(t, h.Level, got.Level)
	assert.Len(t, raw, FixedHeaderSize)
}

func TestHeaderAlgoTagTooLong(t *testing.T) {
	h := Header{Algo: "waytoolongname"}
	_, err := h.EncodeFixed()
	assert.Error(t, err)
}

func TestHeaderCryptoAlgoAndEncrypted(t *testing.T) {
	h := Header{Flags: uint16(config.CryptoAES)}
	assert.True(t, h.Encrypted())
	assert.Equal(t, config.CryptoAES, h.CryptoAlgo())

	h2 := Header{Flags: uint16(config.CryptoSalsa20)}
	assert.True(t, h2.Encrypted())
	assert.Equal(t, config.CryptoSalsa20, h2.CryptoAlgo())

	h3 := Header{}
	assert.False(t, h3.Encrypted())
	assert.Equal(t, config.CryptoNone, h3.CryptoAlgo())
}

func TestHeaderChecksumExtraction(t *testing.T) {
	h := Header{Flags: uint16(config.ChecksumSHA512)}
	assert.Equal(t, config.ChecksumSHA512, h.Checksum())
}

func TestEncodeCryptoExtRoundTrip(t *testing.T) {
	h := Header{
		Flags:  uint16(config.CryptoAES),
		Salt:   bytes.Repeat([]byte{0xAB}, 16),
		Nonce:  bytes.Repeat([]byte{0xCD}, 8),
		KeyLen: 32,
	}
	ext := h.EncodeCryptoExt()
	require.NotNil(t, ext)

	var buf bytes.Buffer
	buf.Write(ext)
	got := Header{Flags: h.Flags}
	_, err := DecodeCryptoExt(&buf, &got, len(h.Nonce), nil)
	require.NoError(t, err)
	assert.Equal(t, h.Salt, got.Salt)
	assert.Equal(t, h.Nonce, got.Nonce)
	assert.Equal(t, h.KeyLen, got.KeyLen)
}

func TestEncodeCryptoExtNilWhenNotEncrypted(t *testing.T) {
	h := Header{}
	assert.Nil(t, h.EncodeCryptoExt())
}

func TestEncodeWithTag(t *testing.T) {
	h := Header{Algo: "lzma", ChunkSize: 4096}
	tagger := func(b []byte) []byte { return []byte{1, 2, 3, 4} }
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, h, 4, tagger))
	assert.Equal(t, FixedHeaderSize+4, buf.Len())
}

func TestEncodeTagSizeMismatch(t *testing.T) {
	h := Header{Algo: "lzma"}
	tagger := func(b []byte) []byte { return []byte{1, 2} }
	var buf bytes.Buffer
	err := Encode(&buf, h, 4, tagger)
	assert.Error(t, err)
}
