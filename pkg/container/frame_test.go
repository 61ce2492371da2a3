package container

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gburd/pcompress-go/pkg/chunk"
)

func fixedTagger(size int) func([]byte) []byte {
	return func(b []byte) []byte {
		tag := make([]byte, size)
		for i := range tag {
			tag[i] = byte(len(b) + i)
		}
		return tag
	}
}

func TestFrameEncodeDecodeRoundTrip(t *testing.T) {
	layout := FrameLayout{CksumBytes: 8, MACBytes: 4}
	c := chunk.Chunk{
		ID:       1,
		RawLen:   100,
		Checksum: bytes.Repeat([]byte{0x11}, 8),
		Flags:    chunk.Compressed,
		Payload:  []byte("hello world payload"),
	}
	tagger := fixedTagger(4)
	buf, err := layout.Encode(c, tagger)
	require.NoError(t, err)

	df, err := layout.DecodeOne(bytes.NewReader(buf))
	require.NoError(t, err)
	assert.Equal(t, uint64(len(c.Payload)), df.LenCmp)
	assert.Equal(t, c.Checksum, df.Checksum)
	assert.Equal(t, c.Flags, df.Flags)
	assert.Equal(t, c.Payload, df.Payload)
	assert.Equal(t, tagger(df.Raw), df.MAC)
}

func TestFrameEncodeDecodeWithCHSize(t *testing.T) {
	layout := FrameLayout{CksumBytes: 4, MACBytes: 0}
	c := chunk.Chunk{
		RawLen:   555,
		Checksum: bytes.Repeat([]byte{0x22}, 4),
		Flags:    chunk.CHSize,
		Payload:  []byte("payload-with-raw-len-trailer"),
	}
	buf, err := layout.Encode(c, func(b []byte) []byte { return nil })
	require.NoError(t, err)

	df, err := layout.DecodeOne(bytes.NewReader(buf))
	require.NoError(t, err)
	assert.Equal(t, c.RawLen, df.RawLen)
	assert.Equal(t, c.Payload, df.Payload)
}

func TestFrameEncodeChecksumLengthMismatch(t *testing.T) {
	layout := FrameLayout{CksumBytes: 8, MACBytes: 0}
	c := chunk.Chunk{Checksum: []byte{1, 2, 3}, Payload: []byte("x")}
	_, err := layout.Encode(c, func(b []byte) []byte { return nil })
	assert.Error(t, err)
}

func TestDecodeOneTrailer(t *testing.T) {
	layout := FrameLayout{CksumBytes: 8, MACBytes: 4}
	var buf bytes.Buffer
	require.NoError(t, EncodeTrailer(&buf))

	df, err := layout.DecodeOne(&buf)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), df.LenCmp)
}

func TestDecodeOneShortRead(t *testing.T) {
	layout := FrameLayout{CksumBytes: 8, MACBytes: 4}
	_, err := layout.DecodeOne(bytes.NewReader([]byte{0, 0, 0, 0}))
	assert.Error(t, err)
	assert.NotEqual(t, io.EOF, err)
}
