package pipeline

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gburd/pcompress-go/pkg/config"
)

func baseOpts() config.Options {
	return config.Options{
		Algo:      "zlib",
		Level:     6,
		ChunkSize: 4096,
		Threads:   2,
		Checksum:  config.ChecksumBLAKE256,
	}
}

func sampleText(n int) []byte {
	src := []byte("the quick brown fox jumps over the lazy dog, and then does it again and again. ")
	out := make([]byte, 0, n)
	for len(out) < n {
		out = append(out, src...)
	}
	return out[:n]
}

func roundTrip(t *testing.T, opts config.Options, password []byte, in []byte) []byte {
	t.Helper()
	var compressed bytes.Buffer
	require.NoError(t, Compress(context.Background(), nil, bytes.NewReader(in), &compressed, opts, password))

	var out bytes.Buffer
	require.NoError(t, Decompress(context.Background(), nil, bytes.NewReader(compressed.Bytes()), &out, password, t.TempDir()))
	return out.Bytes()
}

func TestPipelineRoundTripPlain(t *testing.T) {
	in := sampleText(50000)
	out := roundTrip(t, baseOpts(), nil, in)
	assert.Equal(t, in, out)
}

func TestPipelineRoundTripEmptyInput(t *testing.T) {
	out := roundTrip(t, baseOpts(), nil, nil)
	assert.Empty(t, out)
}

func TestPipelineRoundTripExactChunkBoundary(t *testing.T) {
	opts := baseOpts()
	in := sampleText(int(opts.ChunkSize) * 3)
	out := roundTrip(t, opts, nil, in)
	assert.Equal(t, in, out)
}

func TestPipelineRoundTripShortFinalChunk(t *testing.T) {
	opts := baseOpts()
	in := sampleText(int(opts.ChunkSize)*2 + 17)
	out := roundTrip(t, opts, nil, in)
	assert.Equal(t, in, out)
}

func TestPipelineRoundTripAcrossCodecs(t *testing.T) {
	in := sampleText(30000)
	for _, algo := range []string{"zlib", "lz4", "lzma", "zstd", "none", "adapt"} {
		opts := baseOpts()
		opts.Algo = algo
		out := roundTrip(t, opts, nil, in)
		assert.Equal(t, in, out, algo)
	}
}

func TestPipelineRoundTripWithLZPAndDelta2(t *testing.T) {
	opts := baseOpts()
	opts.LZP = true
	opts.Delta2 = true
	in := sampleText(40000)
	out := roundTrip(t, opts, nil, in)
	assert.Equal(t, in, out)
}

func TestPipelineRoundTripWithFixedDedup(t *testing.T) {
	opts := baseOpts()
	opts.Dedup = config.DedupFixed
	opts.DedupBlockClass = 0
	in := bytes.Repeat(sampleText(2048), 20)
	out := roundTrip(t, opts, nil, in)
	assert.Equal(t, in, out)
}

func TestPipelineRoundTripWithFixedDedupLargeIndex(t *testing.T) {
	// Block class 0 (2048B) over a 64KiB chunk yields a 128B index,
	// comfortably past compressIndex's 90-byte lzma threshold.
	opts := baseOpts()
	opts.ChunkSize = 64 << 10
	opts.Dedup = config.DedupFixed
	opts.DedupBlockClass = 0
	in := bytes.Repeat(sampleText(2048), 64)
	out := roundTrip(t, opts, nil, in)
	assert.Equal(t, in, out)
}

func TestPipelineRoundTripWithRabinDedup(t *testing.T) {
	opts := baseOpts()
	opts.Dedup = config.DedupRabin
	opts.DedupBlockClass = 0
	in := bytes.Repeat(sampleText(2048), 20)
	out := roundTrip(t, opts, nil, in)
	assert.Equal(t, in, out)
}

func TestPipelineRoundTripWithGlobalDedup(t *testing.T) {
	opts := baseOpts()
	opts.Dedup = config.DedupGlobal
	opts.DedupBlockClass = 0
	opts.Threads = 1
	in := bytes.Repeat(sampleText(2048), 20)
	out := roundTrip(t, opts, nil, in)
	assert.Equal(t, in, out)
}

func TestPipelineRoundTripEncryptedAES(t *testing.T) {
	opts := baseOpts()
	opts.Crypto = config.CryptoAES
	opts.KeyLen = 32
	in := sampleText(20000)
	out := roundTrip(t, opts, []byte("correct horse battery staple"), in)
	assert.Equal(t, in, out)
}

func TestPipelineRoundTripEncryptedSalsa20(t *testing.T) {
	opts := baseOpts()
	opts.Crypto = config.CryptoSalsa20
	opts.KeyLen = 32
	in := sampleText(20000)
	out := roundTrip(t, opts, []byte("another password"), in)
	assert.Equal(t, in, out)
}

func TestPipelineDecryptWrongPasswordFails(t *testing.T) {
	opts := baseOpts()
	opts.Crypto = config.CryptoAES
	opts.KeyLen = 32
	in := sampleText(5000)

	var compressed bytes.Buffer
	require.NoError(t, Compress(context.Background(), nil, bytes.NewReader(in), &compressed, opts, []byte("right-pass")))

	var out bytes.Buffer
	err := Decompress(context.Background(), nil, bytes.NewReader(compressed.Bytes()), &out, []byte("wrong-pass"), t.TempDir())
	assert.Error(t, err)
}

func TestPipelineDetectsTamperedFrame(t *testing.T) {
	opts := baseOpts()
	in := sampleText(20000)

	var compressed bytes.Buffer
	require.NoError(t, Compress(context.Background(), nil, bytes.NewReader(in), &compressed, opts, nil))

	tampered := compressed.Bytes()
	// Flip a byte well past the header, inside the first chunk's payload.
	flipAt := len(tampered) / 2
	tampered[flipAt] ^= 0xFF

	var out bytes.Buffer
	err := Decompress(context.Background(), nil, bytes.NewReader(tampered), &out, nil, t.TempDir())
	assert.Error(t, err)
}

func TestPipelineRejectsCorruptHeader(t *testing.T) {
	opts := baseOpts()
	in := sampleText(1000)

	var compressed bytes.Buffer
	require.NoError(t, Compress(context.Background(), nil, bytes.NewReader(in), &compressed, opts, nil))

	tampered := compressed.Bytes()
	tampered[0] ^= 0xFF // corrupt the algo tag inside the header

	var out bytes.Buffer
	err := Decompress(context.Background(), nil, bytes.NewReader(tampered), &out, nil, t.TempDir())
	assert.Error(t, err)
}
