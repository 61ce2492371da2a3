package dedup

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func repeatingInput() []byte {
	block := bytes.Repeat([]byte("0123456789abcdef"), 256) // 4096 bytes
	return bytes.Repeat(block, 8)                           // 32768 bytes, highly redundant
}

func TestFixedDedupRoundTrip(t *testing.T) {
	in := repeatingInput()
	f := NewFixed(4096)
	res, valid, err := f.Compress(in)
	require.NoError(t, err)
	assert.True(t, valid)

	out, err := Reconstruct(res.Index, res.Blocks, res.Header.BlockCount)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestFixedDedupNoRedundancy(t *testing.T) {
	in := make([]byte, 4096)
	for i := range in {
		in[i] = byte(i)
	}
	f := NewFixed(4096)
	_, valid, err := f.Compress(in)
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestFixedDedupDisabled(t *testing.T) {
	f := NewFixed(0)
	res, valid, err := f.Compress([]byte("anything"))
	require.NoError(t, err)
	assert.False(t, valid)
	assert.Zero(t, res.Header.BlockCount)
}

func TestRabinDedupRoundTrip(t *testing.T) {
	in := repeatingInput()
	r := NewRabin(4096)
	res, valid, err := r.Compress(in)
	require.NoError(t, err)
	assert.True(t, valid)

	out, err := Reconstruct(res.Index, res.Blocks, res.Header.BlockCount)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestRabinDedupEmptyInput(t *testing.T) {
	r := NewRabin(4096)
	_, valid, err := r.Compress(nil)
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestHeaderEncodeDecodeRoundTrip(t *testing.T) {
	h := Header{
		BlockCount:   10,
		IndexSize:    40,
		DataSize:     4096,
		IndexSizeCmp: 20,
		DataSizeCmp:  2000,
		ChunkSize:    8 << 20,
		IndexLZMA:    true,
	}
	got := ParseHeader(h.Encode())
	assert.Equal(t, h, got)
}

func TestHeaderUpdateHeader(t *testing.T) {
	h := Header{}
	h.UpdateHeader(100, 200, true)
	assert.Equal(t, uint64(100), h.IndexSizeCmp)
	assert.Equal(t, uint64(200), h.DataSizeCmp)
	assert.True(t, h.IndexLZMA)
}

func TestTransposeIndexRoundTrip(t *testing.T) {
	index := make([]byte, 4*10)
	for i := range index {
		index[i] = byte(i)
	}
	transposed := TransposeIndex(index, 4)
	assert.Equal(t, index, UntransposeIndex(transposed, 4))
	assert.NotEqual(t, index, transposed)
}

func TestTransposeIndexGroupsByteZeroPlane(t *testing.T) {
	// Three entries, all with a high-order byte of 0: the transpose should
	// group all three zero bytes together at the front.
	index := []byte{0, 0, 0, 1, 0, 0, 0, 2, 0, 0, 0, 3}
	transposed := TransposeIndex(index, 4)
	assert.Equal(t, []byte{0, 0, 0}, transposed[0:3])
	assert.Equal(t, []byte{1, 2, 3}, transposed[9:12])
}

func TestReconstructBadBlockRef(t *testing.T) {
	index := make([]byte, 4)
	index[3] = 5 // references block id 5, none exist
	_, err := Reconstruct(index, nil, 1)
	assert.ErrorIs(t, err, errBadBlockRef)
}

func TestReconstructShortIndex(t *testing.T) {
	_, err := Reconstruct([]byte{1, 2}, nil, 1)
	assert.ErrorIs(t, err, errShortIndex)
}

func TestGlobalDedupAcrossChunks(t *testing.T) {
	g := NewGlobal(16)
	store, err := NewGlobalStore(os.TempDir())
	require.NoError(t, err)
	defer store.Close()

	chunk1 := bytes.Repeat([]byte("A"), 16)
	chunk1 = append(chunk1, bytes.Repeat([]byte("B"), 16)...)
	res1, valid1, err := g.Compress(chunk1)
	require.NoError(t, err)
	assert.False(t, valid1) // first time, no redundancy yet
	require.NoError(t, store.Append(res1.Blocks))

	out1, err := store.Reconstruct(res1.Index, res1.Header.BlockCount)
	require.NoError(t, err)
	assert.Equal(t, chunk1, out1)

	// Second chunk repeats the "A" block seen in chunk1: should be marked valid.
	chunk2 := bytes.Repeat([]byte("A"), 16)
	chunk2 = append(chunk2, bytes.Repeat([]byte("C"), 16)...)
	res2, valid2, err := g.Compress(chunk2)
	require.NoError(t, err)
	assert.True(t, valid2)
	require.NoError(t, store.Append(res2.Blocks))

	out2, err := store.Reconstruct(res2.Index, res2.Header.BlockCount)
	require.NoError(t, err)
	assert.Equal(t, chunk2, out2)
}

func TestRingWaitSignalOrder(t *testing.T) {
	r := NewRing(3)
	done := make(chan struct{})
	go func() {
		r.Wait(0)
		r.Signal(1)
		close(done)
	}()
	<-done
	r.Wait(1) // should not block: signaled above
}
