package codec

import (
	"sync"

	"github.com/klauspost/compress/zstd"
)

// zstdCodec ports the teacher's pkg/zstd/zstd.go almost directly: a shared
// decoder, and an encoder pool keyed by compression level so repeated
// chunks at the same level reuse encoder state instead of reallocating it.
type zstdCodec struct {
	decoder *zstd.Decoder

	mu    sync.RWMutex
	pools map[int]*sync.Pool
}

var zstdSingleton = newZstdCodec()

func init() { register(zstdSingleton) }

func newZstdCodec() *zstdCodec {
	dec, _ := zstd.NewReader(nil)
	return &zstdCodec{decoder: dec, pools: make(map[int]*sync.Pool)}
}

func (z *zstdCodec) Tag() string { return "zstd" }

func (z *zstdCodec) pool(level int) *sync.Pool {
	z.mu.RLock()
	p, ok := z.pools[level]
	z.mu.RUnlock()
	if ok {
		return p
	}

	z.mu.Lock()
	defer z.mu.Unlock()
	if p, ok = z.pools[level]; ok {
		return p
	}
	p = &sync.Pool{
		New: func() interface{} {
			enc, _ := zstd.NewWriter(nil,
				zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)),
				zstd.WithEncoderConcurrency(1),
			)
			return enc
		},
	}
	z.pools[level] = p
	return p
}

func (z *zstdCodec) Compress(in []byte, level int) ([]byte, error) {
	zstdLevel := scaleLevel(level, 1, 22)
	pool := z.pool(zstdLevel)
	enc := pool.Get().(*zstd.Encoder)
	defer pool.Put(enc)
	return enc.EncodeAll(in, make([]byte, 0, len(in))), nil
}

func (z *zstdCodec) Decompress(in []byte, rawLen int) ([]byte, error) {
	return z.decoder.DecodeAll(in, make([]byte, 0, rawLen))
}

func (z *zstdCodec) Props(level int, chunkSize int64) Props {
	return Props{NThreads: 0, BufExtra: 4096, Delta2Span: 0}
}
