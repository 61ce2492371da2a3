package codec

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/flate"
)

// zlibCodec wraps klauspost/compress/flate, the teacher's own dependency
// (it uses klauspost/compress/zstd for NCZ blocks), extended here to cover
// the deflate family rather than reached for fresh.
type zlibCodec struct{}

func init() { register(zlibCodec{}) }

func (zlibCodec) Tag() string { return "zlib" }

func (zlibCodec) Compress(in []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, scaleLevel(level, flate.BestSpeed, flate.BestCompression))
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(in); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (zlibCodec) Decompress(in []byte, rawLen int) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(in))
	defer r.Close()
	out := make([]byte, 0, rawLen)
	buf := bytes.NewBuffer(out)
	if _, err := io.Copy(buf, r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (zlibCodec) Props(level int, chunkSize int64) Props {
	return Props{NThreads: 0, BufExtra: 1024, Delta2Span: 1 << 20}
}
