package codec

import (
	"bytes"

	"github.com/pierrec/lz4/v4"
)

type lz4Codec struct{}

func init() { register(lz4Codec{}) }

func (lz4Codec) Tag() string { return "lz4" }

// lz4Level maps the container's 0..14 level onto lz4's fast-vs-high-compression
// split: levels 0-7 use lz4.Fast (the library's cheap default), levels 8
// and above use Level9 (the library's single high-compression tier).
func lz4Level(level int) lz4.CompressionLevel {
	if level >= 8 {
		return lz4.Level9
	}
	return lz4.Fast
}

func (lz4Codec) Compress(in []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if err := w.Apply(lz4.CompressionLevelOption(lz4Level(level))); err != nil {
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

func (lz4Codec) Decompress(in []byte, rawLen int) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(in))
	out := make([]byte, 0, rawLen)
	buf := bytes.NewBuffer(out)
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (lz4Codec) Props(level int, chunkSize int64) Props {
	return Props{NThreads: 0, BufExtra: 256, Delta2Span: 0}
}
