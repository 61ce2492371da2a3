package codec

import (
	"bytes"

	"github.com/ulikunitz/xz/lzma"
)

// lzmaCodec backs both the "lzma" algo tag and the lzma leg of the
// adaptive codec (spec §4.2 step 6, §9 "Adaptive codec").
type lzmaCodec struct{}

func init() { register(lzmaCodec{}) }

func (lzmaCodec) Tag() string { return "lzma" }

// dictCap scales the LZMA dictionary size with the container level,
// trading memory for ratio the way lzma.Preset does in the xz CLI.
func dictCap(level int) int {
	mib := scaleLevel(level, 1, 64)
	return mib << 20
}

func (lzmaCodec) Compress(in []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	cfg := lzma.Writer2Config{DictCap: dictCap(level)}
	w, err := cfg.NewWriter2(&buf)
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

func (lzmaCodec) Decompress(in []byte, rawLen int) ([]byte, error) {
	r, err := lzma.NewReader2(bytes.NewReader(in))
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, rawLen)
	buf := bytes.NewBuffer(out)
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (lzmaCodec) Props(level int, chunkSize int64) Props {
	return Props{NThreads: 0, BufExtra: 4096, Delta2Span: 1 << 21}
}
