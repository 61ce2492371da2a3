package codec

import "github.com/gburd/pcompress-go/pkg/chunk"

// AdaptiveCandidates are, in id order, the sub-codecs the adaptive codec
// chooses among (spec §3 flag bits 4-5, §9 "tagged variant"). bzip2 and
// ppmd are the unavailableCodec stand-ins documented in unavailable.go;
// Choose simply skips candidates that return ErrCodecUnavailable, so
// "adapt"/"adapt2" degrade gracefully to exercising only the lzma leg
// until a bzip2/ppmd implementation is wired in.
var AdaptiveCandidates = []struct {
	ID   uint8
	Tag  string
}{
	{chunk.AdaptiveBzip2, "bzip2"},
	{chunk.AdaptiveLzma, "lzma"},
	{chunk.AdaptivePpmd, "ppmd"},
}

// adaptiveCodec implements both "adapt" and "adapt2": try every available
// candidate, keep the smallest output, and stamp its id into the chunk
// flags (spec §4.2 step 6). "adapt" and "adapt2" behave identically: the
// codec and the transform stack treat the two tags the same way.
type adaptiveCodec struct{ tag string }

func init() {
	register(adaptiveCodec{tag: "adapt"})
	register(adaptiveCodec{tag: "adapt2"})
}

func (a adaptiveCodec) Tag() string { return a.tag }

// Compress discards the winning sub-codec id that Choose returns, since the
// plain Codec interface has no way to return it; callers that need the id
// to stamp flag bits 4-5 (the transform stack) call Choose directly.
func (a adaptiveCodec) Compress(in []byte, level int) ([]byte, error) {
	out, _, err := Choose(in, level)
	return out, err
}

func (a adaptiveCodec) Decompress(in []byte, rawLen int) ([]byte, error) {
	// The transform stack always knows which sub-codec was used (it reads
	// the id back from flag bits 4-5) and calls that codec's Decompress
	// directly; this path exists only to satisfy the Codec interface.
	return lzmaCodec{}.Decompress(in, rawLen)
}

func (a adaptiveCodec) Props(level int, chunkSize int64) Props {
	return Props{NThreads: 0, BufExtra: 4096, Delta2Span: 1 << 21}
}

// Choose runs every available candidate and returns the smallest output
// along with the winning id (spec §4.2 step 6). If every candidate fails
// or none shrink the input, it returns ErrCodecUnavailable and the caller
// stores verbatim.
func Choose(in []byte, level int) (out []byte, id uint8, err error) {
	bestLen := len(in)
	var best []byte
	var bestID uint8

	for _, cand := range AdaptiveCandidates {
		c, lookupErr := Lookup(cand.Tag)
		if lookupErr != nil {
			continue
		}
		candOut, candErr := c.Compress(in, level)
		if candErr != nil {
			continue
		}
		if len(candOut) < bestLen {
			bestLen = len(candOut)
			best = candOut
			bestID = cand.ID
		}
	}

	if best == nil {
		return nil, 0, ErrCodecUnavailable
	}
	return best, bestID, nil
}

// DecompressByID dispatches to the sub-codec identified by id (spec §3
// flag bits 4-5).
func DecompressByID(id uint8, in []byte, rawLen int) ([]byte, error) {
	for _, cand := range AdaptiveCandidates {
		if cand.ID == id {
			c, err := Lookup(cand.Tag)
			if err != nil {
				return nil, err
			}
			return c.Decompress(in, rawLen)
		}
	}
	return nil, ErrCodecUnavailable
}
