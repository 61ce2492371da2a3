// Package codec implements the codec interface of spec §6. Each codec is an
// external collaborator: the pipeline never inspects codec internals, only
// calls Compress/Decompress/Props through this interface, so a new codec
// can be added without touching the transform stack.
package codec

import "errors"

// ErrCodecUnavailable is returned by codecs named in spec §1 that have no
// Go implementation anywhere in the retrieved corpus (bzip2 write path,
// ppmd, lzfx, libbsc). The spec treats all codecs as out-of-scope external
// collaborators (§1); these simply report themselves unavailable rather
// than being faked.
var ErrCodecUnavailable = errors.New("codec: algorithm has no implementation available")

// Props mirrors the codec props contract of spec §6.
type Props struct {
	NThreads      int
	BufExtra      int // extra scratch bytes a worker's compressed buffer needs
	Delta2Span    int // 0 disables delta2 preprocessing for this codec
	IsSingleChunk bool
}

// Codec is the per-chunk compression engine. Implementations must be safe
// for concurrent use by distinct workers, matching the "thread-safe
// per-state" requirement of spec §6 (Go codecs here are stateless or use
// internal pooling, so there is no explicit init/deinit lifecycle).
type Codec interface {
	// Tag is the 8-byte (space-padded by the caller) algo name stored in
	// the container header, e.g. "zlib", "lzma", "none".
	Tag() string

	// Compress returns the compressed form of in at the given level.
	// Callers treat any error, or len(out) >= len(in), as "store verbatim"
	// (spec §4.2 step 5). Compress itself never falls back internally.
	Compress(in []byte, level int) ([]byte, error)

	// Decompress restores the original buffer, which had length rawLen.
	Decompress(in []byte, rawLen int) ([]byte, error)

	Props(level int, chunkSize int64) Props
}

// byTag is populated by each codec file's init().
var byTag = map[string]Codec{}

func register(c Codec) { byTag[c.Tag()] = c }

// Lookup returns the Codec registered for a header algo tag.
func Lookup(tag string) (Codec, error) {
	c, ok := byTag[tag]
	if !ok {
		return nil, errors.New("codec: unknown algorithm tag " + tag)
	}
	return c, nil
}
