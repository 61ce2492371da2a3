package dedup

import (
	"bytes"
	"io"

	"github.com/restic/chunker"
)

// rabinPolynomial is restic's own long-standing default irreducible
// polynomial for the content-defined chunker, reused here so this
// deduplicator inherits a polynomial that has seen production traffic
// rather than a home-rolled one. Only the encoder ever runs the chunker,
// since decode just replays the stored block pool, so a fixed, un-negotiated
// polynomial is safe: it need not match across versions of this tool.
var rabinPolynomial = chunker.Pol(0x3DA3358B4DC173)

// Rabin implements the -F Rabin-fingerprint Deduplicator variant (spec
// §4.4) using restic/chunker's content-defined chunking: block boundaries
// follow content, so inserting or deleting bytes mid-chunk re-synchronizes
// after one boundary instead of shifting every subsequent fixed block.
type Rabin struct {
	AvgBlockSize int
}

// NewRabin builds a Rabin deduplicator from a block size (bytes) derived
// from the -B block size class. Compress bounds blocks to between a quarter
// and four times that size; the chunker's own average split size is left
// at the library default and is not set from it.
func NewRabin(avgBlockSize int) Rabin { return Rabin{AvgBlockSize: avgBlockSize} }

func (r Rabin) Compress(in []byte) (Result, bool, error) {
	if r.AvgBlockSize <= 0 || len(in) == 0 {
		return Result{}, false, nil
	}

	c := chunker.NewWithBoundaries(bytes.NewReader(in), rabinPolynomial, uint(r.AvgBlockSize/4), uint(r.AvgBlockSize*4))
	buf := make([]byte, r.AvgBlockSize*4)

	var blocks [][]byte
	for {
		chk, err := c.Next(buf)
		if err == io.EOF {
			break
		}
		if err != nil {
			return Result{}, false, err
		}
		data := make([]byte, len(chk.Data))
		copy(data, chk.Data)
		blocks = append(blocks, data)
	}

	res, valid := compressBlocks(uint64(len(in)), blocks)
	return res, valid, nil
}
