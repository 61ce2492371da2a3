package dedup

// Fixed implements the -D fixed-block Deduplicator variant (spec §4.4,
// §6 "-B 0..5 dedup block size class"): plaintext is cut into equal-size
// blocks (the last block short), then handed to the shared compressBlocks
// core.
type Fixed struct {
	BlockSize int
}

// NewFixed builds a fixed-block deduplicator for the given block size
// (bytes), as selected by -B via config.DedupBlockSize.
func NewFixed(blockSize int) Fixed { return Fixed{BlockSize: blockSize} }

func (f Fixed) Compress(in []byte) (Result, bool, error) {
	if f.BlockSize <= 0 {
		return Result{}, false, nil
	}
	var blocks [][]byte
	for off := 0; off < len(in); off += f.BlockSize {
		end := off + f.BlockSize
		if end > len(in) {
			end = len(in)
		}
		blocks = append(blocks, in[off:end])
	}
	res, valid := compressBlocks(uint64(len(in)), blocks)
	return res, valid, nil
}
