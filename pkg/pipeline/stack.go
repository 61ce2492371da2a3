// Package pipeline implements the transform stack, worker pool, and
// reader/writer dispatcher of spec §4.2/§4.5: the part of the tool that
// turns a stream of plaintext chunks into a stream of chunk frames (and
// back), applying dedup, preprocessing, compression, encryption, and
// authentication in the order spec §4.2 names them.
package pipeline

import (
	"bytes"
	"fmt"

	"github.com/gburd/pcompress-go/pkg/chunk"
	"github.com/gburd/pcompress-go/pkg/codec"
	"github.com/gburd/pcompress-go/pkg/config"
	"github.com/gburd/pcompress-go/pkg/container"
	"github.com/gburd/pcompress-go/pkg/crypt"
	"github.com/gburd/pcompress-go/pkg/dedup"
	"github.com/gburd/pcompress-go/pkg/integrity"
	"github.com/gburd/pcompress-go/pkg/preprocess"
)

// Stack is the per-chunk transform pipeline of spec §4.2: dedup ->
// preprocess -> compress -> encrypt -> authenticate (checksum for the
// unencrypted case, since the frame MAC already authenticates ciphertext).
// One Stack is shared by every worker; Codec, Cipher, and Checksum are all
// safe for concurrent use (spec §6), and Dedup is either stateless per call
// (Fixed, Rabin) or synchronized externally through a Ring (Global).
type Stack struct {
	Opts     config.Options
	Codec    codec.Codec
	Checksum integrity.Algorithm
	Cipher   crypt.Cipher // nil iff the container is unencrypted
	Dedup    dedup.Deduplicator

	// GlobalStore is non-nil only on the decompress side of -G global
	// dedupe: it materializes unique blocks in chunk order so later
	// chunks' back-references can be satisfied.
	GlobalStore *dedup.GlobalStore
}

// isGlobal reports whether Dedup needs Ring-ordered access.
func (s *Stack) isGlobal() bool { return s.Opts.Dedup == config.DedupGlobal }

// indexLZMAMinSize is the spec §4.2 step 3 threshold below which the
// transposed index is stored verbatim: lzma's own framing overhead makes
// compressing anything smaller a net loss.
const indexLZMAMinSize = 90

// compressIndex independently lzma-compresses the transposed dedup index
// (spec §4.2 step 3), separately from whatever codec the chunk's data
// portion uses. Falls back to storing transposed verbatim when it is too
// small to bother, lzma is unavailable, or compression does not shrink it.
func compressIndex(transposed []byte, level int) ([]byte, bool) {
	if len(transposed) < indexLZMAMinSize {
		return transposed, false
	}
	c, err := codec.Lookup("lzma")
	if err != nil {
		return transposed, false
	}
	out, err := c.Compress(transposed, level)
	if err != nil || len(out) >= len(transposed) {
		return transposed, false
	}
	return out, true
}

// CompressChunk runs the full transform stack over one plaintext chunk and
// returns the wire-ready chunk.Chunk. ringSlot/ring are only consulted when
// Opts.Dedup is DedupGlobal (spec §4.4): the caller must have arranged for
// workers to call this in worker-index order for global mode to reproduce
// consistent ids on the decompress side.
func (s *Stack) CompressChunk(id uint64, in []byte, chunkSize int64, ringSlot int, ring *dedup.Ring) (chunk.Chunk, error) {
	var flags chunk.Type
	var dedupHdr dedup.Header
	var indexPayload []byte
	var indexLZMA bool
	work := in

	if s.Dedup != nil {
		if s.isGlobal() && ring != nil {
			ring.Wait(ringSlot)
		}
		res, valid, err := s.Dedup.Compress(in)
		if s.isGlobal() && ring != nil {
			ring.Signal(ringSlot + 1)
		}
		if err != nil {
			return chunk.Chunk{}, fmt.Errorf("pipeline: dedup: %w", err)
		}
		if valid {
			dedupHdr = res.Header
			// Spec §4.2 step 3: the index table travels its own path,
			// transposed and independently lzma-compressed, so step 4's
			// preprocessing and the chunk's codec run only over the data
			// portion below.
			transposed := dedup.TransposeIndex(res.Index, 4)
			indexPayload, indexLZMA = compressIndex(transposed, s.Opts.Level)
			work = res.Blocks
			flags |= chunk.Dedup
		}
	}

	var preMask chunk.PreprocMask
	preApplied := false
	if s.Opts.LZP {
		out := preprocess.LZPCompress(work, s.Opts.Level)
		if len(out) < len(work) {
			work = out
			preMask |= chunk.PreprocLZP
			preApplied = true
		}
	}
	props := s.Codec.Props(s.Opts.Level, chunkSize)
	if s.Opts.Delta2 && props.Delta2Span > 0 {
		work = preprocess.Delta2Encode(work, props.Delta2Span)
		preMask |= chunk.PreprocDelta2
		preApplied = true
	}
	preSize := uint64(len(work))

	stored, adaptiveID, compressed, err := s.compress(work)
	if err != nil {
		return chunk.Chunk{}, fmt.Errorf("pipeline: codec compress: %w", err)
	}
	if compressed {
		flags |= chunk.Compressed
		flags = flags.WithAdaptive(adaptiveID)
		if preApplied {
			preMask |= chunk.PreprocCompressed
		}
	} else {
		stored = work
	}
	if preApplied {
		flags |= chunk.Preproc
	}

	var payload []byte
	if flags.Has(chunk.Dedup) {
		dedupHdr.UpdateHeader(uint64(len(indexPayload)), uint64(len(stored)), indexLZMA)
		payload = append(payload, dedupHdr.Encode()...)
		payload = append(payload, indexPayload...)
	}
	if preApplied {
		ph := chunk.PreprocHeader{Mask: preMask, PreSize: preSize}
		enc := ph.Encode()
		payload = append(payload, enc[:]...)
	}
	payload = append(payload, stored...)

	if s.Cipher != nil {
		if err := s.Cipher.CryptBuf(payload, payload, id); err != nil {
			return chunk.Chunk{}, fmt.Errorf("pipeline: encrypt: %w", err)
		}
	}

	var checksum []byte
	if s.Cipher == nil {
		h := s.Checksum.New()
		h.Write(in)
		checksum = h.Sum(nil)
	}

	if int64(len(in)) < chunkSize {
		flags |= chunk.CHSize
	}

	return chunk.Chunk{ID: id, RawLen: uint64(len(in)), Checksum: checksum, Flags: flags, Payload: payload}, nil
}

// compress runs the configured codec, special-casing "adapt"/"adapt2" so the
// winning sub-codec id can be stamped into the chunk flags (spec §4.2 step
// 6). Reports compressed=false (store verbatim, spec §4.2 step 5) on error
// or when the result did not shrink.
func (s *Stack) compress(work []byte) (out []byte, adaptiveID uint8, compressed bool, err error) {
	tag := s.Codec.Tag()
	if tag == "adapt" || tag == "adapt2" {
		best, id, cerr := codec.Choose(work, s.Opts.Level)
		if cerr != nil {
			return nil, 0, false, nil
		}
		return best, id, true, nil
	}
	candOut, cerr := s.Codec.Compress(work, s.Opts.Level)
	if cerr != nil || len(candOut) >= len(work) {
		return nil, 0, false, nil
	}
	return candOut, 0, true, nil
}

// DecompressChunk reverses CompressChunk given the decoded frame. ringSlot/
// ring are only consulted for DedupGlobal, and must be driven in the same
// worker-index order the writer already enforces when draining workers, so
// GlobalStore materializes blocks in the order CompressChunk assigned ids.
func (s *Stack) DecompressChunk(id uint64, df container.DecodedFrame, chunkSize int64, ringSlot int, ring *dedup.Ring) ([]byte, error) {
	payload := append([]byte(nil), df.Payload...)
	if s.Cipher != nil {
		if err := s.Cipher.CryptBuf(payload, payload, id); err != nil {
			return nil, fmt.Errorf("pipeline: decrypt: %w", err)
		}
	}

	var dedupHdr dedup.Header
	var index []byte
	if df.Flags.Has(chunk.Dedup) {
		if len(payload) < dedup.HeaderSize {
			return nil, fmt.Errorf("pipeline: chunk %d: dedup header truncated", id)
		}
		dedupHdr = dedup.ParseHeader(payload[:dedup.HeaderSize])
		payload = payload[dedup.HeaderSize:]

		if len(payload) < int(dedupHdr.IndexSizeCmp) {
			return nil, fmt.Errorf("pipeline: chunk %d: dedup index truncated", id)
		}
		indexSeg := payload[:dedupHdr.IndexSizeCmp]
		payload = payload[dedupHdr.IndexSizeCmp:]

		transposed := indexSeg
		if dedupHdr.IndexLZMA {
			lz, err := codec.Lookup("lzma")
			if err != nil {
				return nil, fmt.Errorf("pipeline: chunk %d: %w", id, err)
			}
			out, err := lz.Decompress(indexSeg, int(dedupHdr.IndexSize))
			if err != nil {
				return nil, fmt.Errorf("pipeline: chunk %d: index lzma decompress: %w", id, err)
			}
			transposed = out
		}
		index = dedup.UntransposeIndex(transposed, 4)
	}

	// Spec §4.2 step 4: the index segment above travels outside the
	// preprocessing/codec pipeline; segLen below sizes only the data
	// portion that LZP/delta2/codec actually ran over.
	segLen := int(dedupHdr.DataSize)
	if !df.Flags.Has(chunk.Dedup) {
		if df.Flags.Has(chunk.CHSize) {
			segLen = int(df.RawLen)
		} else {
			segLen = int(chunkSize)
		}
	}

	props := s.Codec.Props(s.Opts.Level, chunkSize)

	var work []byte
	if df.Flags.Has(chunk.Preproc) {
		if len(payload) < chunk.PreprocHeaderSize {
			return nil, fmt.Errorf("pipeline: chunk %d: preproc header truncated", id)
		}
		ph := chunk.DecodePreprocHeader(payload[:chunk.PreprocHeaderSize])
		rest := payload[chunk.PreprocHeaderSize:]

		if ph.Mask&chunk.PreprocCompressed != 0 {
			out, err := s.decompress(df.Flags, rest, int(ph.PreSize))
			if err != nil {
				return nil, fmt.Errorf("pipeline: chunk %d: codec decompress: %w", id, err)
			}
			work = out
		} else {
			work = append([]byte(nil), rest...)
		}
		if ph.Mask&chunk.PreprocDelta2 != 0 {
			work = preprocess.Delta2Decode(work, props.Delta2Span)
		}
		if ph.Mask&chunk.PreprocLZP != 0 {
			out, err := preprocess.LZPDecompress(work, s.Opts.Level, segLen)
			if err != nil {
				return nil, fmt.Errorf("pipeline: chunk %d: lzp decompress: %w", id, err)
			}
			work = out
		}
	} else if df.Flags.Has(chunk.Compressed) {
		out, err := s.decompress(df.Flags, payload, segLen)
		if err != nil {
			return nil, fmt.Errorf("pipeline: chunk %d: codec decompress: %w", id, err)
		}
		work = out
	} else {
		work = append([]byte(nil), payload...)
	}

	var plain []byte
	if df.Flags.Has(chunk.Dedup) {
		out, err := reconstructDedup(s.Opts, s.GlobalStore, ringSlot, ring, dedupHdr, index, work)
		if err != nil {
			return nil, fmt.Errorf("pipeline: chunk %d: dedup reconstruct: %w", id, err)
		}
		plain = out
	} else {
		plain = work
	}

	if s.Cipher == nil {
		h := s.Checksum.New()
		h.Write(plain)
		if !bytes.Equal(h.Sum(nil), df.Checksum) {
			return nil, fmt.Errorf("pipeline: chunk %d: checksum mismatch", id)
		}
	}

	return plain, nil
}

func (s *Stack) decompress(flags chunk.Type, in []byte, rawLen int) ([]byte, error) {
	tag := s.Codec.Tag()
	if tag == "adapt" || tag == "adapt2" {
		return codec.DecompressByID(flags.Adaptive(), in, rawLen)
	}
	return s.Codec.Decompress(in, rawLen)
}

// reconstructDedup rebuilds one chunk's plaintext from its dedup segment.
// For Fixed/Rabin the block pool travels inline (dedup.Reconstruct); for
// Global only newly-introduced blocks travel inline, and the caller's
// shared GlobalStore, serialized through ring, both records them for later
// chunks and answers references to blocks earlier chunks introduced.
func reconstructDedup(opts config.Options, gs *dedup.GlobalStore, ringSlot int, ring *dedup.Ring, hdr dedup.Header, index, blocks []byte) ([]byte, error) {
	if opts.Dedup == config.DedupGlobal && gs != nil {
		if ring != nil {
			ring.Wait(ringSlot)
			defer ring.Signal(ringSlot + 1)
		}
		if err := gs.Append(blocks); err != nil {
			return nil, err
		}
		return gs.Reconstruct(index, hdr.BlockCount)
	}
	return dedup.Reconstruct(index, blocks, hdr.BlockCount)
}
