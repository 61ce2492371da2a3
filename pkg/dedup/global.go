package dedup

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// Ring implements the index-sem ring of spec §4.4: worker k waits on its
// own semaphore before touching the shared global index, then signals
// worker (k+1) mod N's semaphore when done, guaranteeing chunks reach the
// shared index in id order even though workers run in parallel.
type Ring struct {
	sems []chan struct{}
}

// NewRing builds a ring of n semaphores with slot 0 pre-signaled, mirroring
// the worker pool's write_done[0]=1 "first buffer is free" convention
// (spec §4.5) so worker 0 does not block waiting for a signal that would
// otherwise never come.
func NewRing(n int) *Ring {
	r := &Ring{sems: make([]chan struct{}, n)}
	for i := range r.sems {
		r.sems[i] = make(chan struct{}, 1)
	}
	r.sems[0] <- struct{}{}
	return r
}

// Wait blocks until slot k's semaphore is signaled.
func (r *Ring) Wait(k int) { <-r.sems[k%len(r.sems)] }

// Signal posts to slot k's semaphore.
func (r *Ring) Signal(k int) {
	select {
	case r.sems[k%len(r.sems)] <- struct{}{}:
	default:
	}
}

// Global implements the -G global-dedupe Deduplicator variant (spec §4.4):
// a single content-addressed index shared across every chunk in the
// container, so a block repeated anywhere in the stream, not just within
// one chunk, is stored exactly once.
//
// Per spec §4.4 this requires the container not be piped and serializes
// access through a Ring: the caller must hold the chunk's worker slot
// (ring.Wait(k)) before calling Compress and release the next slot
// (ring.Signal(k+1)) only after it returns, so concurrent workers never
// race on nextID/index.
type Global struct {
	BlockSize int

	index  map[uint64]uint32 // content hash -> global block id
	nextID uint32
}

// NewGlobal builds the shared index. One Global instance is shared by every
// worker for the lifetime of the pipeline.
func NewGlobal(blockSize int) *Global {
	return &Global{BlockSize: blockSize, index: make(map[uint64]uint32)}
}

// Compress deduplicates one chunk's plaintext against the shared global
// index. Unlike Fixed/Rabin, Result.Blocks here holds only the blocks this
// call newly introduces to the global index; blocks already known from an
// earlier chunk are referenced by id only, with their bytes recovered on
// decompression from the materialized store (GlobalStore).
func (g *Global) Compress(in []byte) (Result, bool, error) {
	if g.BlockSize <= 0 {
		return Result{}, false, nil
	}
	var blocks [][]byte
	for off := 0; off < len(in); off += g.BlockSize {
		end := off + g.BlockSize
		if end > len(in) {
			end = len(in)
		}
		blocks = append(blocks, in[off:end])
	}

	index := make([]byte, len(blocks)*4)
	var newBlocks [][]byte
	anyKnown := false

	for i, b := range blocks {
		h := fnvHash(b)
		id, ok := g.index[h]
		if !ok {
			id = g.nextID
			g.nextID++
			g.index[h] = id
			newBlocks = append(newBlocks, b)
		} else {
			anyKnown = true
		}
		binary.BigEndian.PutUint32(index[i*4:i*4+4], id)
	}

	var varintBuf [binary.MaxVarintLen64]byte
	var blockBuf []byte
	for _, b := range newBlocks {
		n := binary.PutUvarint(varintBuf[:], uint64(len(b)))
		blockBuf = append(blockBuf, varintBuf[:n]...)
		blockBuf = append(blockBuf, b...)
	}

	res := Result{
		Header: Header{
			BlockCount: uint32(len(blocks)),
			IndexSize:  uint64(len(index)),
			DataSize:   uint64(len(blockBuf)),
			ChunkSize:  uint64(len(in)),
		},
		Index:  index,
		Blocks: blockBuf,
	}
	// Worth keeping as a dedup frame if this chunk referenced at least one
	// block already known globally, or introduced fewer unique blocks than
	// total block positions (intra-chunk redundancy too).
	valid := anyKnown || len(newBlocks) < len(blocks)
	return res, valid, nil
}

// GlobalStore materializes unique blocks into a temp file on the
// decompression side, in the order their owning chunks are decoded,
// mirroring the order the Ring enforced during compression (spec §4.4:
// "the same ring ensures in-order materialization into a temporary data
// file used for back-references").
type GlobalStore struct {
	file    *os.File
	offsets []int64 // offsets[id] = byte offset of block id's length-prefixed record
	path    string
}

// NewGlobalStore creates the temp data file under dir (spec §6:
// PCOMPRESS_CACHE_DIR); an empty dir means os.TempDir, as with
// os.CreateTemp.
func NewGlobalStore(dir string) (*GlobalStore, error) {
	f, err := os.CreateTemp(dir, "pcompress-dedup-*.data")
	if err != nil {
		return nil, fmt.Errorf("dedup: create temp data file: %w", err)
	}
	return &GlobalStore{file: f, path: f.Name()}, nil
}

// Close removes the temp data file (spec §6: "unlinked on completion").
func (s *GlobalStore) Close() error {
	s.file.Close()
	return os.Remove(s.path)
}

// Append writes newBlocks (the same length-prefixed form Result.Blocks
// uses) to the store, assigning them the next sequential global ids.
func (s *GlobalStore) Append(newBlocks []byte) error {
	uniques, err := splitBlocks(newBlocks)
	if err != nil {
		return err
	}
	for _, b := range uniques {
		off, err := s.file.Seek(0, io.SeekEnd)
		if err != nil {
			return err
		}
		var varintBuf [binary.MaxVarintLen64]byte
		n := binary.PutUvarint(varintBuf[:], uint64(len(b)))
		if _, err := s.file.Write(varintBuf[:n]); err != nil {
			return err
		}
		if _, err := s.file.Write(b); err != nil {
			return err
		}
		s.offsets = append(s.offsets, off)
	}
	return nil
}

// Reconstruct rebuilds one chunk's plaintext from its index: entries name
// global ids, satisfied either by blocks this chunk just introduced
// (appended via Append before calling Reconstruct) or by blocks already
// present from an earlier chunk.
func (s *GlobalStore) Reconstruct(index []byte, blockCount uint32) ([]byte, error) {
	out := make([]byte, 0, int(blockCount)*4096)
	for i := uint32(0); i < blockCount; i++ {
		off := i * 4
		if int(off)+4 > len(index) {
			return nil, errShortIndex
		}
		id := binary.BigEndian.Uint32(index[off : off+4])
		b, err := s.read(id)
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	return out, nil
}

func (s *GlobalStore) read(id uint32) ([]byte, error) {
	if int(id) >= len(s.offsets) {
		return nil, errBadBlockRef
	}
	lenBuf := make([]byte, binary.MaxVarintLen64)
	n2, err := s.file.ReadAt(lenBuf, s.offsets[id])
	if err != nil && err != io.EOF {
		return nil, err
	}
	l, n := binary.Uvarint(lenBuf[:n2])
	if n <= 0 {
		return nil, errShortBlocks
	}
	data := make([]byte, l)
	dataOff := s.offsets[id] + int64(n)
	if _, err := s.file.ReadAt(data, dataOff); err != nil && err != io.EOF {
		return nil, err
	}
	return data, nil
}
