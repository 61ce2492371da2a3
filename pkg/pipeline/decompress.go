package pipeline

import (
	"context"
	"fmt"
	"io"

	"github.com/gburd/pcompress-go/pkg/codec"
	"github.com/gburd/pcompress-go/pkg/config"
	"github.com/gburd/pcompress-go/pkg/container"
	"github.com/gburd/pcompress-go/pkg/crypt"
	"github.com/gburd/pcompress-go/pkg/dedup"
	"github.com/gburd/pcompress-go/pkg/integrity"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Decompress reads a complete container from r and writes the reconstructed
// plaintext to w (spec §1, §4, §7). password is nil when the container is
// unencrypted; cacheDir selects where a -G global-dedupe temp data file is
// created (spec §6, PCOMPRESS_CACHE_DIR), "" meaning os.TempDir.
func Decompress(ctx context.Context, log *logrus.Logger, r io.Reader, w io.Writer, password []byte, cacheDir string) error {
	hdr, rawFixed, err := container.DecodeFixed(r)
	if err != nil {
		return err
	}
	if !config.AcceptsVersion(hdr.Version) {
		return fmt.Errorf("pipeline: container version %d not supported (reader is version %d, window %d)", hdr.Version, config.Version, config.CompatWindow)
	}

	algo, err := integrity.Lookup(hdr.Checksum())
	if err != nil {
		return err
	}
	encrypted := hdr.Encrypted()
	rawHeader := rawFixed

	var cipher crypt.Cipher
	var derivedKey []byte
	if encrypted {
		nonceLen := crypt.NonceSize(cryptoName(hdr.CryptoAlgo()))
		rawHeader, err = container.DecodeCryptoExt(r, &hdr, nonceLen, rawHeader)
		if err != nil {
			return err
		}
		key := crypt.DeriveKey(password, hdr.Salt, int(hdr.KeyLen))
		derivedKey = key
		defer crypt.Zero(key)
		cipher, err = crypt.New(hdr.CryptoAlgo(), key, hdr.Nonce)
		if err != nil {
			return err
		}
	}

	tagger := integrity.NewTagger(algo, encrypted, derivedKey)
	if tagger.Size() > 0 {
		tag := make([]byte, tagger.Size())
		if _, err := io.ReadFull(r, tag); err != nil {
			return fmt.Errorf("pipeline: short read on header tag: %w", err)
		}
		if !tagger.Verify(rawHeader, tag) {
			return fmt.Errorf("pipeline: header integrity tag mismatch")
		}
	}

	cdc, err := codec.Lookup(hdr.Algo)
	if err != nil {
		return err
	}
	singleChunk := hdr.Flags&config.FlagSingleChunk != 0
	nWorkers := config.ResolveThreads(0, singleChunk)

	// Which Deduplicator variant was used only matters for decoding: Fixed
	// and Rabin share one stateless Reconstruct, global dedup needs the
	// materialized-block store and its ordering ring (spec §4.4). Per-chunk
	// LZP/delta2 use is recorded on the wire (chunk.Flags.Preproc + its
	// sub-header), not in container-level flags, so nothing else is needed.
	opts := config.Options{Algo: hdr.Algo, Level: int(hdr.Level), Crypto: hdr.CryptoAlgo(), Checksum: hdr.Checksum()}
	var globalStore *dedup.GlobalStore
	var ring *dedup.Ring
	if hdr.Flags&config.FlagDedup != 0 {
		switch {
		case hdr.Flags&config.FlagDedupGlobal != 0:
			opts.Dedup = config.DedupGlobal
			gs, gerr := dedup.NewGlobalStore(cacheDir)
			if gerr != nil {
				return gerr
			}
			globalStore = gs
			defer globalStore.Close()
			ring = dedup.NewRing(nWorkers)
		case hdr.Flags&config.FlagDedupFixed != 0:
			opts.Dedup = config.DedupFixed
		default:
			opts.Dedup = config.DedupRabin
		}
	}

	cksumBytes, macBytes := integrity.FrameSizes(algo, encrypted)
	layout := container.FrameLayout{CksumBytes: cksumBytes, MACBytes: macBytes}

	stack := &Stack{Opts: opts, Codec: cdc, Checksum: algo, Cipher: cipher, GlobalStore: globalStore}

	return runDecompressPool(ctx, log, r, w, stack, layout, tagger, hdr.ChunkSize, nWorkers, ring)
}

type decompressReadResult struct {
	id     uint64
	frame  container.DecodedFrame
	isLast bool
}

type decompressWorkResult struct {
	data   []byte
	isLast bool
}

// runDecompressPool mirrors runCompressPool: the container's frames are
// strictly ordered on disk, so the reader goroutine decodes them
// sequentially, but still round-robins the decoded frames to nWorkers
// workers so decompression itself runs in parallel; the writer drains
// workers in the same strict order to reproduce the original byte stream.
func runDecompressPool(ctx context.Context, log *logrus.Logger, r io.Reader, w io.Writer, stack *Stack, layout container.FrameLayout, tagger integrity.Tagger, chunkSize int64, nWorkers int, ring *dedup.Ring) error {
	start := make([]chan decompressReadResult, nWorkers)
	cmpDone := make([]chan decompressWorkResult, nWorkers)
	writeDone := make([]chan struct{}, nWorkers)
	for k := 0; k < nWorkers; k++ {
		start[k] = make(chan decompressReadResult, 1)
		cmpDone[k] = make(chan decompressWorkResult, 1)
		writeDone[k] = make(chan struct{}, 1)
		writeDone[k] <- struct{}{}
	}

	errs := make([]error, nWorkers)
	g, gctx := errgroup.WithContext(ctx)

	for k := 0; k < nWorkers; k++ {
		k := k
		g.Go(func() error {
			for item := range start[k] {
				if item.frame.LenCmp == 0 {
					// trailer reached with nothing to decode for this slot
					select {
					case cmpDone[k] <- decompressWorkResult{isLast: true}:
					case <-gctx.Done():
						return gctx.Err()
					}
					return nil
				}
				plain, err := stack.DecompressChunk(item.id, item.frame, chunkSize, k, ring)
				if err != nil {
					errs[k] = err
					cmpDone[k] <- decompressWorkResult{isLast: item.isLast}
					return err
				}
				select {
				case cmpDone[k] <- decompressWorkResult{data: plain, isLast: item.isLast}:
				case <-gctx.Done():
					return gctx.Err()
				}
				if item.isLast {
					return nil
				}
			}
			return nil
		})
	}

	g.Go(func() error {
		defer func() {
			for k := 0; k < nWorkers; k++ {
				close(start[k])
			}
		}()
		var id uint64
		for {
			frame, err := layout.DecodeOne(r)
			if err != nil {
				return fmt.Errorf("pipeline: decode frame %d: %w", id, err)
			}
			isLast := frame.LenCmp == 0
			if !isLast && !tagger.Verify(frame.Raw, frame.MAC) {
				return fmt.Errorf("pipeline: frame %d: integrity tag mismatch", id)
			}
			k := int(id) % nWorkers
			select {
			case <-writeDone[k]:
			case <-gctx.Done():
				return gctx.Err()
			}
			select {
			case start[k] <- decompressReadResult{id: id, frame: frame, isLast: isLast}:
			case <-gctx.Done():
				return gctx.Err()
			}
			if isLast {
				return nil
			}
			id++
		}
	})

	g.Go(func() error {
		var id uint64
		for {
			k := int(id) % nWorkers
			var res decompressWorkResult
			select {
			case res = <-cmpDone[k]:
			case <-gctx.Done():
				return gctx.Err()
			}
			if errs[k] != nil {
				return errs[k]
			}
			if res.isLast && res.data == nil {
				return nil
			}
			if _, err := w.Write(res.data); err != nil {
				return fmt.Errorf("pipeline: write output chunk %d: %w", id, err)
			}
			if log != nil {
				log.Debugf("wrote chunk %d (%d bytes plaintext)", id, len(res.data))
			}
			select {
			case writeDone[k] <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			if res.isLast {
				return nil
			}
			id++
		}
	})

	return g.Wait()
}
