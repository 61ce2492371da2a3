package pipeline

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"

	"github.com/gburd/pcompress-go/pkg/chunk"
	"github.com/gburd/pcompress-go/pkg/codec"
	"github.com/gburd/pcompress-go/pkg/config"
	"github.com/gburd/pcompress-go/pkg/container"
	"github.com/gburd/pcompress-go/pkg/crypt"
	"github.com/gburd/pcompress-go/pkg/dedup"
	"github.com/gburd/pcompress-go/pkg/integrity"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Compress reads plaintext from r, applies the full container pipeline,
// and writes a complete container (header, chunk frames, trailer) to w
// (spec §1, §4). password is nil when opts.Crypto is config.CryptoNone.
func Compress(ctx context.Context, log *logrus.Logger, r io.Reader, w io.Writer, opts config.Options, password []byte) error {
	cdc, err := codec.Lookup(opts.Algo)
	if err != nil {
		return err
	}
	props := cdc.Props(opts.Level, opts.ChunkSize)
	singleChunk := props.IsSingleChunk
	nWorkers := config.ResolveThreads(opts.Threads, singleChunk)

	algo, err := integrity.Lookup(opts.Checksum)
	if err != nil {
		return err
	}
	encrypted := opts.Crypto != config.CryptoNone

	hdr := container.Header{
		Algo:      opts.Algo,
		Version:   config.Version,
		ChunkSize: opts.ChunkSize,
		Level:     int32(opts.Level),
		Flags:     uint16(opts.Checksum),
	}
	if singleChunk {
		hdr.Flags |= config.FlagSingleChunk
	}
	if opts.Archive {
		hdr.Flags |= config.FlagArchive
	}

	var cipher crypt.Cipher
	var derivedKey []byte
	if encrypted {
		hdr.Flags |= uint16(opts.Crypto)
		saltLen := 32
		salt := make([]byte, saltLen)
		if _, err := rand.Read(salt); err != nil {
			return fmt.Errorf("pipeline: generate salt: %w", err)
		}
		nonceLen := crypt.NonceSize(cryptoName(opts.Crypto))
		nonce := make([]byte, nonceLen)
		if _, err := rand.Read(nonce); err != nil {
			return fmt.Errorf("pipeline: generate nonce: %w", err)
		}
		key := crypt.DeriveKey(password, salt, opts.KeyLen)
		derivedKey = key
		defer crypt.Zero(key)
		cipher, err = crypt.New(opts.Crypto, key, nonce)
		if err != nil {
			return err
		}
		hdr.Salt = salt
		hdr.Nonce = nonce
		hdr.KeyLen = uint32(opts.KeyLen)
	}

	var dedupMode dedup.Deduplicator
	var globalDedup *dedup.Global
	var ring *dedup.Ring
	if opts.Dedup != config.DedupNone {
		hdr.Flags |= config.FlagDedup
		blockSize, berr := config.DedupBlockSize(opts.DedupBlockClass)
		if berr != nil {
			return berr
		}
		switch opts.Dedup {
		case config.DedupFixed:
			hdr.Flags |= config.FlagDedupFixed
			dedupMode = dedup.NewFixed(blockSize)
		case config.DedupRabin:
			dedupMode = dedup.NewRabin(blockSize)
		case config.DedupGlobal:
			hdr.Flags |= config.FlagDedupGlobal
			globalDedup = dedup.NewGlobal(blockSize)
			dedupMode = globalDedup
			ring = dedup.NewRing(nWorkers)
		}
	}

	tagger := integrity.NewTagger(algo, encrypted, derivedKey)
	headerTagSize := tagger.Size()
	if err := container.Encode(w, hdr, headerTagSize, tagger.Compute); err != nil {
		return err
	}

	cksumBytes, macBytes := integrity.FrameSizes(algo, encrypted)
	layout := container.FrameLayout{CksumBytes: cksumBytes, MACBytes: macBytes}

	stack := &Stack{Opts: opts, Codec: cdc, Checksum: algo, Cipher: cipher, Dedup: dedupMode}

	return runCompressPool(ctx, log, r, w, stack, layout, tagger, opts.ChunkSize, nWorkers, ring)
}

func cryptoName(a config.CryptoAlgo) string {
	if a == config.CryptoSalsa20 {
		return "SALSA20"
	}
	return "AES"
}

type compressReadResult struct {
	id     uint64
	data   []byte
	isLast bool
}

type compressWorkResult struct {
	chunk  chunk.Chunk
	isLast bool
}

// runCompressPool implements the worker pool / dispatcher of spec §4.5:
// one reader goroutine cutting the input into chunks and round-robining
// them to nWorkers worker goroutines, which transform independently; one
// writer goroutine drains workers in strict round-robin order so chunk
// order is preserved in the output regardless of which worker finishes
// first. Per-worker start/cmpDone/writeDone channels are the 3-semaphore
// handshake spec §4.5 describes.
func runCompressPool(ctx context.Context, log *logrus.Logger, r io.Reader, w io.Writer, stack *Stack, layout container.FrameLayout, tagger integrity.Tagger, chunkSize int64, nWorkers int, ring *dedup.Ring) error {
	// A chunk frame with len_cmp == 0 is indistinguishable from the
	// container trailer (spec §8), so a wholly empty input must never be
	// dispatched as a zero-payload chunk; it produces no chunk frames at
	// all, just the trailer.
	buf := make([]byte, chunkSize)
	n, rerr := io.ReadFull(r, buf)
	if rerr == io.ErrUnexpectedEOF {
		rerr = nil
	}
	if n == 0 {
		if rerr != nil && rerr != io.EOF {
			return fmt.Errorf("pipeline: read input: %w", rerr)
		}
		return container.EncodeTrailer(w)
	}
	firstChunk := buf[:n]
	firstErr := rerr

	start := make([]chan compressReadResult, nWorkers)
	cmpDone := make([]chan compressWorkResult, nWorkers)
	writeDone := make([]chan struct{}, nWorkers)
	for k := 0; k < nWorkers; k++ {
		start[k] = make(chan compressReadResult, 1)
		cmpDone[k] = make(chan compressWorkResult, 1)
		writeDone[k] = make(chan struct{}, 1)
		writeDone[k] <- struct{}{}
	}

	errs := make([]error, nWorkers)

	g, gctx := errgroup.WithContext(ctx)

	for k := 0; k < nWorkers; k++ {
		k := k
		g.Go(func() error {
			for item := range start[k] {
				c, err := stack.CompressChunk(item.id, item.data, chunkSize, k, ring)
				if err != nil {
					errs[k] = err
					cmpDone[k] <- compressWorkResult{isLast: item.isLast}
					return err
				}
				select {
				case cmpDone[k] <- compressWorkResult{chunk: c, isLast: item.isLast}:
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
		// readChunk reads up to chunkSize bytes, reporting io.EOF only once
		// zero bytes were read (so a final chunk that happens to fill buf
		// exactly is not mistaken for eof here).
		readChunk := func() ([]byte, error) {
			buf := make([]byte, chunkSize)
			n, err := io.ReadFull(r, buf)
			if err == io.ErrUnexpectedEOF {
				err = nil
			}
			if n == 0 {
				return nil, io.EOF
			}
			return buf[:n], err
		}

		// One-chunk lookahead: isLast is only known once the NEXT read
		// comes back empty, so the reader always holds one buffered chunk
		// back from dispatch. The first chunk was already read above to
		// rule out the wholly-empty-input case before the pool started.
		cur, err := firstChunk, firstErr
		if err != nil && err != io.EOF {
			return fmt.Errorf("pipeline: read input: %w", err)
		}
		var id uint64
		for {
			next, nerr := readChunk()
			if nerr != nil && nerr != io.EOF {
				return fmt.Errorf("pipeline: read input: %w", nerr)
			}
			isLast := nerr == io.EOF

			k := int(id) % nWorkers
			select {
			case <-writeDone[k]:
			case <-gctx.Done():
				return gctx.Err()
			}
			select {
			case start[k] <- compressReadResult{id: id, data: cur, isLast: isLast}:
			case <-gctx.Done():
				return gctx.Err()
			}
			if isLast {
				return nil
			}
			cur = next
			id++
		}
	})

	g.Go(func() error {
		var id uint64
		for {
			k := int(id) % nWorkers
			var res compressWorkResult
			select {
			case res = <-cmpDone[k]:
			case <-gctx.Done():
				return gctx.Err()
			}
			if errs[k] != nil {
				return errs[k]
			}
			frame, err := layout.Encode(res.chunk, tagger.Compute)
			if err != nil {
				return fmt.Errorf("pipeline: encode frame %d: %w", id, err)
			}
			if _, err := w.Write(frame); err != nil {
				return fmt.Errorf("pipeline: write frame %d: %w", id, err)
			}
			if log != nil {
				log.Debugf("wrote chunk %d (%d bytes payload)", id, len(res.chunk.Payload))
			}
			select {
			case writeDone[k] <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			if res.isLast {
				return container.EncodeTrailer(w)
			}
			id++
		}
	})

	return g.Wait()
}
