package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/gburd/pcompress-go/pkg/archive"
	"github.com/gburd/pcompress-go/pkg/config"
	"github.com/gburd/pcompress-go/pkg/pipeline"
	"github.com/gburd/pcompress-go/pkg/plog"
)

// defaultDest applies spec §6's DST default: SRC.pz for compress, SRC with
// the .pz suffix stripped for decompress, "-" meaning stdout either way.
func defaultDest(src, dst string, suffix string, strip bool) string {
	if dst != "" {
		return dst
	}
	if src == "-" {
		return "-"
	}
	if strip {
		return strings.TrimSuffix(src, suffix)
	}
	return src + suffix
}

func openSrc(path string) (io.ReadCloser, error) {
	if path == "-" || path == "" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

func createDst(path string) (io.WriteCloser, error) {
	if path == "-" {
		return nopWriteCloser{os.Stdout}, nil
	}
	return os.Create(path)
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// unlinkOnError removes a half-written destination file on a fatal error
// (spec §6: "partial output files are unlinked on failure"), never
// touching stdout.
func unlinkOnError(path string, failed bool) {
	if failed && path != "-" && path != "" {
		os.Remove(path)
	}
}

func buildOptions(fs *flagSet) (config.Options, error) {
	opts := config.Options{
		Algo:          fs.compressAlgo,
		Level:         fs.level,
		Threads:       fs.threads,
		Delta2:        fs.delta2,
		LZP:           fs.lzp,
		Archive:       fs.archive,
		ArchiveNoSort: fs.archiveNoSort,
		Pipe:          fs.pipe,
		Verbose:       fs.verbose,
		PwFile:        fs.pwFile,
		KeyLen:        fs.keyLen,
	}
	chunkSize, err := config.ParseChunkSize(fs.chunkSize)
	if err != nil {
		return opts, err
	}
	opts.ChunkSize = chunkSize

	checksum, err := config.ParseChecksumName(fs.checksum)
	if err != nil {
		return opts, err
	}
	opts.Checksum = checksum

	switch {
	case fs.dedupGlobal:
		opts.Dedup = config.DedupGlobal
	case fs.dedupFixed:
		opts.Dedup = config.DedupFixed
	case fs.dedupRabin:
		opts.Dedup = config.DedupRabin
	}
	opts.DedupBlockClass = fs.dedupBlock

	switch strings.ToUpper(fs.crypto) {
	case "":
		opts.Crypto = config.CryptoNone
	case "AES":
		opts.Crypto = config.CryptoAES
	case "SALSA20":
		opts.Crypto = config.CryptoSalsa20
	default:
		return opts, fmt.Errorf("unknown encryption algorithm %q", fs.crypto)
	}
	if fs.dedupGlobal && (opts.Archive || fs.pipe) {
		return opts, fmt.Errorf("global dedup (-G) requires a seekable, non-piped container (spec §4.4)")
	}
	return opts, nil
}

func runCompress(ctx context.Context, fs *flagSet) (err error) {
	opts, err := buildOptions(fs)
	if err != nil {
		return err
	}
	log := plog.New(fs.verbose)

	var password []byte
	if opts.Crypto != config.CryptoNone {
		password, err = resolvePassword(fs.pwFile, fs.pwFile == "")
		if err != nil {
			return err
		}
	}

	dstPath := defaultDest(fs.src, fs.dst, ".pz", false)
	dst, err := createDst(dstPath)
	if err != nil {
		return err
	}
	defer func() {
		dst.Close()
		unlinkOnError(dstPath, err != nil)
	}()

	if opts.Archive {
		err = compressArchive(ctx, log, fs.src, dst, opts, password)
		return err
	}

	src, err := openSrc(fs.src)
	if err != nil {
		return err
	}
	defer src.Close()

	err = pipeline.Compress(ctx, log, src, dst, opts, password)
	return err
}

// compressArchive streams archive.Walker's tar output through an in-memory
// pipe straight into pipeline.Compress, so the archiver and the pipeline
// never need a staging file on disk (spec §1: the archiver is "an opaque
// byte source ... feeding the pipeline").
func compressArchive(ctx context.Context, log *logrus.Logger, root string, dst io.Writer, opts config.Options, password []byte) error {
	pr, pw := io.Pipe()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		wk := archive.NewWalker(root, opts.ArchiveNoSort)
		err := wk.WriteTo(pw)
		pw.CloseWithError(err)
		return err
	})
	g.Go(func() error {
		return pipeline.Compress(gctx, log, pr, dst, opts, password)
	})
	return g.Wait()
}

func runDecompress(ctx context.Context, fs *flagSet) (err error) {
	// buildOptions is only consulted here for its flag-validation side
	// effects (chunk size suffix, checksum name, crypto name): a
	// container's actual pipeline configuration always comes from its own
	// header (spec §4.1), never from flags the user happens to pass to
	// decompress.
	if _, err := buildOptions(fs); err != nil {
		return err
	}
	log := plog.New(fs.verbose)

	// The container header names its own crypto algorithm; the CLI can't
	// know ahead of reading it whether a password is actually needed. -w
	// resolves it eagerly; with no -w, prompt only when a terminal is
	// actually attached to stdin, so piping an unencrypted container
	// through a shell pipeline never blocks on a password nobody has.
	var password []byte
	if fs.pwFile != "" {
		password, err = resolvePassword(fs.pwFile, false)
		if err != nil {
			return err
		}
	} else if fi, statErr := os.Stdin.Stat(); statErr == nil && fi.Mode()&os.ModeCharDevice != 0 {
		password, err = resolvePassword("", false)
		if err != nil {
			return err
		}
	}

	cacheDir := os.Getenv("PCOMPRESS_CACHE_DIR")

	dstPath := defaultDest(fs.src, fs.dst, ".pz", true)
	if fs.archive {
		src, srcErr := openSrc(fs.src)
		if srcErr != nil {
			return srcErr
		}
		defer src.Close()
		return decompressArchive(ctx, log, src, dstPath, password, cacheDir, fs.forcePerm)
	}

	src, err := openSrc(fs.src)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := createDst(dstPath)
	if err != nil {
		return err
	}
	defer func() {
		dst.Close()
		unlinkOnError(dstPath, err != nil)
	}()

	err = pipeline.Decompress(ctx, log, src, dst, password, cacheDir)
	return err
}

func decompressArchive(ctx context.Context, log *logrus.Logger, src io.Reader, destRoot string, password []byte, cacheDir string, forcePerm int) error {
	if err := os.MkdirAll(destRoot, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", destRoot, err)
	}
	pr, pw := io.Pipe()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := pipeline.Decompress(gctx, log, src, pw, password, cacheDir)
		pw.CloseWithError(err)
		return err
	})
	g.Go(func() error {
		var perm *os.FileMode
		if forcePerm != 0 {
			m := os.FileMode(forcePerm)
			perm = &m
		}
		return archive.ExtractTo(pr, destRoot, perm)
	})
	return g.Wait()
}
