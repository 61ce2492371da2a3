// Command pcompress is the CLI front-end for the chunked, parallel,
// multi-algorithm compression pipeline in pkg/pipeline. It wires parsed
// flags into pkg/config.Options and pkg/archive, then drives
// pipeline.Compress/pipeline.Decompress against os.Stdin/os.Stdout or the
// named source/destination files (spec §6).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "pcompress:", err)
		os.Exit(1)
	}
}

// flagSet mirrors spec §6's flat flag surface; both the root command (for
// -c/-d drop-in familiarity with the original CLI) and the compress/
// decompress subcommands bind into the same struct.
type flagSet struct {
	compressAlgo string // -c ALGO; empty + decompress=true means -d mode
	decompress   bool   // -d
	pipe         bool   // -p

	chunkSize string // -s
	level     int    // -l
	threads   int    // -t

	dedupFixed  bool // -D
	dedupRabin  bool // -F
	dedupGlobal bool // -G
	dedupBlock  int  // -B
	delta2      bool // -E
	lzp         bool // -L

	checksum string // -S

	crypto string // -e AES|SALSA20
	pwFile string // -w
	keyLen int    // -k

	archive       bool // -a
	archiveNoSort bool // -n
	forcePerm     int  // -m, 0 means unset
	verbose       bool // -v

	src string
	dst string
}

func newRootCmd() *cobra.Command {
	fs := &flagSet{}
	root := &cobra.Command{
		Use:           "pcompress [flags] SRC [DST]",
		Short:         "chunked, parallel, multi-algorithm compression pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.RangeArgs(0, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fs.src, fs.dst = splitArgs(args)
			if fs.decompress {
				return runDecompress(cmd.Context(), fs)
			}
			if fs.compressAlgo == "" {
				return fmt.Errorf("one of -c ALGO or -d is required")
			}
			return runCompress(cmd.Context(), fs)
		},
	}
	bindFlags(root, fs)

	root.AddCommand(newCompressCmd(fs), newDecompressCmd(fs))
	return root
}

func newCompressCmd(fs *flagSet) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compress SRC [DST]",
		Short: "compress SRC into a pcompress container",
		Args:  cobra.RangeArgs(0, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fs.src, fs.dst = splitArgs(args)
			if fs.compressAlgo == "" {
				fs.compressAlgo = "zlib"
			}
			return runCompress(cmd.Context(), fs)
		},
	}
	bindFlags(cmd, fs)
	return cmd
}

func newDecompressCmd(fs *flagSet) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decompress SRC [DST]",
		Short: "decompress a pcompress container",
		Args:  cobra.RangeArgs(0, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fs.src, fs.dst = splitArgs(args)
			return runDecompress(cmd.Context(), fs)
		},
	}
	bindFlags(cmd, fs)
	return cmd
}

func bindFlags(cmd *cobra.Command, fs *flagSet) {
	f := cmd.Flags()
	f.StringVarP(&fs.compressAlgo, "compress", "c", "", "compress with ALGO (zlib, lzma, lz4, zstd, none, adapt, adapt2)")
	f.BoolVarP(&fs.decompress, "decompress", "d", false, "decompress")
	f.BoolVarP(&fs.pipe, "pipe", "p", false, "pipe mode: read stdin, write stdout")

	f.StringVarP(&fs.chunkSize, "chunk-size", "s", "", "chunk size, suffixes k|m|g (default 8m)")
	f.IntVarP(&fs.level, "level", "l", 6, "compression level 0-14")
	f.IntVarP(&fs.threads, "threads", "t", 0, "worker threads 1-256 (default: NumCPU)")

	f.BoolVarP(&fs.dedupFixed, "dedup-fixed", "D", false, "fixed-block dedup")
	f.BoolVarP(&fs.dedupRabin, "dedup-rabin", "F", false, "rabin content-defined-chunking dedup")
	f.BoolVarP(&fs.dedupGlobal, "dedup-global", "G", false, "global content-addressed dedup")
	f.IntVarP(&fs.dedupBlock, "dedup-block-class", "B", 2, "dedup block size class 0-5 (2K..64K)")
	f.BoolVarP(&fs.delta2, "delta2", "E", false, "delta2 preprocessing")
	f.BoolVarP(&fs.lzp, "lzp", "L", false, "LZP preprocessing")

	f.StringVarP(&fs.checksum, "checksum", "S", "BLAKE256", "checksum algorithm")

	f.StringVarP(&fs.crypto, "encrypt", "e", "", "encrypt with AES or SALSA20")
	f.StringVarP(&fs.pwFile, "password-file", "w", "", "read password from file instead of prompting")
	f.IntVarP(&fs.keyLen, "key-len", "k", 32, "key length in bytes, 16 or 32")

	f.BoolVarP(&fs.archive, "archive", "a", false, "archive mode: SRC is a directory")
	f.BoolVarP(&fs.archiveNoSort, "no-sort", "n", false, "disable archive member sort")
	f.IntVarP(&fs.forcePerm, "force-perm", "m", 0, "force extracted file permissions (octal)")
	f.BoolVarP(&fs.verbose, "verbose", "v", false, "verbose logging")
}

// splitArgs applies the SRC [DST] positional convention of spec §6: DST
// defaults based on direction and is handled by the caller, "-" means
// stdin/stdout.
func splitArgs(args []string) (src, dst string) {
	switch len(args) {
	case 0:
		return "-", "-"
	case 1:
		return args[0], ""
	default:
		return args[0], args[1]
	}
}
