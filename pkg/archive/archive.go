// Package archive implements the directory-tree-to-byte-stream adapter of
// spec §1/§8 scenario 4: "delegated to a standard archive library" means
// the archiver's job here is ordering and framing, not codec work. It
// walks a tree, sorts entries by extension then size ascending (matching
// the original pcompress.c member sort, spec §12), and streams a
// stdlib archive/tar (PAX format) byte sequence that the pipeline treats
// as an opaque plaintext source/sink.
package archive

import (
	"archive/tar"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// entry is one file discovered by a Walker, carrying just enough to sort
// and then stream it.
type entry struct {
	relPath string
	absPath string
	info    os.FileInfo
}

// Walker turns a directory tree into a single ordered stream of tar
// entries. One Walker instance is scoped to a single archive operation
// (spec §9: concurrent archiver invocation is not supported, and nothing
// here is a package global, so nothing needs a lock to exclude it).
type Walker struct {
	Root   string
	NoSort bool // -n: preserve filesystem walk order instead of ext/size sort
}

// NewWalker builds a Walker rooted at root.
func NewWalker(root string, noSort bool) *Walker {
	return &Walker{Root: root, NoSort: noSort}
}

// sortKey returns the extension (lowercased, including the leading dot)
// used as the primary sort key, matching the original's "sort by
// extension, or by name if no extension" member comparator (spec §12).
func sortKey(name string) string {
	ext := filepath.Ext(name)
	if ext == "" {
		return strings.ToLower(name)
	}
	return strings.ToLower(ext)
}

// collect walks Root and returns every regular file, directory, and
// symlink under it, relative paths always using "/" as the original pax
// format requires (converted here with filepath.ToSlash).
func (wk *Walker) collect() ([]entry, error) {
	var entries []entry
	err := filepath.WalkDir(wk.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == wk.Root {
			return nil
		}
		info, ierr := d.Info()
		if ierr != nil {
			return ierr
		}
		rel, rerr := filepath.Rel(wk.Root, path)
		if rerr != nil {
			return rerr
		}
		entries = append(entries, entry{relPath: filepath.ToSlash(rel), absPath: path, info: info})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("archive: walk %s: %w", wk.Root, err)
	}
	if !wk.NoSort {
		sort.SliceStable(entries, func(i, j int) bool {
			ki, kj := sortKey(entries[i].relPath), sortKey(entries[j].relPath)
			if ki != kj {
				return ki < kj
			}
			return entries[i].info.Size() < entries[j].info.Size()
		})
	}
	return entries, nil
}

// WriteTo streams the tree as a PAX-format tar archive to w (spec §12).
// Symlinks are preserved as link records; regular files' contents follow
// their header. Member order is the sort from collect, so decompressing
// and extracting reproduces the same logical tree regardless of which
// order the filesystem originally returned entries in.
func (wk *Walker) WriteTo(w io.Writer) error {
	entries, err := wk.collect()
	if err != nil {
		return err
	}
	tw := tar.NewWriter(w)
	for _, e := range entries {
		if err := writeEntry(tw, wk.Root, e); err != nil {
			return err
		}
	}
	return tw.Close()
}

func writeEntry(tw *tar.Writer, root string, e entry) error {
	link := ""
	if e.info.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(e.absPath)
		if err != nil {
			return fmt.Errorf("archive: readlink %s: %w", e.relPath, err)
		}
		link = target
	}
	hdr, err := tar.FileInfoHeader(e.info, link)
	if err != nil {
		return fmt.Errorf("archive: header for %s: %w", e.relPath, err)
	}
	hdr.Name = e.relPath
	hdr.Format = tar.FormatPAX
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("archive: write header %s: %w", e.relPath, err)
	}
	if hdr.Typeflag != tar.TypeReg {
		return nil
	}
	f, err := os.Open(e.absPath)
	if err != nil {
		return fmt.Errorf("archive: open %s: %w", e.relPath, err)
	}
	defer f.Close()
	if _, err := io.Copy(tw, f); err != nil {
		return fmt.Errorf("archive: copy %s: %w", e.relPath, err)
	}
	return nil
}

// ExtractTo reverses WriteTo: it reads a tar stream from r and recreates
// the tree under destRoot, preserving permissions, mtimes, and symlinks
// (spec §8 scenario 4: "decompression recreates the tree with original
// permissions and mtimes"). forcePerm, when non-nil, overrides every
// extracted file's mode instead of using the one recorded in the header
// (-m, spec §6).
func ExtractTo(r io.Reader, destRoot string, forcePerm *os.FileMode) error {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("archive: read header: %w", err)
		}
		target := filepath.Join(destRoot, filepath.FromSlash(hdr.Name))
		if !strings.HasPrefix(target, filepath.Clean(destRoot)+string(os.PathSeparator)) && target != filepath.Clean(destRoot) {
			return fmt.Errorf("archive: entry %q escapes destination", hdr.Name)
		}
		mode := hdr.FileInfo().Mode()
		if forcePerm != nil {
			mode = *forcePerm
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, mode.Perm()); err != nil {
				return fmt.Errorf("archive: mkdir %s: %w", target, err)
			}
		case tar.TypeSymlink:
			if err := os.Symlink(hdr.Linkname, target); err != nil && !os.IsExist(err) {
				return fmt.Errorf("archive: symlink %s: %w", target, err)
			}
			continue
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("archive: mkdir %s: %w", filepath.Dir(target), err)
			}
			if err := extractFile(tr, target, mode.Perm()); err != nil {
				return err
			}
		default:
			continue
		}
		if err := os.Chtimes(target, hdr.ModTime, hdr.ModTime); err != nil {
			return fmt.Errorf("archive: chtimes %s: %w", target, err)
		}
	}
}

func extractFile(r io.Reader, target string, perm os.FileMode) error {
	f, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return fmt.Errorf("archive: create %s: %w", target, err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("archive: write %s: %w", target, err)
	}
	return nil
}
