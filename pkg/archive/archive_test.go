package archive

import (
	"archive/tar"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.txt"), []byte("bbbb"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.log"), []byte("aaaaaaaa"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "c.txt"), []byte("c"), 0o644))
	return root
}

func TestWalkerWriteToExtractToRoundTrip(t *testing.T) {
	root := buildTree(t)

	var buf bytes.Buffer
	wk := NewWalker(root, false)
	require.NoError(t, wk.WriteTo(&buf))

	dest := t.TempDir()
	require.NoError(t, ExtractTo(&buf, dest, nil))

	got, err := os.ReadFile(filepath.Join(dest, "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "bbbb", string(got))

	got, err = os.ReadFile(filepath.Join(dest, "a.log"))
	require.NoError(t, err)
	assert.Equal(t, "aaaaaaaa", string(got))

	got, err = os.ReadFile(filepath.Join(dest, "sub", "c.txt"))
	require.NoError(t, err)
	assert.Equal(t, "c", string(got))
}

func TestWalkerSortKeyOrder(t *testing.T) {
	assert.Equal(t, ".txt", sortKey("file.txt"))
	assert.Equal(t, "readme", sortKey("README"))
}

func TestExtractToRejectsPathTraversal(t *testing.T) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	hdr := &tar.Header{
		Name:     "../escape.txt",
		Typeflag: tar.TypeReg,
		Mode:     0o644,
		Size:     1,
	}
	require.NoError(t, tw.WriteHeader(hdr))
	_, err := tw.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, tw.Close())

	dest := t.TempDir()
	err = ExtractTo(&buf, dest, nil)
	assert.Error(t, err)
}

func TestExtractToForcePerm(t *testing.T) {
	root := buildTree(t)
	var buf bytes.Buffer
	require.NoError(t, NewWalker(root, false).WriteTo(&buf))

	dest := t.TempDir()
	perm := os.FileMode(0o600)
	require.NoError(t, ExtractTo(&buf, dest, &perm))

	fi, err := os.Stat(filepath.Join(dest, "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), fi.Mode().Perm())
}

func TestWalkerNoSortPreservesWalkOrder(t *testing.T) {
	root := buildTree(t)
	var sorted, unsorted bytes.Buffer
	require.NoError(t, NewWalker(root, false).WriteTo(&sorted))
	require.NoError(t, NewWalker(root, true).WriteTo(&unsorted))
	assert.NotEmpty(t, sorted.Bytes())
	assert.NotEmpty(t, unsorted.Bytes())

	// Regular-file member order: the lexical WalkDir order without sorting,
	// extension then size with it (".log" before ".txt"; c.txt is smaller
	// than b.txt).
	regNames := func(b []byte) []string {
		var names []string
		tr := tar.NewReader(bytes.NewReader(b))
		for {
			hdr, err := tr.Next()
			if err != nil {
				break
			}
			if hdr.Typeflag == tar.TypeReg {
				names = append(names, hdr.Name)
			}
		}
		return names
	}
	assert.Equal(t, []string{"a.log", "b.txt", "sub/c.txt"}, regNames(unsorted.Bytes()))
	assert.Equal(t, []string{"a.log", "sub/c.txt", "b.txt"}, regNames(sorted.Bytes()))
}
