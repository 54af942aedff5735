package archive

import (
	"archive/tar"
	"bytes"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
)

// testEntry describes one archive member. Names use forward slashes.
type testEntry struct {
	name     string
	mode     fs.FileMode
	content  string
	dir      bool
	linkname string
}

// payloadEntries is a typical release layout wrapped in one versioned folder.
func payloadEntries() []testEntry {
	return []testEntry{
		{name: "tool-v1.2.3/", dir: true, mode: 0o755},
		{name: "tool-v1.2.3/bin/", dir: true, mode: 0o755},
		{name: "tool-v1.2.3/bin/tool", mode: 0o755, content: "#!/bin/sh\necho tool\n"},
		{name: "tool-v1.2.3/README.md", mode: 0o644, content: "# tool\n"},
		{name: "tool-v1.2.3/lib/", dir: true, mode: 0o750},
		{name: "tool-v1.2.3/lib/data.bin", mode: 0o600, content: "\x00\x01\x02"},
	}
}

func writeTarStream(t *testing.T, w io.Writer, entries []testEntry) {
	t.Helper()

	tw := tar.NewWriter(w)

	for _, e := range entries {
		hdr := &tar.Header{Name: e.name, Mode: int64(e.mode.Perm())}

		switch {
		case e.dir:
			hdr.Typeflag = tar.TypeDir
		case e.linkname != "":
			hdr.Typeflag = tar.TypeSymlink
			hdr.Linkname = e.linkname
		default:
			hdr.Typeflag = tar.TypeReg
			hdr.Size = int64(len(e.content))
		}

		require.NoError(t, tw.WriteHeader(hdr))

		if hdr.Typeflag == tar.TypeReg {
			_, err := tw.Write([]byte(e.content))
			require.NoError(t, err)
		}
	}

	require.NoError(t, tw.Close())
}

func createTarGz(t *testing.T, path string, entries []testEntry) {
	t.Helper()

	var buf bytes.Buffer

	gw := gzip.NewWriter(&buf)
	writeTarStream(t, gw, entries)
	require.NoError(t, gw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func createTarXz(t *testing.T, path string, entries []testEntry) {
	t.Helper()

	var buf bytes.Buffer

	xw, err := xz.NewWriter(&buf)
	require.NoError(t, err)
	writeTarStream(t, xw, entries)
	require.NoError(t, xw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func createTarZst(t *testing.T, path string, entries []testEntry) {
	t.Helper()

	var buf bytes.Buffer

	zw, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	writeTarStream(t, zw, entries)
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func createZip(t *testing.T, path string, entries []testEntry) {
	t.Helper()

	var buf bytes.Buffer

	zw := zip.NewWriter(&buf)

	for _, e := range entries {
		hdr := &zip.FileHeader{Name: e.name, Method: zip.Deflate}

		switch {
		case e.dir:
			hdr.SetMode(fs.ModeDir | e.mode.Perm())
		case e.linkname != "":
			hdr.SetMode(fs.ModeSymlink | 0o777)
		default:
			hdr.SetMode(e.mode.Perm())
		}

		w, err := zw.CreateHeader(hdr)
		require.NoError(t, err)

		switch {
		case e.linkname != "":
			_, err = w.Write([]byte(e.linkname))
		case !e.dir:
			_, err = w.Write([]byte(e.content))
		}

		require.NoError(t, err)
	}

	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

// treeNode is a snapshot of one path below a root.
type treeNode struct {
	Mode    fs.FileMode
	Content string
}

// snapshotTree captures relative paths, modes and file contents below root.
func snapshotTree(t *testing.T, root string) map[string]treeNode {
	t.Helper()

	tree := make(map[string]treeNode)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		node := treeNode{Mode: info.Mode()}

		switch {
		case info.Mode().IsRegular():
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}

			node.Content = string(data)
		case info.Mode()&fs.ModeSymlink != 0:
			target, err := os.Readlink(path)
			if err != nil {
				return err
			}

			node.Content = target
		}

		tree[filepath.ToSlash(rel)] = node

		return nil
	})
	require.NoError(t, err)

	return tree
}
