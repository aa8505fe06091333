package fileset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDigest(t *testing.T) {
	assert.Equal(t, Digest([]byte("hello")), Digest([]byte("hello")))
	assert.NotEqual(t, Digest([]byte("hello")), Digest([]byte("world")))
	// sha256 of empty input
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", Digest(nil))
}

func TestSymlinkDigest(t *testing.T) {
	assert.Equal(t, SymlinkDigest("a"), SymlinkDigest("a"))
	assert.NotEqual(t, SymlinkDigest("a"), SymlinkDigest("b"))
	// A symlink digest never collides with the digest of a file holding the
	// target as content.
	assert.NotEqual(t, Digest([]byte("a")), SymlinkDigest("a"))
}

func TestSetPaths(t *testing.T) {
	set := make(Set)
	set.Add(NewFileEntry("b.txt", []byte("b"), false))
	set.Add(NewFileEntry("a.txt", []byte("a"), false))
	set.Add(NewFileEntry("sub/c.txt", []byte("c"), false))

	assert.Equal(t, []string{"a.txt", "b.txt", "sub/c.txt"}, set.Paths())
}

func TestSetDigests(t *testing.T) {
	set := make(Set)
	set.Add(NewFileEntry("a.txt", []byte("a"), false))
	set.Add(NewSymlinkEntry("link", "a.txt"))

	digests := set.Digests()
	assert.Len(t, digests, 2)
	assert.Equal(t, Digest([]byte("a")), digests["a.txt"])
	assert.Equal(t, SymlinkDigest("a.txt"), digests["link"])
}

func TestWalk(t *testing.T) {
	tmpDir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "readme.md"), []byte("# readme"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(tmpDir, "scripts"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "scripts", "run.sh"), []byte("#!/bin/sh\n"), 0o755))
	require.NoError(t, os.Symlink("readme.md", filepath.Join(tmpDir, "link.md")))

	set, err := Walk(tmpDir, nil)
	require.NoError(t, err)
	require.Len(t, set, 3)

	readme := set["readme.md"]
	assert.Equal(t, KindFile, readme.Kind)
	assert.False(t, readme.Executable)
	assert.Equal(t, Digest([]byte("# readme")), readme.Digest)

	script := set["scripts/run.sh"]
	assert.Equal(t, KindFile, script.Kind)
	assert.True(t, script.Executable)

	link := set["link.md"]
	assert.Equal(t, KindSymlink, link.Kind)
	assert.Equal(t, "readme.md", link.LinkTarget)
	assert.Equal(t, SymlinkDigest("readme.md"), link.Digest)
}

func TestWalkExcludes(t *testing.T) {
	tmpDir := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(tmpDir, ".git", "objects"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ".git", "HEAD"), []byte("ref"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "keep.txt"), []byte("keep"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "notes.bak"), []byte("old"), 0o644))

	set, err := Walk(tmpDir, []string{".git", ".git/**", "*.bak"})
	require.NoError(t, err)

	assert.Equal(t, []string{"keep.txt"}, set.Paths())
}

func TestWalkMissingRoot(t *testing.T) {
	_, err := Walk(filepath.Join(t.TempDir(), "nope"), nil)
	assert.Error(t, err)
}

func TestDigestFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "file.txt")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0o644))

	digest, err := DigestFile(path)
	require.NoError(t, err)
	assert.Equal(t, Digest([]byte("content")), digest)

	// Missing paths yield empty digest, not an error.
	digest, err = DigestFile(filepath.Join(tmpDir, "absent.txt"))
	require.NoError(t, err)
	assert.Empty(t, digest)

	linkPath := filepath.Join(tmpDir, "link")
	require.NoError(t, os.Symlink("file.txt", linkPath))
	digest, err = DigestFile(linkPath)
	require.NoError(t, err)
	assert.Equal(t, SymlinkDigest("file.txt"), digest)
}
