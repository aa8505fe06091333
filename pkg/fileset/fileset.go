// Package fileset models the file trees the sync engine compares: a Set maps
// relative paths to entries carrying content digests, executable bits and
// symlink targets. Both the remote snapshot and the local skill directory are
// reduced to a Set before planning.
package fileset

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
)

// Kind distinguishes regular files from symlinks. Symlinks are recorded by
// target path and never followed into content.
type Kind int

const (
	// KindFile is a regular file entry
	KindFile Kind = iota
	// KindSymlink is a symbolic link entry
	KindSymlink
)

// Entry is a single file within a tree, addressed by its slash-separated
// path relative to the tree root.
type Entry struct {
	Path       string
	Kind       Kind
	Content    []byte
	LinkTarget string
	Executable bool
	Digest     string
}

// Set is a collection of entries keyed by relative path.
type Set map[string]Entry

// Digest returns the hex-encoded sha256 of the given content. Change
// detection compares digests, never raw bytes.
func Digest(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// SymlinkDigest derives a digest for a symlink from its target path, so that
// retargeted links show up as content changes.
func SymlinkDigest(target string) string {
	return Digest([]byte("symlink:" + target))
}

// NewFileEntry builds a regular file entry with its digest precomputed.
func NewFileEntry(path string, content []byte, executable bool) Entry {
	return Entry{
		Path:       path,
		Kind:       KindFile,
		Content:    content,
		Executable: executable,
		Digest:     Digest(content),
	}
}

// NewSymlinkEntry builds a symlink entry pointing at target.
func NewSymlinkEntry(path, target string) Entry {
	return Entry{
		Path:       path,
		Kind:       KindSymlink,
		LinkTarget: target,
		Digest:     SymlinkDigest(target),
	}
}

// Add inserts an entry keyed by its path.
func (s Set) Add(e Entry) {
	s[e.Path] = e
}

// Paths returns all paths in lexicographic order.
func (s Set) Paths() []string {
	paths := make([]string, 0, len(s))
	for p := range s {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Digests reduces the set to a path -> digest map. Sync manifests persist
// this projection rather than the full entries.
func (s Set) Digests() map[string]string {
	digests := make(map[string]string, len(s))
	for p, e := range s {
		digests[p] = e.Digest
	}
	return digests
}
