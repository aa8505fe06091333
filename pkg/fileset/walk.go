package fileset

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"
)

// Walk reads every regular file and symlink under root into a Set, keyed by
// slash-separated relative path. Paths matching any of the exclude patterns
// (doublestar syntax, matched against the relative path) are skipped;
// matching directories are not descended into.
func Walk(root string, excludes []string) (Set, error) {
	set := make(Set)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if relPath == "." {
			return nil
		}
		relPath = filepath.ToSlash(relPath)

		if matchesAny(excludes, relPath) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			target, err := os.Readlink(path)
			if err != nil {
				return errors.Wrapf(err, "failed to read symlink %s", relPath)
			}
			set.Add(NewSymlinkEntry(relPath, target))
			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return errors.Wrapf(err, "failed to stat %s", relPath)
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrapf(err, "failed to read %s", relPath)
		}

		set.Add(NewFileEntry(relPath, content, info.Mode()&0o111 != 0))
		return nil
	})
	if err != nil {
		return nil, err
	}

	return set, nil
}

// DigestFile computes the current digest of a path on disk, following the
// same rules as Walk. Missing paths yield an empty digest.
func DigestFile(path string) (string, error) {
	info, err := os.Lstat(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrapf(err, "failed to stat %s", path)
	}

	if info.Mode()&fs.ModeSymlink != 0 {
		target, err := os.Readlink(path)
		if err != nil {
			return "", errors.Wrapf(err, "failed to read symlink %s", path)
		}
		return SymlinkDigest(target), nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrapf(err, "failed to read %s", path)
	}
	return Digest(content), nil
}

func matchesAny(patterns []string, relPath string) bool {
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, relPath); err == nil && ok {
			return true
		}
	}
	return false
}
