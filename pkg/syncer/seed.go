package syncer

import (
	"path/filepath"

	"github.com/jingkaihe/skillman/pkg/fileset"
	"github.com/pkg/errors"
)

// Seed writes a snapshot's files into a skill directory that is being
// created for the first time. Unlike Apply it performs no conflict checking:
// the caller guarantees the directory is fresh.
func Seed(dir string, files fileset.Set) error {
	for _, path := range files.Paths() {
		entry := files[path]
		target := filepath.Join(dir, filepath.FromSlash(path))
		if err := writeEntry(target, &entry); err != nil {
			return errors.Wrapf(err, "failed to write %s", path)
		}
	}
	return nil
}
