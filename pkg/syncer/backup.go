package syncer

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

// backup copies the skill directory into a sibling named
// <dir>.backup.<timestamp>. Backups are retained until the operator prunes
// them; nothing in skillman deletes one. A partial copy is removed before
// the error is returned so a failed backup leaves no half-written snapshot.
func (e *Executor) backup(skillDir string, at time.Time) (string, error) {
	backupPath := skillDir + ".backup." + at.Format("20060102_150405")

	if _, err := os.Stat(backupPath); err == nil {
		return "", errors.Errorf("backup path %s already exists", backupPath)
	}

	if err := copyTree(skillDir, backupPath); err != nil {
		os.RemoveAll(backupPath)
		return "", err
	}
	return backupPath, nil
}

func copyTree(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		destPath := filepath.Join(dst, relPath)

		if info.Mode()&fs.ModeSymlink != 0 {
			target, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(target, destPath)
		}

		if info.IsDir() {
			return os.MkdirAll(destPath, info.Mode())
		}

		return copyFile(path, destPath, info.Mode())
	})
}

func copyFile(src, dst string, mode os.FileMode) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	dstFile, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer dstFile.Close()

	_, err = io.Copy(dstFile, srcFile)
	return err
}
