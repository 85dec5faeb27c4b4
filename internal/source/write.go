package source

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultBackupSuffix is appended to the canonical path to name its backup.
const DefaultBackupSuffix = ".backup"

// WriteFileAtomic writes data to path so that path holds either the old or
// the new content, never a partial write.
//
// Steps:
//  1. Write to {path}.tmp in the same directory
//  2. Sync to disk
//  3. Rename over {path}
//  4. Sync the parent directory (best effort)
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmpPath := path + ".tmp"

	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}

	// The file is already in place; a failed directory sync is not an error.
	_ = syncDir(dir)
	return nil
}

// BackupPath returns the backup location for path.
func BackupPath(path, suffix string) string {
	if suffix == "" {
		suffix = DefaultBackupSuffix
	}
	return path + suffix
}

// WriteBackup durably writes data to the backup location of path and
// returns that location. The canonical file itself is not touched.
func WriteBackup(path string, data []byte, suffix string) (string, error) {
	bp := BackupPath(path, suffix)
	if err := WriteFileAtomic(bp, data, FilePerm(path)); err != nil {
		return "", fmt.Errorf("write backup %s: %w", bp, err)
	}
	return bp, nil
}

// FilePerm returns the permission bits of an existing file, or 0o644.
func FilePerm(path string) os.FileMode {
	if fi, err := os.Stat(path); err == nil {
		return fi.Mode().Perm()
	}
	return 0o644
}

func syncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
