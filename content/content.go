// Package content lays out and manipulates the on-disk artifacts backing
// the encrypted filesystem: the three top-level directories (inodes,
// contents, security), and the atomic-write-then-rename discipline every
// mutation of an artifact uses.
package content

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	fallocate "github.com/detailyang/go-fallocate"
)

// Layout resolves the on-disk paths under a data directory.
type Layout struct {
	Root string
}

func New(root string) Layout { return Layout{Root: root} }

func (l Layout) InodesDir() string   { return filepath.Join(l.Root, "inodes") }
func (l Layout) ContentsDir() string { return filepath.Join(l.Root, "contents") }
func (l Layout) SecurityDir() string { return filepath.Join(l.Root, "security") }

func (l Layout) InodePath(ino uint64) string {
	return filepath.Join(l.InodesDir(), strconv.FormatUint(ino, 10))
}

func (l Layout) ContentPath(ino uint64) string {
	return filepath.Join(l.ContentsDir(), strconv.FormatUint(ino, 10))
}

func (l Layout) LsDir(ino uint64) string   { return filepath.Join(l.ContentPath(ino), "ls") }
func (l Layout) HashDir(ino uint64) string { return filepath.Join(l.ContentPath(ino), "hash") }

func (l Layout) LsPath(ino uint64, encName string) string {
	return filepath.Join(l.LsDir(ino), encName)
}

func (l Layout) HashPath(ino uint64, hexDigest string) string {
	return filepath.Join(l.HashDir(ino), hexDigest)
}

func (l Layout) KeySaltPath() string { return filepath.Join(l.SecurityDir(), "key.salt") }
func (l Layout) KeyEncPath() string  { return filepath.Join(l.SecurityDir(), "key.enc") }

// SyncDir fsyncs the directory at path so that entries created or removed
// within it survive a crash. Only the directory itself is fsynced.
func SyncDir(path string) error {
	d, err := os.Open(path)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}

// AtomicWriteFile serializes data to a temporary file alongside path,
// fsyncs it, renames it over path, then fsyncs the parent directory, so a
// crash mid-write never leaves a torn artifact: either the old file
// remains intact or the new one fully replaces it.
func AtomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("content: create temp: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("content: write temp: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("content: chmod temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("content: fsync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("content: close temp: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("content: rename: %w", err)
	}
	return SyncDir(dir)
}

// CreateEmptyContentFile creates an empty regular-file content artifact
// and fsyncs it and its parent directory.
func CreateEmptyContentFile(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return SyncDir(filepath.Dir(path))
}

// PreallocateExtend reserves disk space for f up to size so that growing a
// content artifact (truncate-extend, write past current EOF) does not rely
// on implicit sparse-file support from the backing filesystem: the
// ciphertext file is always fully materialized.
func PreallocateExtend(f *os.File, size int64) error {
	if size <= 0 {
		return nil
	}
	return fallocate.Fallocate(f, 0, size)
}

// MkdirAllSynced creates path (and parents) and fsyncs the new leaf
// directory and its parent.
func MkdirAllSynced(path string, perm os.FileMode) error {
	if err := os.MkdirAll(path, perm); err != nil {
		return err
	}
	if err := SyncDir(path); err != nil {
		return err
	}
	return SyncDir(filepath.Dir(path))
}
