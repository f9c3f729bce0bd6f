package utils

import (
	"errors"
	"io/fs"
	"log"
	"os"
)

// FileExist reports whether a regular file exists at filePath.
func FileExist(filePath string) bool {
	info, err := os.Stat(filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return false
	}

	if err != nil {
		log.Panic(err)
	}

	return info.Mode().IsRegular()
}

// CreateDirIfNotExist creates dir along with any missing parents.
func CreateDirIfNotExist(dir string) error {
	info, err := os.Stat(dir)
	if err == nil && !info.IsDir() {
		return &fs.PathError{Op: "mkdir", Path: dir, Err: fs.ErrExist}
	}

	if errors.Is(err, fs.ErrNotExist) {
		return os.MkdirAll(dir, 0755)
	}

	return err
}
