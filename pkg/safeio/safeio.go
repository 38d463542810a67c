// Package safeio holds the small file helpers hookgate uses when it writes into a
// repository: hook shims, the generated config and report files.
package safeio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideBase is returned when a path resolves outside its base directory.
var ErrOutsideBase = errors.New("path is outside base directory")

// ReadFileContained reads a file only if it resolves inside baseDir.
func ReadFileContained(baseDir, filePath string) ([]byte, error) {
	abs, err := contained(baseDir, filePath)
	if err != nil {
		return nil, err
	}
	// #nosec G304 -- containment verified above
	return os.ReadFile(abs)
}

func contained(baseDir, filePath string) (string, error) {
	baseAbs, err := filepath.Abs(baseDir)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", baseDir, err)
	}
	fileAbs, err := filepath.Abs(filePath)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", filePath, err)
	}
	rel, err := filepath.Rel(baseAbs, fileAbs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s: %w", filePath, ErrOutsideBase)
	}
	return fileAbs, nil
}

// WriteFileAtomic replaces path with data through a temporary file in the same
// directory. An existing file keeps its permission bits; new files get mode.
// Parent directories are created as needed.
func WriteFileAtomic(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	if st, err := os.Stat(path); err == nil {
		if m := st.Mode() & 0o777; m != 0 {
			mode = m
		}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		cleanup()
		return fmt.Errorf("setting mode on %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
