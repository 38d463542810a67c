package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

type pyproject struct {
	Tool struct {
		Hookgate map[string]interface{} `toml:"hookgate"`
	} `toml:"tool"`
}

// ReadPyprojectSection returns the [tool.hookgate] table of a pyproject.toml,
// or nil when the file or the table is absent.
func ReadPyprojectSection(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(filepath.Clean(path)) // #nosec G304 -- fixed file name under repo root
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var doc pyproject
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(doc.Tool.Hookgate) == 0 {
		return nil, nil
	}
	return doc.Tool.Hookgate, nil
}
