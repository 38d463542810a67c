// Package ignore filters change-set paths using gitignore-style files and globs.
package ignore

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-git/go-billy/v5/osfs"
	gitignore "github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// FileName is the repository-level ignore file read on top of .gitignore.
const FileName = ".hookgateignore"

// Matcher decides whether a repository-relative path is excluded from checks
type Matcher struct {
	matcher gitignore.Matcher
	globs   []string
}

// NewMatcher creates a matcher with layered ignore sources:
// 1. built-in defaults (.git, node_modules, vendored deps)
// 2. .gitignore files and .git/info/exclude
// 3. .hookgateignore at the repository root
// 4. extra doublestar globs (config "exclude")
func NewMatcher(repoRoot string, globs []string) (*Matcher, error) {
	for _, g := range globs {
		if !doublestar.ValidatePattern(g) {
			return nil, fmt.Errorf("invalid exclude pattern %q", g)
		}
	}

	fs := osfs.New(repoRoot)

	var patterns []gitignore.Pattern
	for _, p := range []string{".git/", "node_modules/", ".terraform/"} {
		patterns = append(patterns, gitignore.ParsePattern(p, nil))
	}

	if gitPatterns, err := gitignore.ReadPatterns(fs, nil); err == nil {
		patterns = append(patterns, gitPatterns...)
	}

	local, err := readIgnoreFile(filepath.Join(repoRoot, FileName))
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	for _, p := range local {
		patterns = append(patterns, gitignore.ParsePattern(p, nil))
	}

	return &Matcher{
		matcher: gitignore.NewMatcher(patterns),
		globs:   globs,
	}, nil
}

// readIgnoreFile reads patterns from a text file (like .hookgateignore)
func readIgnoreFile(path string) ([]string, error) {
	content, err := os.ReadFile(filepath.Clean(path)) // #nosec G304 -- fixed file name under repo root
	if err != nil {
		return nil, err
	}

	var patterns []string
	scanner := bufio.NewScanner(bytes.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns, scanner.Err()
}

// IsIgnored reports whether a slash-separated, repository-relative path is excluded.
func (m *Matcher) IsIgnored(relPath string) bool {
	relPath = filepath.ToSlash(relPath)
	for _, g := range m.globs {
		if ok, _ := doublestar.Match(g, relPath); ok {
			return true
		}
	}

	parts := splitPath(relPath)
	if len(parts) == 0 {
		return false
	}
	return m.matcher.Match(parts, false)
}

// Filter returns the paths that are not ignored, preserving order.
func (m *Matcher) Filter(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if !m.IsIgnored(p) {
			out = append(out, p)
		}
	}
	return out
}

// splitPath converts a slash-separated path into components for go-git matching
func splitPath(path string) []string {
	if path == "" || path == "." {
		return []string{}
	}

	path = strings.TrimPrefix(path, "/")
	parts := strings.Split(path, "/")

	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if part != "" && part != "." {
			result = append(result, part)
		}
	}
	return result
}
