package changeset

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5/plumbing"

	"github.com/fulmenhq/hookgate/pkg/logger"
)

// Index is the part of the git index auto-fix needs.
type Index interface {
	ModifiedInWorktree(files []string) ([]string, error)
	Add(files []string) error
}

// Baseline records which staged files already carried unstaged edits before a fixer
// ran, keyed by path with the blob hash of their work tree content.
type Baseline struct {
	root  string
	dirty map[string]plumbing.Hash
}

// TakeBaseline snapshots the staged files that differ from the index right now.
func TakeBaseline(idx Index, root string, staged []string) (*Baseline, error) {
	b := &Baseline{root: root, dirty: map[string]plumbing.Hash{}}
	if len(staged) == 0 {
		return b, nil
	}
	dirty, err := idx.ModifiedInWorktree(staged)
	if err != nil {
		return nil, fmt.Errorf("snapshotting staged files: %w", err)
	}
	for _, f := range dirty {
		b.dirty[f] = worktreeHash(root, f)
	}
	return b, nil
}

// Dirty reports whether path had unstaged edits when the baseline was taken.
func (b *Baseline) Dirty(path string) bool {
	if b == nil {
		return false
	}
	_, ok := b.dirty[path]
	return ok
}

// touched reports whether a dirty file's work tree content moved since the snapshot.
func (b *Baseline) touched(path string) bool {
	return worktreeHash(b.root, path) != b.dirty[path]
}

func worktreeHash(root, path string) plumbing.Hash {
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(path))) // #nosec G304 -- staged path under the repository root
	if err != nil {
		return plumbing.ZeroHash
	}
	return plumbing.ComputeHash(plumbing.BlobObject, data)
}

// Restage re-adds the originally staged files a fixer rewrote. Files outside the
// staged set are never added, and files already matching the index are left alone,
// so a repeat run on unchanged input stages nothing. Files that had unstaged edits
// in base are never added; a warning is logged when a fixer rewrote one of them.
func Restage(idx Index, staged []string, base *Baseline) ([]string, error) {
	if len(staged) == 0 {
		return nil, nil
	}
	changed, err := idx.ModifiedInWorktree(staged)
	if err != nil {
		return nil, fmt.Errorf("checking fixed files: %w", err)
	}

	var add, held []string
	for _, f := range changed {
		if !base.Dirty(f) {
			add = append(add, f)
			continue
		}
		if base.touched(f) {
			held = append(held, f)
		}
	}
	if len(held) > 0 {
		logger.Warn("auto-fixed files have unstaged edits, left unstaged", logger.Strings("files", held))
	}
	if len(add) == 0 {
		return nil, nil
	}
	if err := idx.Add(add); err != nil {
		return nil, fmt.Errorf("re-staging fixed files: %w", err)
	}
	logger.Info("re-staged auto-fixed files", logger.Strings("files", add))
	return add, nil
}
