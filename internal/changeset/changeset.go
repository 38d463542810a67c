// Package changeset resolves and classifies the files a hookgate run considers.
package changeset

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/fulmenhq/hookgate/internal/stage"
	"github.com/fulmenhq/hookgate/pkg/logger"
)

// Source records which resolution rule produced a change-set.
type Source string

const (
	SourceExplicit      Source = "explicit"
	SourceDiffRange     Source = "diff-range"
	SourceStaged        Source = "staged"
	SourceTrackedSample Source = "tracked-sample"
)

// DefaultSampleLimit bounds the tracked-file fallback.
const DefaultSampleLimit = 100

// ChangeSet is a read-only snapshot of the files under consideration for one run.
type ChangeSet struct {
	Root       string      `json:"root"`
	Files      []string    `json:"files"`
	Source     Source      `json:"source"`
	Categories CategorySet `json:"categories"`
	// Staged holds the originally staged paths; only these are ever re-staged.
	Staged []string `json:"staged,omitempty"`

	classes []CategorySet
}

// New builds a classified change-set. Paths are normalised to clean slash form
// and duplicates dropped, keeping first occurrence order.
func New(root string, files []string, source Source) *ChangeSet {
	cs := &ChangeSet{Root: root, Source: source}
	seen := make(map[string]struct{}, len(files))
	for _, f := range files {
		f = normalizePath(f)
		if f == "" {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		class := Classify(f)
		cs.Files = append(cs.Files, f)
		cs.classes = append(cs.classes, class)
		cs.Categories = cs.Categories.Union(class)
	}
	return cs
}

// Len returns the number of files.
func (cs *ChangeSet) Len() int { return len(cs.Files) }

// Empty reports whether the change-set has no files.
func (cs *ChangeSet) Empty() bool { return len(cs.Files) == 0 }

// HasAny reports whether any file belongs to one of cats.
func (cs *ChangeSet) HasAny(cats ...Category) bool {
	return cs.Categories.Intersects(SetOf(cats...))
}

// FilesFor returns the files belonging to any of cats, in change-set order.
func (cs *ChangeSet) FilesFor(cats ...Category) []string {
	want := SetOf(cats...)
	var out []string
	for i, f := range cs.Files {
		if cs.classes[i].Intersects(want) {
			out = append(out, f)
		}
	}
	return out
}

// GitSource provides the file lists Resolve draws from.
type GitSource interface {
	StagedFiles() ([]string, error)
	TrackedFiles() ([]string, error)
	DiffFiles(from, to string) ([]string, error)
}

// PathFilter removes ignored paths.
type PathFilter interface {
	Filter(paths []string) []string
}

// Options control change-set resolution.
type Options struct {
	Root        string
	Stage       stage.Stage
	Explicit    []string
	FromRef     string
	ToRef       string
	SampleLimit int
	Filter      PathFilter
}

// Resolve picks the change-set for a run:
//  1. explicit paths when given;
//  2. for pre-push with a base ref, the files changed in the pushed range;
//  3. otherwise the staged files, deletions excluded;
//  4. when nothing is staged, the first SampleLimit tracked files in index order.
//
// Ignore rules apply to every source.
func Resolve(ctx context.Context, src GitSource, opts Options) (*ChangeSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit := opts.SampleLimit
	if limit <= 0 {
		limit = DefaultSampleLimit
	}

	if len(opts.Explicit) > 0 {
		return New(opts.Root, opts.filter(opts.Explicit), SourceExplicit), nil
	}

	if opts.Stage == stage.PrePush && opts.FromRef != "" {
		files, err := src.DiffFiles(opts.FromRef, opts.ToRef)
		if err == nil {
			return New(opts.Root, opts.filter(files), SourceDiffRange), nil
		}
		logger.Warn("could not diff pushed range, using staged files", logger.String("from", opts.FromRef), logger.String("to", opts.ToRef), logger.Err(err))
	}

	staged, err := src.StagedFiles()
	if err != nil {
		return nil, fmt.Errorf("listing staged files: %w", err)
	}
	if len(staged) > 0 {
		cs := New(opts.Root, opts.filter(staged), SourceStaged)
		cs.Staged = append([]string(nil), staged...)
		return cs, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tracked, err := src.TrackedFiles()
	if err != nil {
		return nil, fmt.Errorf("listing tracked files: %w", err)
	}
	tracked = opts.filter(tracked)
	if len(tracked) > limit {
		logger.Debug("sampling tracked files", logger.Int("tracked", len(tracked)), logger.Int("limit", limit))
		tracked = tracked[:limit]
	}
	return New(opts.Root, tracked, SourceTrackedSample), nil
}

func (o Options) filter(files []string) []string {
	normalized := make([]string, 0, len(files))
	for _, f := range files {
		if f = normalizePath(f); f != "" {
			normalized = append(normalized, f)
		}
	}
	if o.Filter == nil {
		return normalized
	}
	return o.Filter.Filter(normalized)
}

func normalizePath(p string) string {
	p = strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
	if p == "" {
		return ""
	}
	p = path.Clean(p)
	if p == "." || p == "/" {
		return ""
	}
	return strings.TrimPrefix(p, "./")
}
