// Package gitctx wraps the git primitives hookgate needs: repository discovery,
// staged and tracked file lists, diff ranges and re-staging. go-git is used first;
// the git CLI is the fallback when go-git cannot serve a request.
package gitctx

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/filesystem"
	"github.com/go-git/go-git/v5/utils/merkletrie"

	"github.com/fulmenhq/hookgate/pkg/logger"
)

// ErrNotRepository is returned when the directory is not inside a git work tree.
var ErrNotRepository = errors.New("not a git repository")

// Repo is an opened git work tree.
type Repo struct {
	// Root is the absolute path of the work tree.
	Root string

	repo   *git.Repository
	useCLI bool
}

// Open locates the repository containing dir.
func Open(dir string) (*Repo, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", dir, err)
	}

	repo, err := git.PlainOpenWithOptions(abs, &git.PlainOpenOptions{DetectDotGit: true, EnableDotGitCommonDir: true})
	if err == nil {
		wt, wtErr := repo.Worktree()
		if wtErr == nil {
			r := &Repo{Root: wt.Filesystem.Root(), repo: repo}
			// A hook run by "git commit -a" or "git commit <paths>" sees a temporary index
			// that only the CLI honours.
			if os.Getenv("GIT_INDEX_FILE") != "" && cliAvailable() {
				r.useCLI = true
			}
			return r, nil
		}
		logger.Debug("go-git worktree unavailable", logger.Err(wtErr))
	}

	if !cliAvailable() || !isRepoCLI(abs) {
		return nil, fmt.Errorf("%s: %w", abs, ErrNotRepository)
	}
	root := runGit(abs, "rev-parse", "--show-toplevel")
	if root == "" {
		return nil, fmt.Errorf("%s: %w", abs, ErrNotRepository)
	}
	logger.Debug("using git CLI for repository access", logger.String("root", root))
	return &Repo{Root: filepath.Clean(root), useCLI: true}, nil
}

// RepoRoot returns the work tree root containing dir.
func RepoRoot(dir string) (string, error) {
	r, err := Open(dir)
	if err != nil {
		return "", err
	}
	return r.Root, nil
}

// StagedFiles lists added, copied, modified and renamed paths in the index.
// Deletions are excluded. The result is sorted.
func (r *Repo) StagedFiles() ([]string, error) {
	if !r.useCLI {
		files, err := r.stagedGoGit()
		if err == nil {
			return files, nil
		}
		logger.Debug("go-git status failed, falling back to git CLI", logger.Err(err))
	}
	out, err := r.git("diff", "--cached", "--name-only", "--diff-filter=ACMR", "-z")
	if err != nil {
		return nil, err
	}
	return sortedPaths(splitNUL(out)), nil
}

func (r *Repo) stagedGoGit() ([]string, error) {
	wt, err := r.repo.Worktree()
	if err != nil {
		return nil, err
	}
	st, err := wt.Status()
	if err != nil {
		return nil, err
	}
	var files []string
	for path, s := range st {
		switch s.Staging {
		case git.Added, git.Modified, git.Renamed, git.Copied:
			files = append(files, filepath.ToSlash(path))
		}
	}
	return sortedPaths(files), nil
}

// TrackedFiles lists every path in the index, in index (git ls-files) order.
func (r *Repo) TrackedFiles() ([]string, error) {
	if !r.useCLI {
		idx, err := r.repo.Storer.Index()
		if err == nil {
			files := make([]string, 0, len(idx.Entries))
			for _, e := range idx.Entries {
				files = append(files, filepath.ToSlash(e.Name))
			}
			return files, nil
		}
		logger.Debug("go-git index read failed, falling back to git CLI", logger.Err(err))
	}
	out, err := r.git("ls-files", "-z")
	if err != nil {
		return nil, err
	}
	return splitNUL(out), nil
}

// DiffFiles lists paths added, copied, modified or renamed between two revisions.
func (r *Repo) DiffFiles(from, to string) ([]string, error) {
	if to == "" {
		to = "HEAD"
	}
	if !r.useCLI {
		files, err := r.diffGoGit(from, to)
		if err == nil {
			return files, nil
		}
		logger.Debug("go-git diff failed, falling back to git CLI", logger.String("from", from), logger.String("to", to), logger.Err(err))
	}
	out, err := r.git("diff", "--name-only", "--diff-filter=ACMR", "-z", from, to)
	if err != nil {
		return nil, err
	}
	return sortedPaths(splitNUL(out)), nil
}

func (r *Repo) diffGoGit(from, to string) ([]string, error) {
	fromTree, err := r.treeAt(from)
	if err != nil {
		return nil, err
	}
	toTree, err := r.treeAt(to)
	if err != nil {
		return nil, err
	}
	changes, err := object.DiffTree(fromTree, toTree)
	if err != nil {
		return nil, fmt.Errorf("diffing %s..%s: %w", from, to, err)
	}
	var files []string
	for _, c := range changes {
		action, err := c.Action()
		if err != nil {
			return nil, err
		}
		if action == merkletrie.Delete {
			continue
		}
		files = append(files, filepath.ToSlash(c.To.Name))
	}
	return sortedPaths(files), nil
}

func (r *Repo) treeAt(rev string) (*object.Tree, error) {
	hash, err := r.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", rev, err)
	}
	commit, err := r.repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("loading commit %s: %w", rev, err)
	}
	return commit.Tree()
}

// ModifiedInWorktree returns the subset of files whose work tree content differs from the index.
func (r *Repo) ModifiedInWorktree(files []string) ([]string, error) {
	if len(files) == 0 {
		return nil, nil
	}
	changed := make(map[string]struct{})
	if st, err := r.worktreeStatus(); err == nil && !r.useCLI {
		for path, s := range st {
			if s.Worktree == git.Modified {
				changed[filepath.ToSlash(path)] = struct{}{}
			}
		}
	} else {
		args := append([]string{"diff", "--name-only", "-z", "--"}, files...)
		out, err := r.git(args...)
		if err != nil {
			return nil, err
		}
		for _, f := range splitNUL(out) {
			changed[f] = struct{}{}
		}
	}

	var out []string
	for _, f := range files {
		if _, ok := changed[filepath.ToSlash(f)]; ok {
			out = append(out, f)
		}
	}
	return out, nil
}

func (r *Repo) worktreeStatus() (git.Status, error) {
	if r.repo == nil {
		return nil, errors.New("no go-git repository")
	}
	wt, err := r.repo.Worktree()
	if err != nil {
		return nil, err
	}
	return wt.Status()
}

// Add stages the given paths.
func (r *Repo) Add(files []string) error {
	if len(files) == 0 {
		return nil
	}
	if !r.useCLI {
		wt, err := r.repo.Worktree()
		if err == nil {
			for _, f := range files {
				if _, err := wt.Add(filepath.ToSlash(f)); err != nil {
					return fmt.Errorf("staging %s: %w", f, err)
				}
			}
			return nil
		}
	}
	args := append([]string{"add", "--"}, files...)
	_, err := r.git(args...)
	return err
}

// ChangeContext captures a minimal view of the current git change-set for reports.
type ChangeContext struct {
	Branch       string `json:"branch,omitempty"`
	GitSHA       string `json:"git_sha,omitempty"`
	TotalChanges int    `json:"total_changes"`
	ChangeScope  string `json:"change_scope"` // small | medium | large
}

// Context summarises HEAD and the size of the staged change. Errors degrade to empty fields.
func (r *Repo) Context(fileCount int) *ChangeContext {
	ctx := &ChangeContext{ChangeScope: classifyByFileCount(fileCount)}
	if r.repo != nil {
		if head, err := r.repo.Head(); err == nil {
			ctx.Branch = head.Name().Short()
			ctx.GitSHA = head.Hash().String()
		}
	} else {
		ctx.Branch = runGit(r.Root, "rev-parse", "--abbrev-ref", "HEAD")
		ctx.GitSHA = runGit(r.Root, "rev-parse", "HEAD")
	}

	if cliAvailable() {
		total, _ := parseNumstat(runGitBytes(r.Root, "diff", "--cached", "--numstat"))
		if total > 0 {
			ctx.TotalChanges = total
			ctx.ChangeScope = classifyScope(total)
		}
	}
	return ctx
}

// HooksDir returns the directory git runs hooks from, honouring core.hooksPath.
func (r *Repo) HooksDir() (string, error) {
	if r.repo != nil {
		cfg, err := r.repo.Config()
		if err == nil {
			if hp := cfg.Raw.Section("core").Option("hooksPath"); hp != "" {
				return r.abs(hp), nil
			}
		}
		if fs, ok := r.repo.Storer.(*filesystem.Storage); ok {
			return filepath.Join(fs.Filesystem().Root(), "hooks"), nil
		}
	}
	out, err := r.git("rev-parse", "--git-path", "hooks")
	if err != nil {
		return "", err
	}
	return r.abs(strings.TrimSpace(string(out))), nil
}

func (r *Repo) abs(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(r.Root, p)
}

func (r *Repo) git(args ...string) ([]byte, error) {
	cmd := exec.Command("git", args...) // #nosec G204 -- fixed binary, args built internally
	cmd.Dir = r.Root
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

func cliAvailable() bool {
	_, err := exec.LookPath("git")
	return err == nil
}

func isRepoCLI(target string) bool {
	out := runGit(target, "rev-parse", "--is-inside-work-tree")
	return strings.TrimSpace(out) == "true"
}

func runGit(dir string, args ...string) string {
	b := runGitBytes(dir, args...)
	return strings.TrimSpace(string(b))
}

func runGitBytes(dir string, args ...string) []byte {
	cmd := exec.Command("git", args...) // #nosec G204 -- fixed binary, args built internally
	cmd.Dir = dir
	out, _ := cmd.Output()
	return out
}

func splitNUL(data []byte) []string {
	var out []string
	for _, p := range bytes.Split(data, []byte{0}) {
		if s := strings.TrimSpace(string(p)); s != "" {
			out = append(out, filepath.ToSlash(s))
		}
	}
	return out
}

func sortedPaths(files []string) []string {
	sort.Strings(files)
	return files
}

// parseNumstat parses `git diff --numstat`-style output, returning total changes and a set of files.
func parseNumstat(data []byte) (int, map[string]struct{}) {
	total := 0
	files := make(map[string]struct{})
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		// Format: <added>\t<deleted>\t<file>
		parts := strings.Split(scanner.Text(), "\t")
		if len(parts) < 3 {
			continue
		}
		total += atoiSafe(parts[0]) + atoiSafe(parts[1])
		if f := strings.TrimSpace(parts[2]); f != "" {
			files[f] = struct{}{}
		}
	}
	return total, files
}

func atoiSafe(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func classifyScope(total int) string {
	switch {
	case total <= 50:
		return "small"
	case total <= 200:
		return "medium"
	default:
		return "large"
	}
}

func classifyByFileCount(n int) string {
	switch {
	case n <= 5:
		return "small"
	case n <= 20:
		return "medium"
	default:
		return "large"
	}
}
