// Package hooks installs and removes the git hook shims that invoke hookgate.
package hooks

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aymerick/raymond"

	"github.com/fulmenhq/hookgate/internal/stage"
	"github.com/fulmenhq/hookgate/pkg/logger"
	"github.com/fulmenhq/hookgate/pkg/safeio"
)

// Marker identifies a hook file written by hookgate.
const Marker = "hookgate-managed-hook"

// BackupSuffix is appended to a foreign hook moved aside during install.
const BackupSuffix = ".backup"

//go:embed templates/hook.sh.hbs
var templates embed.FS

var (
	tplOnce sync.Once
	tpl     *raymond.Template
	tplErr  error
)

// Stages lists the hooks hookgate manages, in install order.
var Stages = []stage.Stage{stage.PreCommit, stage.PrePush}

// ErrForeignHook is returned when a non-hookgate hook exists and force is not set.
var ErrForeignHook = errors.New("existing hook not managed by hookgate")

// Options configure rendering.
type Options struct {
	// Binary is the command the shim executes; defaults to "hookgate".
	Binary  string
	Version string
	// ExtraArgs are appended to the run command line.
	ExtraArgs []string
	// Strict makes the shim fail when the binary is missing.
	Strict bool
}

// State describes one hook file.
type State string

const (
	StateMissing State = "missing"
	StateManaged State = "managed"
	StateForeign State = "foreign"
)

// HookStatus reports the state of a single hook.
type HookStatus struct {
	Stage     stage.Stage `json:"stage"`
	Path      string      `json:"path"`
	State     State       `json:"state"`
	HasBackup bool        `json:"has_backup"`
}

// Manager installs hooks into a hooks directory.
type Manager struct {
	Dir  string
	opts Options
}

// NewManager returns a Manager for dir.
func NewManager(dir string, opts Options) *Manager {
	if opts.Binary == "" {
		opts.Binary = "hookgate"
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	return &Manager{Dir: dir, opts: opts}
}

func compiledTemplate() (*raymond.Template, error) {
	tplOnce.Do(func() {
		var src []byte
		src, tplErr = fs.ReadFile(templates, "templates/hook.sh.hbs")
		if tplErr != nil {
			return
		}
		tpl, tplErr = raymond.Parse(string(src))
		if tplErr != nil {
			return
		}
		tpl.RegisterHelper("quote", shellQuote)
	})
	return tpl, tplErr
}

// Render produces the shim for s.
func (m *Manager) Render(s stage.Stage) (string, error) {
	t, err := compiledTemplate()
	if err != nil {
		return "", fmt.Errorf("failed to parse hook template: %w", err)
	}
	out, err := t.Exec(map[string]interface{}{
		"marker":    Marker,
		"version":   m.opts.Version,
		"stage":     s.String(),
		"prePush":   s == stage.PrePush,
		"binary":    m.opts.Binary,
		"extraArgs": m.opts.ExtraArgs,
		"strict":    m.opts.Strict,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render %s hook: %w", s, err)
	}
	return out, nil
}

// Install writes every hook. A foreign hook is moved to <name>.backup (or the next
// free <name>.backup.N) when force is set and reported as ErrForeignHook otherwise.
func (m *Manager) Install(force bool) ([]string, error) {
	if err := os.MkdirAll(m.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create hooks directory: %w", err)
	}

	var installed []string
	for _, s := range Stages {
		path := m.path(s)
		content, err := m.Render(s)
		if err != nil {
			return installed, err
		}

		state, err := m.inspect(path)
		if err != nil {
			return installed, err
		}
		if state == StateForeign {
			if !force {
				return installed, fmt.Errorf("%s: %w (use --force to back it up)", path, ErrForeignHook)
			}
			backup, err := freeBackupPath(path)
			if err != nil {
				return installed, err
			}
			if err := os.Rename(path, backup); err != nil {
				return installed, fmt.Errorf("failed to back up %s: %w", path, err)
			}
			logger.Info("backed up existing hook", logger.String("path", backup))
		}

		if err := safeio.WriteFileAtomic(path, []byte(content), 0o755); err != nil {
			return installed, err
		}
		if err := os.Chmod(path, 0o755); err != nil {
			return installed, fmt.Errorf("failed to make %s executable: %w", path, err)
		}
		installed = append(installed, path)
	}
	return installed, nil
}

// freeBackupPath returns <path>.backup, or the first unused <path>.backup.N when an
// earlier backup exists. Existing backups are never overwritten.
func freeBackupPath(path string) (string, error) {
	candidate := path + BackupSuffix
	for n := 1; ; n++ {
		_, err := os.Lstat(candidate)
		if errors.Is(err, fs.ErrNotExist) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to check backup %s: %w", candidate, err)
		}
		candidate = fmt.Sprintf("%s%s.%d", path, BackupSuffix, n)
	}
}

// Remove deletes hookgate hooks and restores any backup. Foreign hooks are left alone.
func (m *Manager) Remove() ([]string, error) {
	var removed []string
	for _, s := range Stages {
		path := m.path(s)
		state, err := m.inspect(path)
		if err != nil {
			return removed, err
		}
		if state != StateManaged {
			continue
		}
		if err := os.Remove(path); err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", path, err)
		}
		removed = append(removed, path)

		backup := path + BackupSuffix
		if _, err := os.Stat(backup); err == nil {
			if err := os.Rename(backup, path); err != nil {
				return removed, fmt.Errorf("failed to restore %s: %w", backup, err)
			}
			logger.Info("restored original hook", logger.String("path", path))
		}
	}
	return removed, nil
}

// Status reports the state of every managed hook.
func (m *Manager) Status() ([]HookStatus, error) {
	out := make([]HookStatus, 0, len(Stages))
	for _, s := range Stages {
		path := m.path(s)
		state, err := m.inspect(path)
		if err != nil {
			return nil, err
		}
		_, backupErr := os.Stat(path + BackupSuffix)
		out = append(out, HookStatus{Stage: s, Path: path, State: state, HasBackup: backupErr == nil})
	}
	return out, nil
}

func (m *Manager) path(s stage.Stage) string {
	return filepath.Join(m.Dir, s.String())
}

func (m *Manager) inspect(path string) (State, error) {
	data, err := safeio.ReadFileContained(m.Dir, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return StateMissing, nil
		}
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	if bytes.Contains(data, []byte(Marker)) {
		return StateManaged, nil
	}
	return StateForeign, nil
}

func shellQuote(s string) raymond.SafeString {
	if s != "" && strings.IndexFunc(s, func(r rune) bool {
		return !(r == '-' || r == '_' || r == '.' || r == '/' || r == '=' || r == ',' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'))
	}) < 0 {
		return raymond.SafeString(s)
	}
	return raymond.SafeString("'" + strings.ReplaceAll(s, "'", `'\''`) + "'")
}
