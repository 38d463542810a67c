package checks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fulmenhq/hookgate/internal/changeset"
	"github.com/fulmenhq/hookgate/internal/stage"
	"github.com/fulmenhq/hookgate/pkg/logger"
	"github.com/fulmenhq/hookgate/pkg/tools"
)

// DefaultKustomizeWorkers bounds concurrent kustomize/helm invocations.
const DefaultKustomizeWorkers = 4

var kubeconformArgs = []string{"-strict", "-ignore-missing-schemas", "-summary", "-"}

// Kustomize renders every touched kustomization and lints every touched Helm chart.
// Targets are validated by a bounded worker pool; output is written in target order
// once all workers have finished.
type Kustomize struct {
	Workers int
}

// NewKustomize returns the kustomize check with the given pool size.
func NewKustomize(workers int) *Kustomize {
	if workers < 1 {
		workers = DefaultKustomizeWorkers
	}
	return &Kustomize{Workers: workers}
}

func (k *Kustomize) Name() string                    { return KustomizeCheck }
func (k *Kustomize) Description() string             { return "Kustomize render + kubeconform, helm lint" }
func (k *Kustomize) Critical() bool                  { return false }
func (k *Kustomize) AppliesToStage(stage.Stage) bool { return true }
func (k *Kustomize) Tools() []string                 { return []string{"kustomize", "kubeconform", "helm"} }

func (k *Kustomize) IsApplicable(cs *changeset.ChangeSet) bool {
	return cs.HasAny(changeset.Kustomize, changeset.Helm)
}

type kustomizeTarget struct {
	kind string // kustomize | helm
	dir  string
}

type targetResult struct {
	log      bytes.Buffer
	missing  []string
	ran      bool
	failed   bool
	tool     string
	exitCode int
}

func (k *Kustomize) Run(ctx context.Context, rc RunContext) Outcome {
	start := time.Now()
	targets := k.targets(rc)
	if len(targets) == 0 {
		return Skipped("no kustomization or chart directories found")
	}

	results := make([]*targetResult, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(k.Workers)
	for i, t := range targets {
		results[i] = &targetResult{}
		g.Go(func() error {
			k.validate(gctx, rc, t, results[i])
			return nil
		})
	}
	_ = g.Wait()

	out := Outcome{Status: StatusPassed}
	ran := 0
	for i, res := range results {
		if rc.Output != nil {
			_, _ = rc.Output.Write(res.log.Bytes())
		}
		for _, m := range res.missing {
			if !containsString(out.MissingTools, m) {
				out.MissingTools = append(out.MissingTools, m)
				out.Notes = append(out.Notes, fmt.Sprintf("%s not installed, step skipped", m))
			}
		}
		if res.ran {
			ran++
		}
		if res.failed {
			out.markFailed(res.tool, res.exitCode, res.log.String())
			logger.Debug("kustomize target failed", logger.String("dir", targets[i].dir), logger.String("tool", res.tool))
		}
	}
	if ran == 0 {
		out.Status = StatusSkipped
	}
	out.Elapsed = time.Since(start)
	return out
}

// targets lists kustomization directories and chart roots touched by the change-set.
func (k *Kustomize) targets(rc RunContext) []kustomizeTarget {
	var targets []kustomizeTarget
	seen := make(map[string]struct{})
	add := func(kind, dir string) {
		key := kind + ":" + dir
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		targets = append(targets, kustomizeTarget{kind: kind, dir: dir})
	}

	for _, f := range rc.ChangeSet.FilesFor(changeset.Kustomize) {
		add("kustomize", path.Dir(f))
	}
	for _, f := range rc.ChangeSet.FilesFor(changeset.Helm) {
		if root, ok := chartRoot(rc.WorkDir, f); ok {
			add("helm", root)
		}
	}
	return targets
}

// chartRoot walks up from a file to the nearest directory holding Chart.yaml.
func chartRoot(repoRoot, file string) (string, bool) {
	dir := path.Dir(file)
	for {
		if _, err := os.Stat(filepath.Join(repoRoot, filepath.FromSlash(dir), "Chart.yaml")); err == nil {
			return dir, true
		}
		if dir == "." || dir == "/" {
			return "", false
		}
		dir = path.Dir(dir)
	}
}

func (k *Kustomize) validate(ctx context.Context, rc RunContext, t kustomizeTarget, res *targetResult) {
	if t.kind == "helm" {
		k.exec(ctx, rc, res, "helm", []string{"lint", t.dir}, nil)
		return
	}

	rendered, ok := k.exec(ctx, rc, res, "kustomize", []string{"build", t.dir}, nil)
	if !ok {
		return
	}
	k.exec(ctx, rc, res, "kubeconform", kubeconformArgs, bytes.NewReader(rendered))
}

// exec runs one tool for a target, recording into res. It returns stdout and whether
// the tool ran and succeeded.
func (k *Kustomize) exec(ctx context.Context, rc RunContext, res *targetResult, tool string, args []string, stdin *bytes.Reader) ([]byte, bool) {
	_, _ = fmt.Fprintf(&res.log, "$ %s %s\n", tool, strings.Join(args, " "))
	opts := tools.ExecuteOptions{Tool: tool, Args: args, WorkDir: rc.WorkDir}
	if stdin != nil {
		opts.Stdin = stdin
	}
	r, err := rc.Executor.Execute(ctx, opts)
	if errors.Is(err, tools.ErrToolNotFound) {
		res.missing = append(res.missing, tool)
		return nil, false
	}
	res.ran = true
	if err != nil {
		_, _ = fmt.Fprintf(&res.log, "%s: %v\n", tool, err)
		res.fail(tool, -1)
		return nil, false
	}
	if tool != "kustomize" {
		_, _ = res.log.Write(r.Stdout)
	}
	_, _ = res.log.Write(r.Stderr)
	if r.ExitCode != 0 {
		res.fail(tool, r.ExitCode)
		return nil, false
	}
	return r.Stdout, true
}

func (r *targetResult) fail(tool string, code int) {
	if !r.failed {
		r.failed = true
		r.tool = tool
		r.exitCode = code
	}
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
