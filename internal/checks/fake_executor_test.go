package checks

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fulmenhq/hookgate/pkg/tools"
)

type toolBehavior struct {
	exitCode int
	output   string
	err      error
	// block waits for the context to end.
	block bool
}

type call struct {
	tool string
	args []string
}

// fakeExecutor stands in for collaborator tools. Tools absent from installed are missing.
type fakeExecutor struct {
	mu        sync.Mutex
	installed map[string]toolBehavior
	calls     []call
}

func newFakeExecutor(installed map[string]toolBehavior) *fakeExecutor {
	if installed == nil {
		installed = map[string]toolBehavior{}
	}
	return &fakeExecutor{installed: installed}
}

func (f *fakeExecutor) Name() string { return "fake" }

func (f *fakeExecutor) IsAvailable(tool string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.installed[tool]
	return ok
}

func (f *fakeExecutor) Execute(ctx context.Context, opts tools.ExecuteOptions) (*tools.ExecuteResult, error) {
	f.mu.Lock()
	b, ok := f.installed[opts.Tool]
	if ok {
		f.calls = append(f.calls, call{tool: opts.Tool, args: append([]string(nil), opts.Args...)})
	}
	f.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", tools.ErrToolNotFound, opts.Tool)
	}
	if b.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if b.err != nil {
		return nil, b.err
	}
	res := &tools.ExecuteResult{ExitCode: b.exitCode, Executor: "fake"}
	out := b.output
	if opts.Stdin != nil {
		in, _ := io.ReadAll(opts.Stdin)
		out += string(in)
	}
	if opts.Output != nil {
		_, _ = io.WriteString(opts.Output, out)
	} else {
		res.Stdout = []byte(out)
	}
	return res, nil
}

func (f *fakeExecutor) callsFor(tool string) []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.calls {
		if c.tool == tool {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeExecutor) commandLines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		out = append(out, strings.TrimSpace(c.tool+" "+strings.Join(c.args, " ")))
	}
	return out
}
