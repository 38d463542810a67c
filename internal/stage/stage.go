// Package stage decides whether a run is a pre-commit or a pre-push run.
package stage

import (
	"fmt"
	"strings"

	"github.com/fulmenhq/hookgate/pkg/logger"
)

// Stage is the hook moment a run serves.
type Stage int

const (
	PreCommit Stage = iota
	PrePush
)

// String returns the hook name of the stage.
func (s Stage) String() string {
	if s == PrePush {
		return "pre-push"
	}
	return "pre-commit"
}

// Includes reports whether work declared for other runs during s.
// pre-push is a superset of pre-commit.
func (s Stage) Includes(other Stage) bool {
	return other <= s
}

// MarshalText implements encoding.TextMarshaler.
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Parse maps a flag or environment value to a Stage.
func Parse(raw string) (Stage, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pre-commit", "precommit", "commit":
		return PreCommit, nil
	case "pre-push", "prepush", "push":
		return PrePush, nil
	}
	return PreCommit, fmt.Errorf("unknown stage %q (want pre-commit or pre-push)", raw)
}

// ExplicitVars are consulted in order; the first parseable value wins.
var ExplicitVars = []string{"HOOKGATE_STAGE", "HOOK_STAGE", "PRE_COMMIT_HOOK_STAGE"}

// FromRefVars signal a pre-push run when set.
var FromRefVars = []string{"HOOKGATE_FROM_REF", "PRE_COMMIT_FROM_REF", "PRE_COMMIT_SOURCE"}

// ToRefVars carry the upper end of a pre-push diff range.
var ToRefVars = []string{"HOOKGATE_TO_REF", "PRE_COMMIT_TO_REF", "PRE_COMMIT_ORIGIN"}

// LookupEnv matches os.LookupEnv.
type LookupEnv func(key string) (string, bool)

// Detect selects the stage from the environment: an explicit stage variable, then the
// presence of a diff base ref, then pre-commit.
func Detect(env LookupEnv) Stage {
	for _, name := range ExplicitVars {
		raw, ok := env(name)
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}
		s, err := Parse(raw)
		if err != nil {
			logger.Debug("ignoring stage variable", logger.String("var", name), logger.Err(err))
			continue
		}
		return s
	}
	if _, ok := firstSet(env, FromRefVars); ok {
		return PrePush
	}
	return PreCommit
}

// DiffRange returns the refs bounding a pre-push run. ok is false when no usable base
// ref was provided, including the all-zero ref git passes for a new remote branch.
func DiffRange(env LookupEnv) (from, to string, ok bool) {
	from, ok = firstSet(env, FromRefVars)
	if !ok || isZeroRef(from) {
		return "", "", false
	}
	to, _ = firstSet(env, ToRefVars)
	if to == "" || isZeroRef(to) {
		to = "HEAD"
	}
	return from, to, true
}

func firstSet(env LookupEnv, names []string) (string, bool) {
	for _, name := range names {
		if v, ok := env(name); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}

func isZeroRef(ref string) bool {
	return len(ref) >= 40 && strings.Trim(ref, "0") == ""
}
