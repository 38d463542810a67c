// Package config loads hookgate settings from defaults, config files and the
// environment, in that order of precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/fulmenhq/hookgate/pkg/logger"
)

// FileNames are the repository-level config files searched, in order.
var FileNames = []string{".hookgate.yaml", ".hookgate.yml"}

// Config holds all configuration for a hookgate run
type Config struct {
	// FailOnHighSeverity turns failures of critical (security/syntax) checks into a non-zero exit.
	FailOnHighSeverity bool `mapstructure:"fail_on_high_severity" yaml:"fail_on_high_severity"`
	// FailOnMediumSeverity turns failures of advisory checks into a non-zero exit.
	FailOnMediumSeverity bool `mapstructure:"fail_on_medium_severity" yaml:"fail_on_medium_severity"`
	// Verbose streams collaborator output live instead of only capturing it.
	Verbose bool `mapstructure:"verbose" yaml:"verbose"`
	// AutoFix runs fixers instead of checkers where a tool supports it and re-stages fixed files.
	AutoFix bool `mapstructure:"auto_fix" yaml:"auto_fix"`
	// LogDir is where per-check logs are written. Empty means a per-run temp directory.
	LogDir string `mapstructure:"log_dir" yaml:"log_dir,omitempty"`
	// SampleLimit bounds the tracked-file fallback when nothing is staged.
	SampleLimit int `mapstructure:"sample_limit" yaml:"sample_limit"`
	// KustomizeWorkers bounds the kustomize fan-out.
	KustomizeWorkers int `mapstructure:"kustomize_workers" yaml:"kustomize_workers"`
	// CheckTimeout bounds each check; zero disables the limit.
	CheckTimeout time.Duration `mapstructure:"check_timeout" yaml:"check_timeout,omitempty"`
	// ToolMode is local, docker or auto.
	ToolMode string `mapstructure:"tool_mode" yaml:"tool_mode"`
	// PolicyFile is an optional Rego policy consulted for the final decision.
	PolicyFile string `mapstructure:"policy_file" yaml:"policy_file,omitempty"`
	// Skip lists checks that must not run.
	Skip []string `mapstructure:"skip" yaml:"skip,omitempty"`
	// Exclude lists doublestar globs removed from the change-set.
	Exclude []string `mapstructure:"exclude" yaml:"exclude,omitempty"`
	// Checks declares additional script checks.
	Checks []ScriptCheckConfig `mapstructure:"checks" yaml:"checks,omitempty"`

	// Source records where file-based settings came from (for doctor output).
	Source string `mapstructure:"-" yaml:"-"`
}

// ScriptCheckConfig declares a user-defined check backed by an arbitrary command.
type ScriptCheckConfig struct {
	Name        string   `mapstructure:"name" yaml:"name"`
	Description string   `mapstructure:"description" yaml:"description,omitempty"`
	Command     string   `mapstructure:"command" yaml:"command"`
	Args        []string `mapstructure:"args" yaml:"args,omitempty"`
	Stages      []string `mapstructure:"stages" yaml:"stages,omitempty"`
	Files       []string `mapstructure:"files" yaml:"files,omitempty"`
	PassFiles   bool     `mapstructure:"pass_files" yaml:"pass_files,omitempty"`
	Critical    bool     `mapstructure:"critical" yaml:"critical,omitempty"`
	Timeout     string   `mapstructure:"timeout" yaml:"timeout,omitempty"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		FailOnHighSeverity:   true,
		FailOnMediumSeverity: false,
		Verbose:              false,
		AutoFix:              false,
		SampleLimit:          100,
		KustomizeWorkers:     4,
		ToolMode:             "local",
	}
}

// LookupEnv matches os.LookupEnv; tests substitute a map-backed lookup.
type LookupEnv func(key string) (string, bool)

// MapEnv adapts a map to LookupEnv.
func MapEnv(m map[string]string) LookupEnv {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

// LoadWithEnv reads configuration for the repository at root.
// Precedence: defaults < user config < pyproject.toml [tool.hookgate] < .hookgate.yaml < environment.
// Invalid files and malformed environment values are reported and ignored.
func LoadWithEnv(root string, env LookupEnv) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	var sources []string

	if home, err := HomeDir(env); err == nil {
		userFile := filepath.Join(home, "config.yaml")
		if ok, err := mergeYAMLFile(v, userFile); err != nil {
			return nil, err
		} else if ok {
			sources = append(sources, userFile)
		}
	}

	if root != "" {
		pyproject := filepath.Join(root, "pyproject.toml")
		if section, err := ReadPyprojectSection(pyproject); err != nil {
			logger.Warn("ignoring pyproject.toml [tool.hookgate]", logger.Err(err))
		} else if section != nil {
			if err := ValidateDocument(section); err != nil {
				logger.Warn("ignoring invalid [tool.hookgate] section", logger.Err(err))
			} else if err := v.MergeConfigMap(section); err != nil {
				return nil, fmt.Errorf("merging pyproject settings: %w", err)
			} else {
				sources = append(sources, pyproject)
			}
		}

		for _, name := range FileNames {
			path := filepath.Join(root, name)
			ok, err := mergeYAMLFile(v, path)
			if err != nil {
				return nil, err
			}
			if ok {
				sources = append(sources, path)
				break
			}
		}
	}

	cfg := Default()
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	applyEnv(&cfg, env)
	normalize(&cfg)
	cfg.Source = strings.Join(sources, ", ")
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("fail_on_high_severity", d.FailOnHighSeverity)
	v.SetDefault("fail_on_medium_severity", d.FailOnMediumSeverity)
	v.SetDefault("verbose", d.Verbose)
	v.SetDefault("auto_fix", d.AutoFix)
	v.SetDefault("log_dir", d.LogDir)
	v.SetDefault("sample_limit", d.SampleLimit)
	v.SetDefault("kustomize_workers", d.KustomizeWorkers)
	v.SetDefault("check_timeout", d.CheckTimeout)
	v.SetDefault("tool_mode", d.ToolMode)
	v.SetDefault("policy_file", d.PolicyFile)
	v.SetDefault("skip", []string{})
	v.SetDefault("exclude", []string{})
}

// mergeYAMLFile validates and merges a YAML config file. A missing file is not an error.
func mergeYAMLFile(v *viper.Viper, path string) (bool, error) {
	data, err := os.ReadFile(filepath.Clean(path)) // #nosec G304 -- fixed config locations
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", path, err)
	}

	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		logger.Warn("ignoring unparseable config file", logger.String("file", path), logger.Err(err))
		return false, nil
	}
	if doc == nil {
		return false, nil
	}
	if err := ValidateDocument(doc); err != nil {
		logger.Warn("ignoring invalid config file", logger.String("file", path), logger.Err(err))
		return false, nil
	}

	v.SetConfigType("yaml")
	if err := v.MergeConfig(bytes.NewReader(data)); err != nil {
		return false, fmt.Errorf("merging %s: %w", path, err)
	}
	logger.Debug("loaded config file", logger.String("file", path))
	return true, nil
}

type envBinding struct {
	names []string
	apply func(cfg *Config, raw string) error
}

func boolBinding(set func(*Config, bool), names ...string) envBinding {
	return envBinding{names: names, apply: func(cfg *Config, raw string) error {
		b, err := ParseBool(raw)
		if err != nil {
			return err
		}
		set(cfg, b)
		return nil
	}}
}

var envBindings = []envBinding{
	boolBinding(func(c *Config, b bool) { c.FailOnHighSeverity = b }, "HOOKGATE_FAIL_ON_HIGH_SEVERITY", "FAIL_ON_HIGH_SEVERITY"),
	boolBinding(func(c *Config, b bool) { c.FailOnMediumSeverity = b }, "HOOKGATE_FAIL_ON_MEDIUM_SEVERITY", "FAIL_ON_MEDIUM_SEVERITY"),
	boolBinding(func(c *Config, b bool) { c.Verbose = b }, "HOOKGATE_VERBOSE", "VERBOSE"),
	boolBinding(func(c *Config, b bool) { c.AutoFix = b }, "HOOKGATE_AUTO_FIX", "AUTO_FIX"),
	{names: []string{"HOOKGATE_LOG_DIR", "LOG_DIR"}, apply: func(c *Config, raw string) error {
		c.LogDir = raw
		return nil
	}},
	{names: []string{"HOOKGATE_SAMPLE_LIMIT"}, apply: func(c *Config, raw string) error {
		n, err := cast.ToIntE(strings.TrimSpace(raw))
		if err != nil || n < 0 {
			return fmt.Errorf("invalid sample limit %q", raw)
		}
		c.SampleLimit = n
		return nil
	}},
	{names: []string{"HOOKGATE_KUSTOMIZE_WORKERS"}, apply: func(c *Config, raw string) error {
		n, err := cast.ToIntE(strings.TrimSpace(raw))
		if err != nil || n < 1 {
			return fmt.Errorf("invalid worker count %q", raw)
		}
		c.KustomizeWorkers = n
		return nil
	}},
	{names: []string{"HOOKGATE_CHECK_TIMEOUT"}, apply: func(c *Config, raw string) error {
		d, err := cast.ToDurationE(strings.TrimSpace(raw))
		if err != nil || d < 0 {
			return fmt.Errorf("invalid timeout %q", raw)
		}
		c.CheckTimeout = d
		return nil
	}},
	{names: []string{"HOOKGATE_TOOL_MODE"}, apply: func(c *Config, raw string) error {
		c.ToolMode = raw
		return nil
	}},
	{names: []string{"HOOKGATE_POLICY_FILE"}, apply: func(c *Config, raw string) error {
		c.PolicyFile = raw
		return nil
	}},
	{names: []string{"HOOKGATE_SKIP", "SKIP"}, apply: func(c *Config, raw string) error {
		c.Skip = append(c.Skip, SplitList(raw)...)
		return nil
	}},
}

// applyEnv overlays environment values. The first name set wins; malformed values keep the prior setting.
func applyEnv(cfg *Config, env LookupEnv) {
	if env == nil {
		return
	}
	for _, b := range envBindings {
		for _, name := range b.names {
			raw, ok := env(name)
			if !ok || strings.TrimSpace(raw) == "" {
				continue
			}
			if err := b.apply(cfg, raw); err != nil {
				logger.Debug("ignoring malformed environment value", logger.String("var", name), logger.Err(err))
			}
			break
		}
	}
}

func normalize(cfg *Config) {
	d := Default()
	if cfg.SampleLimit < 0 {
		cfg.SampleLimit = d.SampleLimit
	}
	if cfg.KustomizeWorkers < 1 {
		cfg.KustomizeWorkers = d.KustomizeWorkers
	}
	switch strings.ToLower(strings.TrimSpace(cfg.ToolMode)) {
	case "local", "docker", "auto":
		cfg.ToolMode = strings.ToLower(strings.TrimSpace(cfg.ToolMode))
	default:
		logger.Debug("unknown tool mode, using local", logger.String("tool_mode", cfg.ToolMode))
		cfg.ToolMode = d.ToolMode
	}
	cfg.Skip = dedupe(cfg.Skip)
}

// ParseBool accepts the usual shell spellings of a boolean.
func ParseBool(raw string) (bool, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch s {
	case "yes", "y", "on", "enable", "enabled":
		return true, nil
	case "no", "n", "off", "disable", "disabled":
		return false, nil
	}
	return cast.ToBoolE(s)
}

// SplitList splits a comma or whitespace separated list.
func SplitList(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func dedupe(in []string) []string {
	if len(in) == 0 {
		return in
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// HomeDir returns the hookgate home directory ($HOOKGATE_HOME or ~/.hookgate).
func HomeDir(env LookupEnv) (string, error) {
	if env != nil {
		if home, ok := env("HOOKGATE_HOME"); ok && home != "" {
			return home, nil
		}
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".hookgate"), nil
}
