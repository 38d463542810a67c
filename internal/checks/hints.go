package checks

import (
	"regexp"
	"strings"
)

// MaxSnippetLines caps the lines Extract returns.
const MaxSnippetLines = 12

var ansiEscape = regexp.MustCompile(`\x1b\[[0-9;]*[A-Za-z]`)

// actionable output idioms per tool
var toolPatterns = map[string][]*regexp.Regexp{
	"black":           {regexp.MustCompile(`^would reformat `), regexp.MustCompile(`^error: cannot format`)},
	"isort":           {regexp.MustCompile(`^ERROR: .*(incorrectly sorted|not properly formatted)`)},
	"flake8":          {regexp.MustCompile(`^\S+:\d+:\d+: [A-Z]+\d+ `)},
	"mypy":            {regexp.MustCompile(`: error: `)},
	"prettier":        {regexp.MustCompile(`^\[(warn|error)\] `)},
	"eslint":          {regexp.MustCompile(`^\s+\d+:\d+\s+(error|warning)\s`), regexp.MustCompile(`^✖ \d+ problems?`)},
	"tsc":             {regexp.MustCompile(`error TS\d+:`)},
	"terraform":       {regexp.MustCompile(`^(│ )?Error: `), regexp.MustCompile(`\.tf(vars)?$`)},
	"tflint":          {regexp.MustCompile(`^(Error|Warning|Notice): `), regexp.MustCompile(`^\d+ issue\(s\) found`)},
	"tfsec":           {regexp.MustCompile(`Result #\d+ (CRITICAL|HIGH|MEDIUM|LOW) `), regexp.MustCompile(`\d+ potential problem\(s\) detected`)},
	"checkov":         {regexp.MustCompile(`^Check: CKV\w*_\d+`), regexp.MustCompile(`FAILED for resource: `)},
	"terrascan":       {regexp.MustCompile(`(?i)^\s*(description|severity|rule name)\s*:`)},
	"hadolint":        {regexp.MustCompile(`\b(DL|SC)\d{4}\b`)},
	"trivy":           {regexp.MustCompile(`\b(CRITICAL|HIGH)\b`), regexp.MustCompile(`^Total: \d+`)},
	"yamllint":        {regexp.MustCompile(`^\s+\d+:\d+\s+(error|warning)\s`)},
	"shfmt":           {regexp.MustCompile(`^(---|\+\+\+) `)},
	"git":             {regexp.MustCompile(`(trailing whitespace|space before tab|new blank line at EOF|leftover conflict marker)`)},
	"actionlint":      {regexp.MustCompile(`^\S+:\d+:\d+: `)},
	"pinact":          {regexp.MustCompile(`(?i)(must be pinned|not pinned|level=error|ERRO)`)},
	"gitleaks":        {regexp.MustCompile(`^(Finding|Secret|RuleID|File|Line|Commit):`), regexp.MustCompile(`leaks? found`)},
	"kubeconform":     {regexp.MustCompile(` - (INVALID|ERROR)\b`), regexp.MustCompile(`^Summary: `)},
	"kustomize":       {regexp.MustCompile(`^Error: `)},
	"helm":            {regexp.MustCompile(`^\[(ERROR|WARNING)\]`), regexp.MustCompile(`^Error: `)},
	"docker":          {regexp.MustCompile(`^(ERROR|error):? `)},
	"pip-licenses":    {regexp.MustCompile(`(?i)fail`)},
	"license-checker": {regexp.MustCompile(`(?i)(found license|not allowed)`)},
	"radon":           {regexp.MustCompile(` - [C-F] `)},
}

// Extract picks the actionable lines out of a tool's log: lines matching the tool's
// output idioms, or the last non-empty lines when nothing matches. At most
// MaxSnippetLines lines are returned.
func Extract(tool, log string) []string {
	lines := cleanLines(log)
	if len(lines) == 0 {
		return nil
	}

	var out []string
	for _, line := range lines {
		if strings.HasPrefix(line, "$ ") {
			continue
		}
		if matchesAny(toolPatterns[tool], line) {
			out = append(out, line)
			if len(out) == MaxSnippetLines {
				return out
			}
		}
	}
	if len(out) > 0 {
		return out
	}

	// fallback: tail
	start := len(lines) - MaxSnippetLines
	if start < 0 {
		start = 0
	}
	return lines[start:]
}

func cleanLines(log string) []string {
	log = ansiEscape.ReplaceAllString(log, "")
	var out []string
	for _, line := range strings.Split(log, "\n") {
		line = strings.TrimRight(line, " \t\r")
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}

func matchesAny(patterns []*regexp.Regexp, line string) bool {
	for _, p := range patterns {
		if p.MatchString(line) {
			return true
		}
	}
	return false
}

var toolHints = map[string][]string{
	"black":           {"Run `black <files>` or set AUTO_FIX=true to reformat automatically."},
	"isort":           {"Run `isort <files>` or set AUTO_FIX=true to sort imports."},
	"flake8":          {"Fix the reported codes or add a targeted `# noqa: <code>` with a reason."},
	"mypy":            {"Add or correct type annotations; install missing stub packages (types-*)."},
	"prettier":        {"Run `prettier --write <files>` or set AUTO_FIX=true."},
	"eslint":          {"Run `eslint --fix <files>` for fixable rules; fix the rest by hand."},
	"tsc":             {"Fix the reported TypeScript errors; `tsc --noEmit` reproduces them."},
	"terraform":       {"Run `terraform fmt` to format.", "Run `terraform init -backend=false` before `terraform validate` if providers are missing."},
	"tflint":          {"Run `tflint --init` to install plugins, then fix the reported rules."},
	"tfsec":           {"Fix the insecure configuration or add `#tfsec:ignore:<rule>` with a justification."},
	"checkov":         {"Fix the failed CKV checks or add `#checkov:skip=<id>:<reason>`."},
	"terrascan":       {"Review the reported policy violations; skip rules with `#ts:skip=<rule> <reason>`."},
	"hadolint":        {"See https://github.com/hadolint/hadolint#rules for each DL/SC code."},
	"trivy":           {"Upgrade the affected packages or base image; add accepted risks to .trivyignore."},
	"yamllint":        {"Fix indentation and syntax; tune rules in .yamllint."},
	"shfmt":           {"Run `shfmt -w <files>` or set AUTO_FIX=true."},
	"git":             {"Remove trailing whitespace and conflict markers, then re-stage."},
	"actionlint":      {"Fix the workflow errors; `actionlint` reproduces them locally."},
	"pinact":          {"Run `pinact run` to pin actions to full commit SHAs."},
	"gitleaks":        {"Remove the secret, rotate it, and rewrite history if it was committed.", "Mark false positives in .gitleaksignore."},
	"kustomize":       {"Run `kustomize build <dir>` to reproduce the render error."},
	"kubeconform":     {"Fix the invalid manifests; pass -schema-location for CRDs."},
	"helm":            {"Run `helm lint <chart>` to reproduce."},
	"docker":          {"Run `docker buildx bake --print -f <file>` to reproduce the bake file error."},
	"pip-licenses":    {"Replace or get approval for dependencies with disallowed licenses."},
	"license-checker": {"Replace or get approval for dependencies with disallowed licenses."},
	"radon":           {"Split the most complex functions (rank C or worse)."},
}

// Hints returns static remediation hints for a failing tool.
func Hints(tool string) []string {
	return append([]string(nil), toolHints[tool]...)
}
