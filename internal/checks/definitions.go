package checks

import (
	cs "github.com/fulmenhq/hookgate/internal/changeset"
	"github.com/fulmenhq/hookgate/internal/stage"
)

var (
	pushOnly   = []stage.Stage{stage.PrePush}
	commitOnly = []stage.Stage{stage.PreCommit}
)

// Names of the built-in checks, in dispatch order.
const (
	PythonQuality     = "python-quality"
	JavaScriptQuality = "javascript-quality"
	TerraformQuality  = "terraform-quality"
	DockerSecurity    = "docker-security"
	DockerBakeCheck   = "docker-bake"
	FileQuality       = "file-quality"
	GitHubActions     = "github-actions"
	KustomizeCheck    = "kustomize"
	SecurityCheck     = "security-check"
	LicenseCheck      = "license-check"
	PerformanceCheck  = "performance-check"
	CodeMetrics       = "code-metrics"
)

const (
	pipLicensesDenylist    = "GNU Affero General Public License v3 (AGPLv3);GNU General Public License v3 (GPLv3)"
	licenseCheckerDenylist = "AGPL-3.0;AGPL-3.0-only;AGPL-3.0-or-later;GPL-3.0;GPL-3.0-only;GPL-3.0-or-later"
)

// BuiltinDefinitions returns the tool-backed built-in checks. The kustomize check is
// not listed here; it needs its own fan-out runner.
func BuiltinDefinitions() []Definition {
	py := cs.SetOf(cs.Python)
	web := cs.SetOf(cs.JavaScript, cs.TypeScript)
	tf := cs.SetOf(cs.Terraform)
	docker := cs.SetOf(cs.Docker)

	return []Definition{
		{
			Name:        PythonQuality,
			Description: "Python formatting, import order, lint and typing",
			Triggers:    py,
			Steps: []Step{
				{Tool: "black", Args: []string{"--check", "--diff"}, FixArgs: []string{}, Files: py, Mode: AppendFiles},
				{Tool: "isort", Args: []string{"--check-only", "--diff"}, FixArgs: []string{}, Files: py, Mode: AppendFiles},
				{Tool: "flake8", Files: py, Mode: AppendFiles},
				{Tool: "mypy", Args: []string{"--ignore-missing-imports"}, Files: py, Mode: AppendFiles, Stages: pushOnly},
			},
		},
		{
			Name:        JavaScriptQuality,
			Description: "JavaScript/TypeScript formatting, lint and type check",
			Triggers:    web,
			Steps: []Step{
				{Tool: "prettier", Args: []string{"--check"}, FixArgs: []string{"--write"}, Files: web, Mode: AppendFiles},
				{Tool: "eslint", FixArgs: []string{"--fix"}, Files: web, Mode: AppendFiles},
				{Tool: "tsc", Args: []string{"--noEmit"}, Stages: pushOnly, Requires: cs.SetOf(cs.TypeScript), ProjectFile: "tsconfig.json"},
			},
		},
		{
			Name:        TerraformQuality,
			Description: "Terraform formatting, validation, lint and security scanning",
			Triggers:    tf,
			Critical:    true,
			Steps: []Step{
				{Tool: "terraform", Args: []string{"fmt", "-check", "-diff"}, FixArgs: []string{"fmt"}, Files: tf, Glob: "**/*.{tf,tfvars}", Mode: AppendFiles},
				{Tool: "terraform", Args: []string{"-chdir={dir}", "validate", "-no-color"}, Files: tf, Mode: EachDir},
				{Tool: "tflint", Args: []string{"--chdir={dir}"}, Files: tf, Mode: EachDir},
				{Tool: "tfsec", Args: []string{"{dir}", "--no-color"}, Files: tf, Mode: EachDir, Stages: pushOnly},
				{Tool: "checkov", Args: []string{"-d", "{dir}", "--quiet", "--compact"}, Files: tf, Mode: EachDir, Stages: pushOnly},
				{Tool: "terrascan", Args: []string{"scan", "-i", "terraform", "-d", "{dir}"}, Files: tf, Mode: EachDir, Stages: pushOnly},
			},
		},
		{
			Name:        DockerSecurity,
			Description: "Dockerfile lint and misconfiguration scanning",
			Triggers:    docker,
			Critical:    true,
			Steps: []Step{
				{Tool: "hadolint", Files: docker, Mode: EachFile},
				{Tool: "trivy", Args: []string{"config", "--exit-code", "1", "--severity", "HIGH,CRITICAL", "{dir}"}, Files: docker, Mode: EachDir, Stages: pushOnly},
			},
		},
		{
			Name:        DockerBakeCheck,
			Description: "docker buildx bake file syntax",
			Triggers:    cs.SetOf(cs.DockerBake),
			Critical:    true,
			Steps: []Step{
				{Tool: "docker", Args: []string{"buildx", "bake", "--print", "-f", "{file}"}, Files: cs.SetOf(cs.DockerBake), Mode: EachFile},
			},
		},
		{
			Name:        FileQuality,
			Description: "YAML lint, shell formatting and whitespace errors",
			Triggers:    cs.SetOf(cs.YAML, cs.Shell),
			AnyFile:     true,
			Steps: []Step{
				{Tool: "yamllint", Args: []string{"-s"}, Files: cs.SetOf(cs.YAML), Mode: AppendFiles},
				{Tool: "shfmt", Args: []string{"-d"}, FixArgs: []string{"-w"}, Files: cs.SetOf(cs.Shell), Mode: AppendFiles},
				{Tool: "git", Args: []string{"diff", "--cached", "--check"}},
			},
		},
		{
			Name:        GitHubActions,
			Description: "GitHub Actions workflow lint and action SHA pinning",
			Triggers:    cs.SetOf(cs.GitHubActions),
			Critical:    true,
			Steps: []Step{
				{Tool: "actionlint", Files: cs.SetOf(cs.GitHubActions), Glob: ".github/workflows/*.{yml,yaml}", Mode: AppendFiles},
				{Tool: "pinact", Args: []string{"run", "--check"}, Files: cs.SetOf(cs.GitHubActions), Mode: AppendFiles},
			},
		},
		{
			Name:        SecurityCheck,
			Description: "Secret detection and dependency vulnerability scanning",
			Always:      true,
			Critical:    true,
			Steps: []Step{
				{Tool: "gitleaks", Args: []string{"protect", "--staged", "--no-banner", "--redact"}, Stages: commitOnly, ExactStage: true},
				{Tool: "gitleaks", Args: []string{"detect", "--no-banner", "--redact"}, Stages: pushOnly},
				{Tool: "trivy", Args: []string{"fs", "--scanners", "vuln", "--exit-code", "1", "--severity", "HIGH,CRITICAL", "--quiet", "."}, Stages: pushOnly},
			},
		},
		{
			Name:        LicenseCheck,
			Description: "Dependency license policy",
			Stages:      pushOnly,
			Triggers:    cs.SetOf(cs.Python, cs.JavaScript, cs.TypeScript),
			Steps: []Step{
				{Tool: "pip-licenses", Args: []string{"--fail-on", pipLicensesDenylist}, Requires: py},
				{Tool: "license-checker", Args: []string{"--summary", "--failOn", licenseCheckerDenylist}, Requires: web},
			},
		},
		{
			Name:        PerformanceCheck,
			Description: "Cyclomatic complexity hot spots",
			Stages:      pushOnly,
			Triggers:    py,
			Steps: []Step{
				{Tool: "radon", Args: []string{"cc", "--min", "C", "--show-complexity"}, Files: py, Mode: AppendFiles},
			},
		},
		{
			Name:        CodeMetrics,
			Description: "Size and maintainability metrics",
			Stages:      pushOnly,
			AnyFile:     true,
			Steps: []Step{
				{Tool: "cloc", Args: []string{"--quiet"}, AllFiles: true, Mode: AppendFiles},
				{Tool: "radon", Args: []string{"mi", "--show"}, Files: py, Mode: AppendFiles},
			},
		},
	}
}
