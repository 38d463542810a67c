package changeset

import (
	"fmt"
	"path"
	"strings"
)

// Category is a kind of file a check can be triggered by.
type Category uint8

const (
	Python Category = iota
	JavaScript
	TypeScript
	Terraform
	Docker
	DockerBake
	YAML
	Shell
	GitHubActions
	Kustomize
	Helm
	Markdown
	JSON

	categoryCount
)

var categoryNames = [...]string{
	Python:        "python",
	JavaScript:    "javascript",
	TypeScript:    "typescript",
	Terraform:     "terraform",
	Docker:        "docker",
	DockerBake:    "docker-bake",
	YAML:          "yaml",
	Shell:         "shell",
	GitHubActions: "github-actions",
	Kustomize:     "kustomize",
	Helm:          "helm",
	Markdown:      "markdown",
	JSON:          "json",
}

func (c Category) String() string {
	if c < categoryCount {
		return categoryNames[c]
	}
	return fmt.Sprintf("category(%d)", uint8(c))
}

// AllCategories lists every category in declaration order.
func AllCategories() []Category {
	out := make([]Category, 0, categoryCount)
	for c := Category(0); c < categoryCount; c++ {
		out = append(out, c)
	}
	return out
}

// ParseCategory maps a category name back to its value.
func ParseCategory(name string) (Category, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for c := Category(0); c < categoryCount; c++ {
		if categoryNames[c] == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown file category %q", name)
}

// CategorySet is a bit set of categories.
type CategorySet uint32

// SetOf builds a set from categories.
func SetOf(cats ...Category) CategorySet {
	var s CategorySet
	for _, c := range cats {
		s = s.With(c)
	}
	return s
}

func (s CategorySet) With(c Category) CategorySet { return s | 1<<c }

func (s CategorySet) Has(c Category) bool { return s&(1<<c) != 0 }

func (s CategorySet) Union(o CategorySet) CategorySet { return s | o }

// Intersects reports whether the sets share a category.
func (s CategorySet) Intersects(o CategorySet) bool { return s&o != 0 }

func (s CategorySet) Empty() bool { return s == 0 }

// List returns the members in declaration order.
func (s CategorySet) List() []Category {
	var out []Category
	for c := Category(0); c < categoryCount; c++ {
		if s.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

func (s CategorySet) String() string {
	names := make([]string, 0, categoryCount)
	for _, c := range s.List() {
		names = append(names, c.String())
	}
	return strings.Join(names, ",")
}

// MarshalText renders the set as a comma separated list.
func (s CategorySet) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

var extCategories = map[string]CategorySet{
	".py":       SetOf(Python),
	".pyi":      SetOf(Python),
	".js":       SetOf(JavaScript),
	".jsx":      SetOf(JavaScript),
	".mjs":      SetOf(JavaScript),
	".cjs":      SetOf(JavaScript),
	".ts":       SetOf(TypeScript),
	".tsx":      SetOf(TypeScript),
	".mts":      SetOf(TypeScript),
	".cts":      SetOf(TypeScript),
	".tf":       SetOf(Terraform),
	".tfvars":   SetOf(Terraform),
	".yml":      SetOf(YAML),
	".yaml":     SetOf(YAML),
	".sh":       SetOf(Shell),
	".bash":     SetOf(Shell),
	".md":       SetOf(Markdown),
	".markdown": SetOf(Markdown),
	".json":     SetOf(JSON),
	".tpl":      SetOf(Helm),
}

// Classify maps a slash-separated repository path to the categories it belongs to.
// It looks only at the path, never the file contents.
func Classify(p string) CategorySet {
	p = strings.TrimPrefix(path.Clean(strings.ReplaceAll(p, "\\", "/")), "./")
	base := path.Base(p)
	lowerBase := strings.ToLower(base)
	ext := strings.ToLower(path.Ext(base))

	set := extCategories[ext]

	switch {
	case strings.HasPrefix(lowerBase, "docker-bake.") && (ext == ".hcl" || ext == ".json"):
		set = set.With(DockerBake)
	case lowerBase == "dockerfile", lowerBase == "containerfile",
		strings.HasPrefix(lowerBase, "dockerfile."), strings.HasPrefix(lowerBase, "containerfile."),
		ext == ".dockerfile":
		set = SetOf(Docker)
	}

	if strings.HasSuffix(lowerBase, ".tf.json") {
		set = set.With(Terraform)
	}

	if ext == ".yml" || ext == ".yaml" {
		switch {
		case isWorkflowPath(p), isActionMetadata(p):
			set = set.With(GitHubActions)
		case lowerBase == "kustomization.yaml", lowerBase == "kustomization.yml":
			set = set.With(Kustomize)
		case base == "Chart.yaml", base == "Chart.yml", isChartTemplate(p):
			set = set.With(Helm)
		}
	}
	if base == "Kustomization" {
		set = SetOf(Kustomize, YAML)
	}
	if base == "Chart.lock" {
		set = set.With(Helm)
	}
	return set
}

func isWorkflowPath(p string) bool {
	return strings.HasPrefix(p, ".github/workflows/") && !strings.Contains(strings.TrimPrefix(p, ".github/workflows/"), "/")
}

func isActionMetadata(p string) bool {
	base := path.Base(p)
	return (base == "action.yml" || base == "action.yaml") &&
		(strings.HasPrefix(p, ".github/actions/") || !strings.Contains(p, "/"))
}

func isChartTemplate(p string) bool {
	return strings.Contains("/"+p, "/templates/") && strings.Contains("/"+p, "/charts/")
}
