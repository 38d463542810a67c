package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fulmenhq/hookgate/internal/changeset"
	"github.com/fulmenhq/hookgate/internal/checks"
	"github.com/fulmenhq/hookgate/internal/gitctx"
	"github.com/fulmenhq/hookgate/internal/stage"
	"github.com/fulmenhq/hookgate/pkg/config"
	"github.com/fulmenhq/hookgate/pkg/exitcode"
)

type checkInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Critical    bool     `json:"critical"`
	Stages      []string `json:"stages"`
	Triggers    []string `json:"triggers,omitempty"`
	Tools       []string `json:"tools"`
}

func newChecksCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checks",
		Short: "List registered checks",
		Long: `Checks lists the built-in and configured checks in dispatch order, with the
stages they run in, the file categories that trigger them and the tools they call.`,
		Args: cobra.NoArgs,
		RunE: runChecks,
	}
	cmd.Flags().String("format", "text", "Output format (text|json)")
	cmd.Flags().String("category", "", "Only list checks triggered by this file category")
	return cmd
}

func runChecks(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfigForCwd()
	if err != nil {
		return &exitError{code: exitcode.ConfigError, err: err}
	}
	reg, err := checks.DefaultRegistry(cfg)
	if err != nil {
		return &exitError{code: exitcode.ConfigError, err: err}
	}

	var only *changeset.ChangeSet
	if raw, _ := cmd.Flags().GetString("category"); raw != "" {
		cat, err := changeset.ParseCategory(raw)
		if err != nil {
			var names []string
			for _, c := range changeset.AllCategories() {
				names = append(names, c.String())
			}
			return &exitError{code: exitcode.ConfigError, err: fmt.Errorf("%w (known: %s)", err, strings.Join(names, ", "))}
		}
		// a one-file change-set of that category
		only = &changeset.ChangeSet{Files: []string{"<" + cat.String() + ">"}, Categories: changeset.SetOf(cat)}
	}

	infos := make([]checkInfo, 0, len(reg.All()))
	for _, c := range reg.All() {
		if only != nil && !c.IsApplicable(only) {
			continue
		}
		info := checkInfo{
			Name:        c.Name(),
			Description: c.Description(),
			Critical:    c.Critical(),
			Tools:       c.Tools(),
		}
		for _, st := range []stage.Stage{stage.PreCommit, stage.PrePush} {
			if c.AppliesToStage(st) {
				info.Stages = append(info.Stages, st.String())
			}
		}
		if tc, ok := c.(*checks.ToolCheck); ok {
			def := tc.Definition()
			switch {
			case def.Always:
				info.Triggers = []string{"always"}
			case def.AnyFile:
				info.Triggers = []string{"any file"}
			default:
				for _, cat := range def.Triggers.List() {
					info.Triggers = append(info.Triggers, cat.String())
				}
			}
		}
		infos = append(infos, info)
	}

	out := cmd.OutOrStdout()
	if format, _ := cmd.Flags().GetString("format"); format == "json" {
		data, err := json.MarshalIndent(infos, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}

	width := 0
	for _, i := range infos {
		if len(i.Name) > width {
			width = len(i.Name)
		}
	}
	for _, i := range infos {
		severity := "advisory"
		if i.Critical {
			severity = "critical"
		}
		fmt.Fprintf(out, "%-*s  %-8s  %-19s  %s\n", width, i.Name, severity, strings.Join(i.Stages, ","), i.Description)
		if len(i.Triggers) > 0 {
			fmt.Fprintf(out, "%-*s  triggers: %s\n", width, "", strings.Join(i.Triggers, ", "))
		}
		fmt.Fprintf(out, "%-*s  tools: %s\n", width, "", strings.Join(i.Tools, ", "))
	}
	return nil
}

// loadConfigForCwd loads configuration for the repository containing the working
// directory, or defaults plus the environment when outside a repository.
func loadConfigForCwd() (*config.Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	root, err := gitctx.RepoRoot(wd)
	if err != nil {
		root = ""
	}
	return config.LoadWithEnv(root, lookupEnv)
}
