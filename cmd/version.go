/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package cmd

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/fulmenhq/hookgate/pkg/buildinfo"
)

func newVersionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show hookgate version",
		Args:  cobra.NoArgs,
		RunE:  runVersion,
	}
	cmd.Flags().Bool("extended", false, "Show detailed build information")
	cmd.Flags().String("format", "text", "Output format (text|json)")
	return cmd
}

func runVersion(cmd *cobra.Command, _ []string) error {
	extended, _ := cmd.Flags().GetBool("extended")
	format, _ := cmd.Flags().GetString("format")
	out := cmd.OutOrStdout()

	info := map[string]string{
		"version":   buildinfo.Version(),
		"goVersion": runtime.Version(),
		"platform":  runtime.GOOS,
		"arch":      runtime.GOARCH,
	}
	if mv := buildinfo.ModuleVersion(); mv != "" {
		info["moduleVersion"] = mv
	}

	if format == "json" {
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}

	fmt.Fprintf(out, "hookgate %s\n", info["version"])
	if extended {
		fmt.Fprintf(out, "Go Version: %s\n", info["goVersion"])
		fmt.Fprintf(out, "Platform: %s/%s\n", info["platform"], info["arch"])
		if mv, ok := info["moduleVersion"]; ok {
			fmt.Fprintf(out, "Module Version: %s\n", mv)
		}
	}
	return nil
}
