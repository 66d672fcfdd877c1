package main

import (
	"fmt"

	"huddle/internal/appversion"

	"github.com/spf13/cobra"
)

// newRootCmd creates the root huddle command with all subcommands attached.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "huddle",
		Short:         "Huddle autonomous scrum agent",
		Long:          "huddle runs an autonomous scrum agent that watches the team chat\nand the backlog, reacts to changes, and keeps a queryable event log.",
		Version:       fmt.Sprintf("huddle %s", appversion.String()),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("{{.Version}}\n")

	cmd.AddCommand(
		newInitCmd(),
		newStartCmd(),
		newStatusCmd(),
		newLogsCmd(),
		newSayCmd(),
		newDashCmd(),
	)

	return cmd
}
