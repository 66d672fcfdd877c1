package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// starterConfig is written by `huddle init` as a commented-out template;
// the zero config is fully functional, so everything starts disabled.
const starterConfig = `# huddle configuration. All fields are optional.
#
# agent = "scrum-agent"
# project = "my-project"
# backlog = "/path/to/backlog.yaml"
# chat = "/path/to/chat.jsonl"
# queue_size = 256
#
# [intervals]
# tracker = "30s"
# chat = "10s"
# health = "60s"
# idle = "5m"
# fetch = "10s"
`

// starterBacklog seeds an empty but valid backlog file.
const starterBacklog = `project: my-project
items: []
`

// newInitCmd creates the "huddle init" subcommand.
func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the huddle state directory and starter files",
		Long:  "Creates ~/.huddle (or HUDDLE_HOME) with a starter config.toml,\nan empty backlog, and an empty chat transcript. Existing files are kept.",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := ResolvePaths()
			if err != nil {
				return fmt.Errorf("resolve paths: %w", err)
			}
			if err := os.MkdirAll(paths.Home, 0o755); err != nil {
				return fmt.Errorf("create %s: %w", paths.Home, err)
			}

			created := 0
			files := []struct {
				path    string
				content string
			}{
				{paths.ConfigPath, starterConfig},
				{paths.BacklogPath, starterBacklog},
				{paths.ChatPath, ""},
			}
			for _, f := range files {
				ok, err := writeIfAbsent(f.path, f.content)
				if err != nil {
					return err
				}
				if ok {
					created++
					fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", f.path)
				}
			}

			if created == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%s already initialized\n", paths.Home)
			}
			return nil
		},
	}
}

// writeIfAbsent writes content to path unless the file already exists.
// Reports whether the file was created.
func writeIfAbsent(path, content string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, nil
}
