package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"huddle/pkg/dispatch"

	"github.com/spf13/cobra"
)

// statusQueryTimeout bounds the status socket round trip.
const statusQueryTimeout = 2 * time.Second

// newStatusCmd creates the "huddle status" subcommand.
func newStatusCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the running agent's state",
		Long:  "Queries the status socket of a running huddle agent and displays\nits state, queue depth, active sources, and dispatch counters.",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := ResolvePaths()
			if err != nil {
				return fmt.Errorf("resolve paths: %w", err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), statusQueryTimeout)
			defer cancel()

			status, err := dispatch.QueryStatus(ctx, paths.SocketPath)
			if err != nil {
				return fmt.Errorf("agent not reachable at %s (is it running?): %w", paths.SocketPath, err)
			}

			w := cmd.OutOrStdout()
			if asJSON {
				data, err := json.MarshalIndent(status, "", "  ")
				if err != nil {
					return fmt.Errorf("encode status: %w", err)
				}
				fmt.Fprintln(w, string(data))
				return nil
			}

			fmt.Fprintf(w, "running:        %v\n", status.Running)
			fmt.Fprintf(w, "state:          %s\n", status.CurrentState)
			fmt.Fprintf(w, "mode:           %s\n", status.Mode)
			fmt.Fprintf(w, "queue:          %d (dropped %d)\n", status.QueueSize, status.DroppedEvents)
			fmt.Fprintf(w, "sources:        %s\n", formatSources(status.ActiveSources))
			fmt.Fprintf(w, "handlers:       %d\n", status.HandlerCount)
			fmt.Fprintf(w, "events seen:    %d\n", status.EventsSeen)
			fmt.Fprintf(w, "handler errors: %d\n", status.HandlerErrors)
			if !status.LastActivity.IsZero() {
				fmt.Fprintf(w, "last activity:  %s\n", status.LastActivity.Format(time.RFC3339))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw status JSON")

	return cmd
}

// formatSources renders the active source list, or "none".
func formatSources(sources []string) string {
	if len(sources) == 0 {
		return "none"
	}
	return strings.Join(sources, ", ")
}
