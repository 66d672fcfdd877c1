package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"huddle/pkg/eventlog"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// logsConfig holds configuration for the logs command.
type logsConfig struct {
	tail    int
	typ     string
	source  string
	follow  bool
	noColor bool
}

// followPollInterval is how often --follow re-queries the event log.
const followPollInterval = time.Second

// newLogsCmd creates the "huddle logs" subcommand.
func newLogsCmd() *cobra.Command {
	var cfg logsConfig

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Query and tail the agent event log",
		Long:  "Displays operational events (dispatches, state transitions, drops,\nfetch failures) from the agent's event log database.",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := ResolvePaths()
			if err != nil {
				return fmt.Errorf("resolve paths: %w", err)
			}

			reader, err := eventlog.NewReader(paths.DBPath)
			if err != nil {
				return fmt.Errorf("open event log: %w", err)
			}
			defer func() { _ = reader.Close() }()

			w := cmd.OutOrStdout()
			color := !cfg.noColor && isatty.IsTerminal(os.Stdout.Fd())

			if cfg.follow {
				return followLogs(cmd.Context(), reader, w, cfg, color)
			}
			return printLogs(cmd.Context(), reader, w, cfg, color)
		},
	}

	cmd.Flags().IntVar(&cfg.tail, "tail", 20, "number of recent events to show")
	cmd.Flags().StringVar(&cfg.typ, "type", "", "filter by event type (e.g. state_transition)")
	cmd.Flags().StringVar(&cfg.source, "source", "", "filter by source (e.g. tracker)")
	cmd.Flags().BoolVarP(&cfg.follow, "follow", "f", false, "poll for new events every 1s")
	cmd.Flags().BoolVar(&cfg.noColor, "no-color", false, "disable colored output")

	return cmd
}

// printLogs displays the last N matching entries in chronological order.
func printLogs(ctx context.Context, reader *eventlog.Reader, w io.Writer, cfg logsConfig, color bool) error {
	entries, err := reader.Query(ctx, eventlog.QueryOpts{
		Type:   cfg.typ,
		Source: cfg.source,
		Limit:  cfg.tail,
	})
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(w, "no events found")
		return nil
	}

	// Query returns newest first; print oldest first.
	for i := len(entries) - 1; i >= 0; i-- {
		formatEntry(w, entries[i], color)
	}
	return nil
}

// followLogs prints the initial batch, then polls for entries with a
// higher row ID than the last one printed.
func followLogs(ctx context.Context, reader *eventlog.Reader, w io.Writer, cfg logsConfig, color bool) error {
	entries, err := reader.Query(ctx, eventlog.QueryOpts{
		Type:   cfg.typ,
		Source: cfg.source,
		Limit:  cfg.tail,
	})
	if err != nil {
		return err
	}

	var lastID int64
	for i := len(entries) - 1; i >= 0; i-- {
		formatEntry(w, entries[i], color)
		lastID = entries[i].ID
	}

	ticker := time.NewTicker(followPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			fresh, err := reader.Query(ctx, eventlog.QueryOpts{
				Type:   cfg.typ,
				Source: cfg.source,
				Limit:  100,
			})
			if err != nil {
				return err
			}
			for i := len(fresh) - 1; i >= 0; i-- {
				if fresh[i].ID > lastID {
					formatEntry(w, fresh[i], color)
					lastID = fresh[i].ID
				}
			}
		}
	}
}

// ANSI colors for the type column.
const (
	colorReset  = "\x1b[0m"
	colorRed    = "\x1b[31m"
	colorYellow = "\x1b[33m"
	colorCyan   = "\x1b[36m"
)

// typeColor maps an event type to its display color. Failures are red,
// drops yellow, transitions cyan, everything else uncolored.
func typeColor(typ string) string {
	switch typ {
	case "fetch_error", "handler_error", "handler_panic", "watcher_error":
		return colorRed
	case "queue_full":
		return colorYellow
	case "state_transition":
		return colorCyan
	default:
		return ""
	}
}

// formatEntry writes a single entry in a human-readable format.
func formatEntry(w io.Writer, e eventlog.Entry, color bool) {
	typ := e.Type
	if color {
		if c := typeColor(e.Type); c != "" {
			typ = c + e.Type + colorReset
		}
	}

	ts := ""
	if !e.CreatedAt.IsZero() {
		ts = e.CreatedAt.Format("2006-01-02 15:04:05")
	}

	// Format: timestamp | type | source | detail
	fmt.Fprintf(w, "%s | %-18s | %-10s | %s\n", ts, typ, e.Source, e.Detail)
}
