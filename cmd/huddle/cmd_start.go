package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"huddle/pkg/dispatch"
	"huddle/pkg/event"
	"huddle/pkg/eventlog"
	"huddle/pkg/monitor"
	"huddle/pkg/source"

	"github.com/spf13/cobra"
)

// defaultAgentID names the agent when neither flag nor config sets one.
const defaultAgentID = "scrum-agent"

// transcriptNotifier posts the agent's outgoing messages to the chat
// transcript. The chat monitor's author filter keeps them from being
// fed back to the agent as input.
type transcriptNotifier struct {
	chat  *source.ChatFile
	agent string
}

// Notify implements agent.Notifier.
func (n *transcriptNotifier) Notify(text string) error {
	return n.chat.Append(event.Message{
		Text:       text,
		User:       n.agent,
		Channel:    "general",
		AuthorKind: event.AuthorAgent,
		SentAt:     time.Now(),
	})
}

// newStartCmd creates the "huddle start" subcommand.
func newStartCmd() *cobra.Command {
	var (
		agentID     string
		project     string
		backlogPath string
		chatPath    string
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Run the scrum agent in the foreground",
		Long:  "Starts the source monitors, the event dispatcher, and the status socket,\nand blocks until interrupted. State lives under ~/.huddle (or HUDDLE_HOME).",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := ResolvePaths()
			if err != nil {
				return fmt.Errorf("resolve paths: %w", err)
			}
			if err := os.MkdirAll(paths.Home, 0o755); err != nil {
				return fmt.Errorf("create %s: %w", paths.Home, err)
			}

			fileCfg, err := loadConfig(paths.ConfigPath)
			if err != nil {
				return err
			}
			mcfg, err := fileCfg.monitorConfig()
			if err != nil {
				return err
			}

			// Flags override the config file, which overrides defaults.
			if agentID == "" {
				agentID = fileCfg.Agent
			}
			if agentID == "" {
				agentID = defaultAgentID
			}
			if backlogPath == "" {
				backlogPath = fileCfg.Backlog
			}
			if backlogPath == "" {
				backlogPath = paths.BacklogPath
			}
			if chatPath == "" {
				chatPath = fileCfg.Chat
			}
			if chatPath == "" {
				chatPath = paths.ChatPath
			}

			backlog := source.NewBacklogFile(backlogPath)
			chat := source.NewChatFile(chatPath)

			if project == "" {
				project = fileCfg.Project
			}
			if project == "" {
				// Fall back to the project declared in the backlog file.
				if p, err := backlog.Project(); err == nil && p != "" {
					project = p
				} else {
					project = "default"
				}
			}

			log, err := eventlog.Open(paths.DBPath)
			if err != nil {
				return fmt.Errorf("open event log: %w", err)
			}
			defer func() { _ = log.Close() }()

			notifier := &transcriptNotifier{chat: chat, agent: agentID}
			rt, err := dispatch.NewRuntime(agentID, project, mcfg, notifier,
				dispatch.WithSocketPath(paths.SocketPath),
				dispatch.WithRecorder(log))
			if err != nil {
				return err
			}

			cfg := rt.Config()
			rt.AttachMonitor(monitor.NewTrackerMonitor(backlog, rt.Queue(),
				cfg.PollInterval("tracker"), cfg.FetchTimeout,
				monitor.WithWatchPath(backlog.Path()),
				monitor.WithTrackerRecorder(rt.Recorder())))
			rt.AttachMonitor(monitor.NewChatMonitor(chat, rt.Queue(),
				cfg.PollInterval("chat"), cfg.FetchTimeout,
				monitor.WithChatRecorder(rt.Recorder())))
			rt.AttachMonitor(monitor.NewHealthMonitor(rt.Queue(),
				cfg.HealthCheckInterval, rt.Recorder()))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Fprintf(cmd.OutOrStdout(),
				"huddle agent %s started (project=%s, backlog=%s, chat=%s)\nstatus socket: %s\n",
				agentID, project, backlogPath, chatPath, paths.SocketPath)

			return rt.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&agentID, "agent", "", "agent identifier (default from config, then \"scrum-agent\")")
	cmd.Flags().StringVar(&project, "project", "", "project identifier (default from config, then the backlog file)")
	cmd.Flags().StringVar(&backlogPath, "backlog", "", "backlog YAML file to watch (default $HUDDLE_HOME/backlog.yaml)")
	cmd.Flags().StringVar(&chatPath, "chat", "", "chat transcript JSONL file to watch (default $HUDDLE_HOME/chat.jsonl)")

	return cmd
}
