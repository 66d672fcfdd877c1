package main

import (
	"fmt"
	"strings"
	"time"

	"huddle/pkg/event"
	"huddle/pkg/source"

	"github.com/spf13/cobra"
)

// newSayCmd creates the "huddle say" subcommand. It appends a human
// message to the chat transcript, which a running agent picks up on its
// next chat poll.
func newSayCmd() *cobra.Command {
	var (
		user    string
		channel string
	)

	cmd := &cobra.Command{
		Use:   "say <text>...",
		Short: "Post a message to the agent's chat transcript",
		Long:  "Appends a message to the chat transcript file as a human author.\nA running agent sees it on its next chat poll.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := ResolvePaths()
			if err != nil {
				return fmt.Errorf("resolve paths: %w", err)
			}

			fileCfg, err := loadConfig(paths.ConfigPath)
			if err != nil {
				return err
			}
			chatPath := fileCfg.Chat
			if chatPath == "" {
				chatPath = paths.ChatPath
			}

			msg := event.Message{
				Text:       strings.Join(args, " "),
				User:       user,
				Channel:    channel,
				AuthorKind: event.AuthorHuman,
				SentAt:     time.Now(),
			}
			if err := source.NewChatFile(chatPath).Append(msg); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "posted to %s\n", chatPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "cli", "author name for the message")
	cmd.Flags().StringVar(&channel, "channel", "general", "channel name for the message")

	return cmd
}
