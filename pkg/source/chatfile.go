package source

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"huddle/pkg/event"
)

// ChatFile is a monitor.ChatSource backed by an append-only JSONL
// transcript: one event.Message per line.
type ChatFile struct {
	path string
}

// NewChatFile creates an adapter reading the transcript at path.
func NewChatFile(path string) *ChatFile {
	return &ChatFile{path: path}
}

// FetchMessages returns the messages sent strictly after since. A
// missing transcript is an empty channel, not an error; malformed
// lines are skipped so one bad append cannot poison every later poll.
func (c *ChatFile) FetchMessages(_ context.Context, since time.Time) ([]event.Message, error) {
	f, err := os.Open(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open transcript %s: %w", c.path, err)
	}
	defer func() { _ = f.Close() }()

	var out []event.Message
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var msg event.Message
		if err := json.Unmarshal(line, &msg); err != nil {
			continue
		}
		if msg.SentAt.After(since) {
			out = append(out, msg)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read transcript %s: %w", c.path, err)
	}
	return out, nil
}

// Append writes one message to the transcript, creating it if needed.
// Used by tests and by the demo tooling.
func (c *ChatFile) Append(msg event.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	data = append(data, '\n')

	f, err := os.OpenFile(c.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open transcript %s: %w", c.path, err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("append transcript %s: %w", c.path, err)
	}
	return nil
}
