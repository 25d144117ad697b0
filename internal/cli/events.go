package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func newEventsCmd() *cobra.Command {
	var jsonOutput, mine bool
	var since string

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Stream matchmaking events over SSE",
		Long: `Connect to an SSE endpoint and stream events in real-time.

By default every committed match is streamed. --since replays the matches
committed from an RFC3339 time on, and a dropped matches stream reconnects
from the last match seen. With --me, the events that concern you are
streamed instead:
  - player_queued / player_left
  - proposal_created / proposal_accepted
  - proposal_cancelled / proposal_expired
  - match_committed / match_released

Press Ctrl+C to disconnect.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts StreamOptions
			if since != "" {
				if mine {
					return fmt.Errorf("--since only applies to the matches stream")
				}
				t, err := time.Parse(time.RFC3339Nano, since)
				if err != nil {
					return fmt.Errorf("--since must be an RFC3339 time: %w", err)
				}
				opts.Since = t
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if mine {
				_, err := streamEvents(ctx, cmd.OutOrStdout(), "/api/v1/players/me/events", opts, jsonOutput)
				return err
			}
			return streamMatches(ctx, cmd.OutOrStdout(), opts, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output events as JSON lines")
	cmd.Flags().BoolVar(&mine, "me", false, "Stream your own events instead of all matches")
	cmd.Flags().StringVar(&since, "since", "", "Replay matches committed since this RFC3339 time")

	return cmd
}

// reconnectDelay is the pause before resuming a dropped matches stream
const reconnectDelay = 2 * time.Second

// SSEEvent represents a parsed SSE event
type SSEEvent struct {
	Time  time.Time `json:"time"`
	ID    string    `json:"id,omitempty"`
	Event string    `json:"event"`
	Data  string    `json:"data"`
}

// streamMatches follows the matches stream until ctx ends, resuming from the
// last match id after the server drops the connection
func streamMatches(ctx context.Context, w io.Writer, opts StreamOptions, jsonOutput bool) error {
	for {
		lastID, err := streamEvents(ctx, w, "/api/v1/events", opts, jsonOutput)
		if err != nil || ctx.Err() != nil {
			return err
		}
		if lastID != "" {
			opts = StreamOptions{LastEventID: lastID}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(reconnectDelay):
		}
		if !jsonOutput {
			fmt.Fprintln(w, "Reconnecting")
		}
	}
}

// streamEvents prints one connection's events and returns the last event id
// it saw
func streamEvents(ctx context.Context, w io.Writer, path string, opts StreamOptions, jsonOutput bool) (string, error) {
	body, err := client.OpenStream(ctx, path, opts)
	if err != nil {
		return "", err
	}
	defer func() { _ = body.Close() }()

	if !jsonOutput {
		fmt.Fprintf(w, "Connected to %s\n", path)
	}

	scanner := bufio.NewScanner(body)
	var lastID, currentID, currentEvent string
	var dataLines []string

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case strings.HasPrefix(line, "id: "):
			currentID = strings.TrimPrefix(line, "id: ")
		case strings.HasPrefix(line, "event: "):
			currentEvent = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			dataLines = append(dataLines, strings.TrimPrefix(line, "data: "))
		case line == "":
			if currentEvent != "" {
				printEvent(w, currentID, currentEvent, strings.Join(dataLines, "\n"), jsonOutput)
			}
			if currentID != "" {
				lastID = currentID
			}
			currentID, currentEvent = "", ""
			dataLines = nil
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return lastID, fmt.Errorf("stream error: %w", err)
	}
	if !jsonOutput {
		fmt.Fprintln(w, "Disconnected")
	}
	return lastID, nil
}

func printEvent(w io.Writer, id, event, data string, jsonOutput bool) {
	now := time.Now()

	if jsonOutput {
		jsonData, _ := json.Marshal(SSEEvent{Time: now, ID: id, Event: event, Data: data})
		fmt.Fprintln(w, string(jsonData))
		return
	}

	displayData := data
	if len(displayData) > 160 {
		displayData = displayData[:160] + "..."
	}
	displayData = strings.ReplaceAll(displayData, "\n", " ")
	fmt.Fprintf(w, "[%s] %s: %s\n", now.Format("2006-01-02 15:04:05"), event, displayData)
}
