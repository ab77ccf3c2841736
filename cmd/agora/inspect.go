package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agora-sim/agora/eventlog"
	"github.com/agora-sim/agora/logging"
)

var inspectLast int

var inspectCmd = &cobra.Command{
	Use:   "inspect <session-id>",
	Short: "Print the event log of a stored session",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func init() {
	inspectCmd.Flags().IntVar(&inspectLast, "last", 0, "Only print the last N events")
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	// Read-only: inspecting a session must not touch its metadata.
	store, err := eventlog.Open(dataDir, func(o *eventlog.Options) {
		o.SessionID = args[0]
		o.ReadOnly = true
		o.Logger = logging.NoOpLogger{}
	})
	if err != nil {
		return err
	}
	defer store.Close()

	events, err := store.All()
	if err != nil {
		return err
	}
	if inspectLast > 0 && len(events) > inspectLast {
		events = events[len(events)-inspectLast:]
	}

	for _, ev := range events {
		line := fmt.Sprintf("[%d] %s %s (%s)", ev.EventID, ev.SenderName, ev.Type, ev.Scope)
		if text := ev.Text(); text != "" {
			line += ": " + text
		}
		if len(ev.References) > 0 {
			ids := make([]string, 0, len(ev.References))
			for _, ref := range ev.References {
				ids = append(ids, fmt.Sprintf("%d", ref.EventID))
			}
			line += "  cites " + strings.Join(ids, ",")
		}
		if len(ev.Tags) > 0 {
			line += "  #" + strings.Join(ev.Tags, " #")
		}
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}
	return nil
}
