package main

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/dialogmesh/core"
	"github.com/hupe1980/dialogmesh/tracker"
)

// NewReplayCmd creates the replay command.
func NewReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay [conversation-id]",
		Short: "Fold a stored conversation and print its state",
		Long: `Loads the events of a conversation from the configured tracker store,
folds them from empty state and prints the resulting slots, active form and
event log. Without an id the known conversation ids are listed. With
--session only the latest session is replayed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runReplay,
	}
	cmd.Flags().Bool("session", false, "replay only the latest session")
	return cmd
}

type replayOutput struct {
	ConversationID string       `json:"conversation_id"`
	State          core.State   `json:"state"`
	Events         []core.Event `json:"events"`
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	store, closeStore, err := tracker.New(cmd.Context(), cfg.Store.TrackerConfig(), func(o *tracker.Options) {
		o.Logger = logger
	})
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	out := cmd.OutOrStdout()

	if len(args) == 0 {
		keys, err := store.Keys(cmd.Context())
		if err != nil {
			return err
		}
		for _, k := range keys {
			fmt.Fprintln(out, k)
		}
		return nil
	}

	found, err := tracker.Exists(cmd.Context(), store, args[0])
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("unknown conversation %q", args[0])
	}

	load := store.Load
	if session, _ := cmd.Flags().GetBool("session"); session {
		load = func(ctx context.Context, id string) ([]core.Event, error) {
			return tracker.LoadSession(ctx, store, id)
		}
	}

	events, err := load(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	result := replayOutput{ConversationID: args[0], State: core.Fold(events), Events: events}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	}

	fmt.Fprintf(out, "conversation: %s\n", result.ConversationID)
	fmt.Fprintf(out, "active form:  %s\n", orDash(result.State.ActiveForm))
	fmt.Fprintf(out, "paused:       %t\n", result.State.Paused)
	fmt.Fprintf(out, "slots:        %v\n\n", result.State.Slots)

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "TIME\tEVENT\tDETAIL")
	for _, ev := range events {
		fmt.Fprintf(w, "%s\t%s\t%s\n", ev.Timestamp.Format(time.RFC3339), ev.Type, detail(ev))
	}

	return w.Flush()
}

func detail(ev core.Event) string {
	switch ev.Type {
	case core.EventUserUttered:
		return fmt.Sprintf("%q (%s)", ev.Text, ev.Intent())
	case core.EventBotUttered:
		return fmt.Sprintf("%q", ev.Text)
	case core.EventSlotSet:
		return fmt.Sprintf("%s=%v", ev.Name, ev.Value)
	case core.EventActionFailed, core.EventActionRejected:
		return fmt.Sprintf("%s: %s %s", ev.Name, ev.Kind, ev.Reason)
	default:
		return ev.Name
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
