package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/SamarthP7704/cycle-guard-makeuc/internal/config"
	"github.com/SamarthP7704/cycle-guard-makeuc/internal/store"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List recorded surveillance events",
	Long: `List recorded drop-off and pickup events, newest first.

Examples:
  cycleguard events
  cycleguard events --limit 100
  cycleguard events --json`,
	RunE: runEvents,
}

func init() {
	rootCmd.AddCommand(eventsCmd)

	eventsCmd.Flags().Int("limit", 20, "Maximum number of events to list")
	eventsCmd.Flags().Int("offset", 0, "Number of events to skip")
	eventsCmd.Flags().Bool("json", false, "Output as JSON")
}

func runEvents(cmd *cobra.Command, args []string) error {
	limit := mustGetInt(cmd, "limit")
	offset := mustGetInt(cmd, "offset")
	jsonOutput := mustGetBool(cmd, "json")

	cfg := config.Load()
	ctx := context.Background()

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("opening event store: %w", err)
	}
	defer st.Close()

	events, err := st.List(ctx, limit, offset)
	if err != nil {
		return fmt.Errorf("listing events: %w", err)
	}

	if jsonOutput {
		return json.NewEncoder(os.Stdout).Encode(events)
	}

	if len(events) == 0 {
		fmt.Println("No events recorded")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tTIME\tSOURCE\tMATCH\tALERT")
	fmt.Fprintln(w, "--\t----\t----\t------\t-----\t-----")
	for _, e := range events {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%v\n",
			e.ID, e.Kind, e.Timestamp.Format("2006-01-02 15:04:05"),
			e.EmbeddingSource, formatMatch(e.Match), e.AlertSent)
	}
	w.Flush()
	return nil
}

func formatMatch(m *store.MatchResult) string {
	if m == nil {
		return "-"
	}
	verdict := "mismatch"
	if m.IsSamePerson {
		verdict = "same"
	}
	return fmt.Sprintf("%s %.2f (%s)", verdict, m.SimilarityScore, m.Confidence)
}
