package cmd

import (
	"context"
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/SamarthP7704/cycle-guard-makeuc/internal/config"
	"github.com/SamarthP7704/cycle-guard-makeuc/internal/store"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the drop-off similarity index from the event store",
	Long: `Rebuild the in-memory similarity index from every stored drop-off.

The serve command builds this index at startup; reindex runs the same
build standalone as a consistency check. It reports how many stored
drop-offs carry indexable embeddings and logs any that do not fit.`,
	RunE: runReindex,
}

func init() {
	rootCmd.AddCommand(reindexCmd)
}

func runReindex(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("opening event store: %w", err)
	}
	defer st.Close()

	refs, err := st.AllDropoffs(ctx)
	if err != nil {
		return fmt.Errorf("loading drop-offs: %w", err)
	}
	if len(refs) == 0 {
		fmt.Println("No drop-offs stored, nothing to index")
		return nil
	}

	bar := progressbar.NewOptions(len(refs),
		progressbar.OptionSetDescription("Indexing drop-offs"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("events"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)

	index := store.NewDropoffIndex()
	for _, ref := range refs {
		index.Add(ref)
		_ = bar.Add(1)
	}
	_ = bar.Finish()

	fmt.Printf("\nIndexed %d of %d stored drop-offs\n", index.Count(), len(refs))
	if skipped := len(refs) - index.Count(); skipped > 0 {
		fmt.Printf("Skipped %d drop-offs with missing or mismatched embeddings\n", skipped)
	}
	return nil
}
