package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "cycleguard",
	Short: "Rental cycle surveillance and pickup verification",
	Long: `CycleGuard watches rental cycle drop-offs and pickups and decides
whether the person picking up a cycle is the one who dropped it off.
It extracts person embeddings from uploaded evidence, compares pickups
against recent drop-offs and raises security alerts on mismatches.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
