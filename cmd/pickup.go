package cmd

import (
	"github.com/spf13/cobra"

	"github.com/SamarthP7704/cycle-guard-makeuc/internal/store"
)

var pickupCmd = &cobra.Command{
	Use:   "pickup [image-or-video]",
	Short: "Check a pickup against recent drop-offs",
	Long: `Run a pickup check from an image or video file.

The person is detected and cropped, an identity embedding is extracted
and compared against recent drop-offs. A mismatch raises a security
alert on the configured channels.

Examples:
  cycleguard pickup station-cam/pickup-0538.jpg
  cycleguard pickup station-cam/pickup-0538.mp4 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runPickup,
}

func init() {
	rootCmd.AddCommand(pickupCmd)

	pickupCmd.Flags().Bool("json", false, "Output the recorded event as JSON")
}

func runPickup(cmd *cobra.Command, args []string) error {
	return runIntake(cmd, args[0], store.KindPickup)
}
