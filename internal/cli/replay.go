package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"supplywatcher/internal/app"
)

var (
	replayFrom   string
	replayTo     string
	replayWindow int
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Re-evaluate stored samples and list windows that would have alerted",
	RunE: func(cmd *cobra.Command, args []string) error {
		if replayFrom == "" || replayTo == "" {
			return fmt.Errorf("--from and --to must be provided")
		}

		from, err := time.Parse(time.RFC3339, replayFrom)
		if err != nil {
			return fmt.Errorf("invalid --from value: %w", err)
		}

		to, err := time.Parse(time.RFC3339, replayTo)
		if err != nil {
			return fmt.Errorf("invalid --to value: %w", err)
		}

		if !from.Before(to) {
			return fmt.Errorf("--from must be before --to")
		}
		if replayWindow == 1 || replayWindow < 0 {
			return fmt.Errorf("--window must be at least 2")
		}

		opts := app.ReplayOptions{
			From:       from,
			To:         to,
			WindowSize: replayWindow,
		}

		return getApp().Replay(cmd.Context(), opts)
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayFrom, "from", "", "Start timestamp (RFC3339, inclusive)")
	replayCmd.Flags().StringVar(&replayTo, "to", "", "End timestamp (RFC3339, exclusive)")
	replayCmd.Flags().IntVar(&replayWindow, "window", 0, "Window size override (defaults to monitor.window_size)")
}
