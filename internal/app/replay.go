package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"supplywatcher/internal/service"
)

// Replay re-runs window evaluation over stored samples without alerting.
func (a *App) Replay(ctx context.Context, opts ReplayOptions) error {
	from := opts.From.UTC()
	to := opts.To.UTC()
	if !from.Before(to) {
		return errors.New("replay range is empty; check --from/--to")
	}

	windowSize := opts.WindowSize
	if windowSize <= 0 {
		windowSize = a.Config.Monitor.WindowSize
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database.dsn not configured; cannot replay")
	}
	if closeStore != nil {
		defer closeStore()
	}

	rows, err := store.ListSamplesBetween(ctx, from, to)
	if err != nil {
		return err
	}

	result, err := service.Replay(rows, windowSize)
	if err != nil {
		return err
	}

	a.Logger.Info().
		Int("samples", result.Samples).
		Int("skipped", result.Skipped).
		Int("evaluations", result.Evaluations).
		Int("hits", len(result.Hits)).
		Int("window_size", windowSize).
		Msg("replay complete")

	return renderReplay(os.Stdout, result)
}

func renderReplay(out io.Writer, result service.ReplayResult) error {
	if len(result.Hits) == 0 {
		fmt.Fprintf(out, "no triggers across %d evaluations\n", result.Evaluations)
		return nil
	}

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tToken\tOld supply\tNew supply\tIncrease\tPayload")
	for _, hit := range result.Hits {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\n",
			hit.Bucket.UTC().Format(time.RFC3339),
			hit.Payload.Token.Hex(),
			hit.Payload.OldSupply.String(),
			hit.Payload.NewSupply.String(),
			hit.Payload.Delta().String(),
			hexutil.Encode(hit.Encoded),
		)
	}
	return writer.Flush()
}
