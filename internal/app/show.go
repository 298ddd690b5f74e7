package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"supplywatcher/internal/alerting"
	"supplywatcher/internal/storage"
)

// Show prints recent samples, or recent alerts when opts.Alerts is set.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show samples")
	}
	if closeStore != nil {
		defer closeStore()
	}

	reader := a.newTokenReader()
	defer reader.Close()
	resolver := a.newDecimalsResolver(reader)

	if opts.Alerts {
		alerts, err := store.ListRecentAlerts(ctx, opts.Limit)
		if err != nil {
			return err
		}
		return renderAlerts(ctx, os.Stdout, alerts, resolver)
	}

	samples, err := store.ListRecentSamples(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if err := renderSamples(ctx, os.Stdout, samples, resolver); err != nil {
		return err
	}

	total, err := store.CountSamples(ctx)
	if err != nil {
		return err
	}
	if len(samples) > 0 {
		fmt.Fprintf(os.Stdout, "\nshowing %d of %d stored samples\n", len(samples), total)
	}
	return nil
}

func renderSamples(ctx context.Context, out io.Writer, samples []storage.SupplySample, resolver *decimalsResolver) error {
	if len(samples) == 0 {
		fmt.Fprintln(out, "no samples found")
		return nil
	}

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tToken\tSupply\tMax increase\tStatus\tError")

	for _, sample := range samples {
		errMsg := ""
		if sample.Error != nil {
			errMsg = sanitizeInline(*sample.Error)
		}
		decimals := resolver.lookup(ctx, sample.Token)
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\n",
			sample.Bucket.UTC().Format(time.RFC3339),
			sample.Token,
			alerting.FormatUnits(sample.ObservedSupply, decimals),
			alerting.FormatUnits(sample.Threshold, decimals),
			sample.Status,
			errMsg,
		)
	}

	return writer.Flush()
}

func renderAlerts(ctx context.Context, out io.Writer, alerts []storage.AlertRecord, resolver *decimalsResolver) error {
	if len(alerts) == 0 {
		fmt.Fprintln(out, "no alerts found")
		return nil
	}

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tToken\tOld supply\tNew supply\tMax increase\tChannels\tPayload")

	for _, alert := range alerts {
		decimals := resolver.lookup(ctx, alert.Token)
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			alert.SampleTS.UTC().Format(time.RFC3339),
			alert.Token,
			alerting.FormatUnits(alert.OldSupply, decimals),
			alerting.FormatUnits(alert.NewSupply, decimals),
			alerting.FormatUnits(alert.Threshold, decimals),
			strings.Join(alert.Channels, ","),
			hexutil.Encode(alert.Payload),
		)
	}

	return writer.Flush()
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}

// PruneAlerts deletes alert records older than the retention window.
func (a *App) PruneAlerts(ctx context.Context, olderThan time.Duration) error {
	if olderThan <= 0 {
		return errors.New("retention must be greater than zero")
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot prune alerts")
	}
	if closeStore != nil {
		defer closeStore()
	}

	cutoff := time.Now().UTC().Add(-olderThan)
	if err := store.DeleteAlertsBefore(ctx, cutoff); err != nil {
		return err
	}
	a.Logger.Info().Time("cutoff", cutoff).Msg("pruned alert history")
	return nil
}
