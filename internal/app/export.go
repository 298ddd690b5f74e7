package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"supplywatcher/internal/alerting"
	"supplywatcher/internal/storage"
)

// Export renders historical supply samples as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot export")
	}
	if closeStore != nil {
		defer closeStore()
	}

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}

	from := to.Add(-time.Duration(opts.MaxPoints) * a.Config.Scheduler.Interval)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	samples, err := store.ListSamplesBetween(ctx, from, to)
	if err != nil {
		return err
	}
	samples = completeSamples(samples, opts.Token)
	if len(samples) == 0 {
		a.Logger.Info().Msg("no samples found for export window")
		return nil
	}

	downsampled := downsampleSamples(samples, opts.MaxPoints)
	a.Logger.Info().Int("total", len(samples)).Int("exported", len(downsampled)).Msg("exporting samples")

	if opts.CSVPath != "" {
		if err := writeSamplesCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		reader := a.newTokenReader()
		defer reader.Close()
		resolver := a.newDecimalsResolver(reader)
		decimals := resolver.lookup(ctx, downsampled[len(downsampled)-1].Token)

		if err := writeSamplesPNG(opts.PNGPath, downsampled, decimals); err != nil {
			return err
		}
	}

	return nil
}

// completeSamples drops errored rows and, when token is set, rows for other tokens.
func completeSamples(samples []storage.SupplySample, token string) []storage.SupplySample {
	out := make([]storage.SupplySample, 0, len(samples))
	for _, s := range samples {
		if token != "" && !strings.EqualFold(s.Token, token) {
			continue
		}
		if s.Status == storage.StatusComplete && s.ObservedSupply != nil {
			out = append(out, s)
		}
	}
	return out
}

func downsampleSamples(samples []storage.SupplySample, max int) []storage.SupplySample {
	if max <= 0 || len(samples) <= max {
		return samples
	}
	if max == 1 {
		return samples[len(samples)-1:]
	}

	result := make([]storage.SupplySample, 0, max)
	step := float64(len(samples)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(samples) {
			idx = len(samples) - 1
		}
		result = append(result, samples[idx])
	}
	return result
}

func writeSamplesCSV(path string, samples []storage.SupplySample) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"bucket_ts", "token", "observed_supply", "max_allowed_increase", "status"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, sample := range samples {
		record := []string{
			sample.Bucket.Format(time.RFC3339),
			sample.Token,
			sample.ObservedSupply.String(),
			bigOrEmpty(sample.Threshold),
			sample.Status,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func writeSamplesPNG(path string, samples []storage.SupplySample, decimals uint8) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(samples))
	observed := make([]float64, len(samples))
	ceiling := make([]float64, len(samples))

	base := samples[0].ObservedSupply
	for i, sample := range samples {
		x[i] = sample.Bucket
		observed[i] = alerting.Units(sample.ObservedSupply, decimals).InexactFloat64()
		ceiling[i] = alerting.Units(base, decimals).Add(alerting.Units(sample.Threshold, decimals)).InexactFloat64()
	}

	supplyFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Total supply",
			ValueFormatter: supplyFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Observed supply",
				XValues: x,
				YValues: observed,
			},
			chart.TimeSeries{
				Name:    "First sample + max increase",
				XValues: x,
				YValues: ceiling,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func bigOrEmpty(v *big.Int) string {
	if v == nil {
		return ""
	}
	return v.String()
}
