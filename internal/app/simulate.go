package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"supplywatcher/internal/service"
	"supplywatcher/internal/supply"
)

// SimulateAlert evaluates a synthetic [new, old] window and, on trigger,
// pushes the alert through the configured sinks.
func (a *App) SimulateAlert(ctx context.Context, opts SimulateOptions) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting is disabled")
	}

	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("no alert channel configured")
	}

	window, err := syntheticWindow(opts)
	if err != nil {
		return err
	}

	svc := service.New(a.Config, service.Deps{Notifier: notifier}, a.Logger)

	bucket := time.Now().UTC().Truncate(a.Config.Scheduler.Interval)
	triggered, err := svc.EvaluateWindow(ctx, bucket, window, opts.Decimals)
	if err != nil {
		return err
	}
	if !triggered {
		a.Logger.Info().
			Str("old_supply", opts.Old.String()).
			Str("new_supply", opts.New.String()).
			Str("threshold", opts.Threshold.String()).
			Msg("simulated window did not trigger")
	}
	return nil
}

func syntheticWindow(opts SimulateOptions) ([][]byte, error) {
	latest, err := supply.NewSample(opts.Token, opts.New, opts.Threshold)
	if err != nil {
		return nil, fmt.Errorf("latest sample: %w", err)
	}
	oldest, err := supply.NewSample(opts.Token, opts.Old, opts.Threshold)
	if err != nil {
		return nil, fmt.Errorf("oldest sample: %w", err)
	}

	latestEncoded, err := latest.Encode()
	if err != nil {
		return nil, err
	}
	oldestEncoded, err := oldest.Encode()
	if err != nil {
		return nil, err
	}
	return [][]byte{latestEncoded, oldestEncoded}, nil
}

// EvaluateEncoded decodes hex samples (newest first), evaluates them and writes
// the verdict and payload to out.
func (a *App) EvaluateEncoded(out io.Writer, encoded []string) error {
	samples := make([][]byte, 0, len(encoded))
	for i, raw := range encoded {
		decoded, err := hexutil.Decode(raw)
		if err != nil {
			return fmt.Errorf("sample %d: %w", i, err)
		}
		samples = append(samples, decoded)
	}

	triggered, payload, err := supply.Evaluate(samples)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "triggered: %t\n", triggered)
	if !triggered {
		return nil
	}

	decoded, err := supply.DecodeAlertPayload(payload)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "token: %s\n", decoded.Token.Hex())
	fmt.Fprintf(out, "old_supply: %s\n", decoded.OldSupply)
	fmt.Fprintf(out, "new_supply: %s\n", decoded.NewSupply)
	fmt.Fprintf(out, "payload: %s\n", hexutil.Encode(payload))
	return nil
}
