package supply

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ErrReadFailure wraps any failure to read the supply of a configured token.
var ErrReadFailure = errors.New("supply: read failure")

// Config is the monitoring configuration in effect at a point in time.
type Config struct {
	Target      common.Address
	MaxIncrease *big.Int
}

// Reader reads the current total supply of a token.
type Reader interface {
	TotalSupply(ctx context.Context, token common.Address) (*big.Int, error)
}

// ConfigSource yields the latest configuration snapshot.
type ConfigSource interface {
	Snapshot() Config
}

// Capture takes one sample under cfg. An unset target yields an inert sample
// without consulting the reader; a configured target whose read fails yields
// an error wrapping ErrReadFailure.
func Capture(ctx context.Context, cfg Config, reader Reader) (Sample, error) {
	threshold := cloneBigInt(cfg.MaxIncrease)
	if !InRange(threshold) {
		return Sample{}, fmt.Errorf("capture threshold: %w", ErrOutOfRange)
	}

	if cfg.Target == (common.Address{}) {
		return Sample{token: common.Address{}, supply: new(big.Int), threshold: threshold}, nil
	}

	if reader == nil {
		return Sample{}, fmt.Errorf("%w: no reader for %s", ErrReadFailure, cfg.Target.Hex())
	}

	observed, err := reader.TotalSupply(ctx, cfg.Target)
	if err != nil {
		return Sample{}, fmt.Errorf("%w: %s: %v", ErrReadFailure, cfg.Target.Hex(), err)
	}
	if observed == nil {
		return Sample{}, fmt.Errorf("%w: %s: empty supply", ErrReadFailure, cfg.Target.Hex())
	}
	if !InRange(observed) {
		return Sample{}, fmt.Errorf("%w: %s: supply %s outside uint256", ErrReadFailure, cfg.Target.Hex(), observed)
	}

	return Sample{token: cfg.Target, supply: new(big.Int).Set(observed), threshold: threshold}, nil
}

// Sampler binds a configuration source to a reader.
type Sampler struct {
	source ConfigSource
	reader Reader
}

// NewSampler constructs a Sampler.
func NewSampler(source ConfigSource, reader Reader) *Sampler {
	return &Sampler{source: source, reader: reader}
}

// Sample reads the live configuration and captures a sample under it.
func (s *Sampler) Sample(ctx context.Context) (Sample, error) {
	if s.source == nil {
		return Sample{}, errors.New("supply: sampler has no configuration source")
	}
	return Capture(ctx, s.source.Snapshot(), s.reader)
}
