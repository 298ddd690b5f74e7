package supply

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Sample is one observation of a token's total supply together with the
// maximum allowed increase that was configured when it was taken.
type Sample struct {
	token     common.Address
	supply    *big.Int
	threshold *big.Int
}

// NewSample builds a sample. Nil integers are treated as zero; values outside
// uint256 are rejected.
func NewSample(token common.Address, observedSupply, threshold *big.Int) (Sample, error) {
	s := Sample{token: token, supply: cloneBigInt(observedSupply), threshold: cloneBigInt(threshold)}
	if !InRange(s.supply) || !InRange(s.threshold) {
		return Sample{}, ErrOutOfRange
	}
	return s, nil
}

// Token returns the monitored token address; zero means no target.
func (s Sample) Token() common.Address { return s.token }

// ObservedSupply returns a copy of the observed total supply.
func (s Sample) ObservedSupply() *big.Int { return cloneBigInt(s.supply) }

// Threshold returns a copy of the threshold captured with the sample.
func (s Sample) Threshold() *big.Int { return cloneBigInt(s.threshold) }

// Active reports whether the sample was taken under a configuration capable of triggering.
func (s Sample) Active() bool {
	return s.token != (common.Address{}) && s.threshold != nil && s.threshold.Sign() > 0
}

// Encode returns the 96-byte ABI encoding of (address token, uint256 supply, uint256 threshold).
func (s Sample) Encode() ([]byte, error) {
	return encodeTriple(s.token, cloneBigInt(s.supply), cloneBigInt(s.threshold))
}

// String renders the sample for logs.
func (s Sample) String() string {
	return fmt.Sprintf("sample{token=%s supply=%s threshold=%s}", s.token.Hex(), cloneBigInt(s.supply), cloneBigInt(s.threshold))
}

// DecodeSample parses the encoding produced by Sample.Encode.
func DecodeSample(data []byte) (Sample, error) {
	token, supply, threshold, err := decodeTriple(data)
	if err != nil {
		return Sample{}, fmt.Errorf("decode sample: %w", err)
	}
	return Sample{token: token, supply: supply, threshold: threshold}, nil
}
