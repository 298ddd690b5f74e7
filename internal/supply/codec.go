package supply

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// EncodedSize is the length of an encoded sample or alert payload: three ABI words.
const EncodedSize = 3 * 32

var (
	// ErrMalformedInput reports bytes that do not decode to a sample or payload.
	ErrMalformedInput = errors.New("supply: malformed input")
	// ErrOutOfRange reports an integer that does not fit in uint256.
	ErrOutOfRange = errors.New("supply: value out of uint256 range")
)

var (
	maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

	// address, uint256, uint256 as produced by abi.encode in Solidity.
	tripleArgs abi.Arguments
)

func init() {
	addressTy, err := abi.NewType("address", "", nil)
	if err != nil {
		panic("failed to build address ABI type: " + err.Error())
	}
	uintTy, err := abi.NewType("uint256", "", nil)
	if err != nil {
		panic("failed to build uint256 ABI type: " + err.Error())
	}
	tripleArgs = abi.Arguments{{Type: addressTy}, {Type: uintTy}, {Type: uintTy}}
}

// MaxUint256 returns 2^256-1, the largest supply or threshold a sample can carry.
func MaxUint256() *big.Int {
	return new(big.Int).Set(maxUint256)
}

// InRange reports whether v is a valid uint256.
func InRange(v *big.Int) bool {
	return v != nil && v.Sign() >= 0 && v.BitLen() <= 256
}

func encodeTriple(addr common.Address, a, b *big.Int) ([]byte, error) {
	if !InRange(a) || !InRange(b) {
		return nil, ErrOutOfRange
	}
	out, err := tripleArgs.Pack(addr, a, b)
	if err != nil {
		return nil, fmt.Errorf("pack triple: %w", err)
	}
	return out, nil
}

func decodeTriple(data []byte) (common.Address, *big.Int, *big.Int, error) {
	if len(data) != EncodedSize {
		return common.Address{}, nil, nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrMalformedInput, EncodedSize, len(data))
	}
	// abi decoding ignores the 12 padding bytes of an address word.
	for _, b := range data[:common.HashLength-common.AddressLength] {
		if b != 0 {
			return common.Address{}, nil, nil, fmt.Errorf("%w: dirty address padding", ErrMalformedInput)
		}
	}

	values, err := tripleArgs.Unpack(data)
	if err != nil {
		return common.Address{}, nil, nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	if len(values) != 3 {
		return common.Address{}, nil, nil, fmt.Errorf("%w: unexpected field count %d", ErrMalformedInput, len(values))
	}

	addr, ok := values[0].(common.Address)
	if !ok {
		return common.Address{}, nil, nil, fmt.Errorf("%w: unexpected address type %T", ErrMalformedInput, values[0])
	}
	a, ok := values[1].(*big.Int)
	if !ok {
		return common.Address{}, nil, nil, fmt.Errorf("%w: unexpected integer type %T", ErrMalformedInput, values[1])
	}
	b, ok := values[2].(*big.Int)
	if !ok {
		return common.Address{}, nil, nil, fmt.Errorf("%w: unexpected integer type %T", ErrMalformedInput, values[2])
	}

	return addr, new(big.Int).Set(a), new(big.Int).Set(b), nil
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
