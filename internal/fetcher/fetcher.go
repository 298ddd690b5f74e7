package fetcher

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"supplywatcher/internal/supply"
)

// TokenMetadataReader retrieves ERC-20 display metadata.
type TokenMetadataReader interface {
	Decimals(ctx context.Context, token common.Address) (uint8, error)
}

// TokenReader is everything the service needs from the chain.
type TokenReader interface {
	supply.Reader
	TokenMetadataReader
}
