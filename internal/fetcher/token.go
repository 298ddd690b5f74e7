package fetcher

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"

	"supplywatcher/internal/metrics"
)

const (
	erc20ABIJSON = `[{"inputs":[],"name":"totalSupply","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},{"inputs":[],"name":"decimals","outputs":[{"internalType":"uint8","name":"","type":"uint8"}],"stateMutability":"view","type":"function"}]`
)

var (
	erc20ABI abi.ABI
)

func init() {
	parsed, err := abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		panic("failed to parse ERC-20 ABI: " + err.Error())
	}
	erc20ABI = parsed
}

// TokenOptions parameterise the on-chain reader.
type TokenOptions struct {
	RPCURL  string
	Timeout time.Duration
	// BlockNumber pins reads to a historical block when non-nil.
	BlockNumber *big.Int
}

// Token reads ERC-20 totalSupply and decimals via Ethereum RPC.
type Token struct {
	opts      TokenOptions
	logger    zerolog.Logger
	client    *ethclient.Client
	clientMux sync.Mutex

	decimalsCache  map[common.Address]uint8
	decimalsLocker sync.RWMutex
}

// NewToken builds a new token reader.
func NewToken(opts TokenOptions, logger zerolog.Logger) *Token {
	return &Token{
		opts:          opts,
		logger:        logger.With().Str("component", "token_fetcher").Logger(),
		decimalsCache: make(map[common.Address]uint8),
	}
}

// TotalSupply returns the current ERC-20 totalSupply() of token.
func (t *Token) TotalSupply(ctx context.Context, token common.Address) (*big.Int, error) {
	start := time.Now()
	values, err := t.call(ctx, token, "totalSupply")
	metrics.ReadDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	supply, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected totalSupply type %T", values[0])
	}

	t.logger.Debug().Str("token", token.Hex()).Str("total_supply", supply.String()).Msg("total supply read")
	return new(big.Int).Set(supply), nil
}

// Decimals returns the ERC-20 decimals() of token, cached for repeated lookups.
func (t *Token) Decimals(ctx context.Context, token common.Address) (uint8, error) {
	t.decimalsLocker.RLock()
	if decimals, ok := t.decimalsCache[token]; ok {
		t.decimalsLocker.RUnlock()
		return decimals, nil
	}
	t.decimalsLocker.RUnlock()

	values, err := t.call(ctx, token, "decimals")
	if err != nil {
		return 0, err
	}

	decimals, ok := values[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("unexpected decimals type %T", values[0])
	}

	t.decimalsLocker.Lock()
	t.decimalsCache[token] = decimals
	t.decimalsLocker.Unlock()

	return decimals, nil
}

// Close releases the underlying RPC connection.
func (t *Token) Close() {
	t.clientMux.Lock()
	defer t.clientMux.Unlock()
	if t.client != nil {
		t.client.Close()
		t.client = nil
	}
}

func (t *Token) call(ctx context.Context, token common.Address, method string) ([]interface{}, error) {
	if t.opts.RPCURL == "" {
		return nil, errors.New("ethereum rpc url not configured")
	}
	if token == (common.Address{}) {
		return nil, errors.New("token address not configured")
	}

	timeout := t.opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	var cancel context.CancelFunc
	ctx, cancel = context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := t.getClient(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := erc20ABI.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("pack %s call: %w", method, err)
	}

	res, err := client.CallContract(ctx, ethereum.CallMsg{To: &token, Data: payload}, t.opts.BlockNumber)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}

	outputs, err := erc20ABI.Unpack(method, res)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}

	if len(outputs) != 1 {
		return nil, fmt.Errorf("unexpected %s result length: %d", method, len(outputs))
	}

	return outputs, nil
}

func (t *Token) getClient(ctx context.Context) (*ethclient.Client, error) {
	t.clientMux.Lock()
	defer t.clientMux.Unlock()

	if t.client != nil {
		return t.client, nil
	}

	client, err := ethclient.DialContext(ctx, t.opts.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	t.client = client
	return client, nil
}

var _ TokenReader = (*Token)(nil)
