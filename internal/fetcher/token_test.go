package fetcher

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var bridgedToken = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

// newRPCServer answers eth_call for totalSupply() and decimals().
func newRPCServer(t *testing.T, supply *big.Int, decimals uint8, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode rpc request: %v", err)
			return
		}
		if req.Method != "eth_call" {
			t.Errorf("unexpected method %s", req.Method)
			return
		}
		calls.Add(1)

		var msg map[string]string
		_ = json.Unmarshal(req.Params[0], &msg)
		input := msg["input"]
		if input == "" {
			input = msg["data"]
		}

		var result []byte
		switch {
		case strings.HasPrefix(input, "0x18160ddd"):
			result = common.LeftPadBytes(supply.Bytes(), 32)
		case strings.HasPrefix(input, "0x313ce567"):
			result = common.LeftPadBytes([]byte{decimals}, 32)
		default:
			t.Errorf("unexpected call data %s", input)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  hexutil.Encode(result),
		})
	}))
}

func TestTokenMissingConfig(t *testing.T) {
	tok := NewToken(TokenOptions{}, noopLogger())
	_, err := tok.TotalSupply(context.Background(), bridgedToken)
	require.Error(t, err)

	tok = NewToken(TokenOptions{RPCURL: "http://localhost"}, noopLogger())
	_, err = tok.TotalSupply(context.Background(), common.Address{})
	require.Error(t, err)
}

func TestTokenTotalSupply(t *testing.T) {
	var calls atomic.Int32
	want, _ := new(big.Int).SetString("123456789000000000000000000", 10)
	srv := newRPCServer(t, want, 6, &calls)
	defer srv.Close()

	tok := NewToken(TokenOptions{RPCURL: srv.URL, Timeout: time.Second}, noopLogger())
	defer tok.Close()

	got, err := tok.TotalSupply(context.Background(), bridgedToken)
	require.NoError(t, err)
	assert.Equal(t, want.String(), got.String())
}

func TestTokenDecimalsCached(t *testing.T) {
	var calls atomic.Int32
	srv := newRPCServer(t, big.NewInt(1), 6, &calls)
	defer srv.Close()

	tok := NewToken(TokenOptions{RPCURL: srv.URL, Timeout: time.Second}, noopLogger())
	defer tok.Close()

	for i := 0; i < 3; i++ {
		decimals, err := tok.Decimals(context.Background(), bridgedToken)
		require.NoError(t, err)
		assert.Equal(t, uint8(6), decimals)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestTokenRPCError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"error":   map[string]any{"code": -32000, "message": "execution reverted"},
		})
	}))
	defer srv.Close()

	tok := NewToken(TokenOptions{RPCURL: srv.URL, Timeout: time.Second}, noopLogger())
	defer tok.Close()

	_, err := tok.TotalSupply(context.Background(), bridgedToken)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "call totalSupply")
}

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}
