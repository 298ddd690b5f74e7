package settings

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supplywatcher/internal/supply"
)

var (
	owner    = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	stranger = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	token    = common.HexToAddress("0x00000000000000000000000000000000000000cc")
)

type fixedReader struct{ supply *big.Int }

func (f fixedReader) TotalSupply(ctx context.Context, _ common.Address) (*big.Int, error) {
	return f.supply, nil
}

func TestStoreStateMachine(t *testing.T) {
	store, err := New(owner, supply.Config{})
	require.NoError(t, err)
	assert.Equal(t, Unconfigured, store.State())

	require.NoError(t, store.SetTarget(owner, token))
	assert.Equal(t, PartiallyConfigured, store.State())

	require.NoError(t, store.SetThreshold(owner, big.NewInt(100)))
	assert.Equal(t, Active, store.State())

	require.NoError(t, store.SetTarget(owner, common.Address{}))
	assert.Equal(t, PartiallyConfigured, store.State())
	assert.Equal(t, "partially_configured", store.State().String())
}

func TestStoreRejectsNonOwner(t *testing.T) {
	store, err := New(owner, supply.Config{Target: token, MaxIncrease: big.NewInt(100)})
	require.NoError(t, err)

	require.ErrorIs(t, store.SetTarget(stranger, common.Address{}), ErrUnauthorized)
	require.ErrorIs(t, store.SetThreshold(stranger, big.NewInt(1)), ErrUnauthorized)

	snap := store.Snapshot()
	assert.Equal(t, token, snap.Target)
	assert.Equal(t, "100", snap.MaxIncrease.String())

	sample, err := supply.NewSampler(store, fixedReader{supply: big.NewInt(5)}).Sample(context.Background())
	require.NoError(t, err)
	assert.Equal(t, token, sample.Token())
	assert.Equal(t, "100", sample.Threshold().String())
}

func TestStoreThresholdBounds(t *testing.T) {
	store, err := New(owner, supply.Config{})
	require.NoError(t, err)

	require.NoError(t, store.SetThreshold(owner, supply.MaxUint256()))
	assert.Zero(t, store.Snapshot().MaxIncrease.Cmp(supply.MaxUint256()))

	require.ErrorIs(t, store.SetThreshold(owner, big.NewInt(-1)), ErrInvalidValue)
	require.ErrorIs(t, store.SetThreshold(owner, nil), ErrInvalidValue)
	require.ErrorIs(t, store.SetThreshold(owner, new(big.Int).Lsh(big.NewInt(1), 256)), ErrInvalidValue)

	_, err = New(owner, supply.Config{MaxIncrease: big.NewInt(-5)})
	require.ErrorIs(t, err, ErrInvalidValue)
}

func TestSnapshotIsACopy(t *testing.T) {
	seed := big.NewInt(10)
	store, err := New(owner, supply.Config{Target: token, MaxIncrease: seed})
	require.NoError(t, err)

	seed.SetInt64(99)
	store.Snapshot().MaxIncrease.SetInt64(77)

	assert.Equal(t, "10", store.Snapshot().MaxIncrease.String())
}
