package supply

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateScenarios(t *testing.T) {
	cases := []struct {
		name      string
		token     common.Address
		oldSupply int64
		newSupply int64
		threshold int64
		triggered bool
	}{
		{"A: increase above threshold", testToken, 1000, 1200, 100, true},
		{"B: increase within threshold", testToken, 1000, 1050, 100, false},
		{"C: decrease", testToken, 1200, 1000, 100, false},
		{"E: null token", common.Address{}, 0, 5000, 100, false},
		{"delta equals threshold", testToken, 1000, 1100, 100, false},
		{"delta one above threshold", testToken, 1000, 1101, 100, true},
		{"unchanged", testToken, 1000, 1000, 100, false},
		{"zero threshold", testToken, 0, 5000, 0, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			window := [][]byte{
				mustEncode(t, tc.token, tc.newSupply, tc.threshold),
				mustEncode(t, tc.token, tc.oldSupply, tc.threshold),
			}

			triggered, payload, err := Evaluate(window)
			require.NoError(t, err)
			assert.Equal(t, tc.triggered, triggered)

			if !tc.triggered {
				assert.Nil(t, payload)
				return
			}
			decoded, err := DecodeAlertPayload(payload)
			require.NoError(t, err)
			assert.Equal(t, tc.token, decoded.Token)
			assert.Equal(t, big.NewInt(tc.oldSupply).String(), decoded.OldSupply.String())
			assert.Equal(t, big.NewInt(tc.newSupply).String(), decoded.NewSupply.String())
		})
	}
}

func TestEvaluateScenarioAPayloadBytes(t *testing.T) {
	window := [][]byte{
		mustEncode(t, testToken, 1200, 100),
		mustEncode(t, testToken, 1000, 100),
	}

	_, payload, err := Evaluate(window)
	require.NoError(t, err)

	want, err := AlertPayload{Token: testToken, OldSupply: big.NewInt(1000), NewSupply: big.NewInt(1200)}.Encode()
	require.NoError(t, err)
	assert.Equal(t, want, payload)
}

func TestEvaluateShortWindows(t *testing.T) {
	for _, window := range [][][]byte{
		nil,
		{},
		{mustEncode(t, testToken, 999_999, 1)},
		{[]byte("garbage")},
	} {
		triggered, payload, err := Evaluate(window)
		require.NoError(t, err)
		assert.False(t, triggered)
		assert.Nil(t, payload)
	}
}

func TestEvaluateComparesOnlyEndpoints(t *testing.T) {
	// The spike in the middle of the window is never looked at.
	window := [][]byte{
		mustEncode(t, testToken, 1090, 100),
		[]byte("ignored"),
		mustEncode(t, testToken, 5000, 100),
		mustEncode(t, testToken, 1000, 100),
	}

	triggered, payload, err := Evaluate(window)
	require.NoError(t, err)
	assert.False(t, triggered)
	assert.Nil(t, payload)
}

func TestEvaluateUsesLatestThreshold(t *testing.T) {
	window := [][]byte{
		mustEncode(t, testToken, 1200, 500),
		mustEncode(t, testToken, 1000, 1),
	}
	triggered, _, err := Evaluate(window)
	require.NoError(t, err)
	assert.False(t, triggered, "latest threshold of 500 covers a 200 rise")

	window = [][]byte{
		mustEncode(t, testToken, 1200, 0),
		mustEncode(t, testToken, 1000, 1),
	}
	triggered, _, err = Evaluate(window)
	require.NoError(t, err)
	assert.False(t, triggered, "latest threshold of zero means inactive")
}

func TestEvaluateMaxWidthValues(t *testing.T) {
	latest, err := NewSample(testToken, MaxUint256(), big.NewInt(1))
	require.NoError(t, err)
	oldest, err := NewSample(testToken, big.NewInt(0), big.NewInt(1))
	require.NoError(t, err)

	l, err := latest.Encode()
	require.NoError(t, err)
	o, err := oldest.Encode()
	require.NoError(t, err)

	triggered, payload, err := Evaluate([][]byte{l, o})
	require.NoError(t, err)
	require.True(t, triggered)

	decoded, err := DecodeAlertPayload(payload)
	require.NoError(t, err)
	assert.Zero(t, decoded.NewSupply.Cmp(MaxUint256()))

	// A threshold of 2^256-1 can never be exceeded.
	latest, err = NewSample(testToken, MaxUint256(), MaxUint256())
	require.NoError(t, err)
	l, err = latest.Encode()
	require.NoError(t, err)
	triggered, _, err = Evaluate([][]byte{l, o})
	require.NoError(t, err)
	assert.False(t, triggered)
}

func TestEvaluateIsDeterministic(t *testing.T) {
	window := [][]byte{
		mustEncode(t, testToken, 1200, 100),
		mustEncode(t, testToken, 1000, 100),
	}
	snapshot := [][]byte{append([]byte(nil), window[0]...), append([]byte(nil), window[1]...)}

	_, first, err := Evaluate(window)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, again, err := Evaluate(window)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, snapshot, window, "input must not be mutated")
}

func TestEvaluateMalformedEndpoints(t *testing.T) {
	good := mustEncode(t, testToken, 1000, 100)

	_, _, err := Evaluate([][]byte{[]byte("bad"), good})
	require.ErrorIs(t, err, ErrMalformedInput)

	_, _, err = Evaluate([][]byte{good, good[:95]})
	require.ErrorIs(t, err, ErrMalformedInput)
}

func TestDetectProperties(t *testing.T) {
	for oldSupply := int64(0); oldSupply <= 300; oldSupply += 50 {
		for newSupply := int64(0); newSupply <= 300; newSupply += 25 {
			for _, threshold := range []int64{1, 50, 100} {
				latest := mustSample(t, testToken, newSupply, threshold)
				oldest := mustSample(t, testToken, oldSupply, threshold)

				payload, triggered := Detect(latest, oldest)
				want := newSupply > oldSupply && newSupply-oldSupply > threshold
				require.Equal(t, want, triggered, "old=%d new=%d threshold=%d", oldSupply, newSupply, threshold)
				if triggered {
					assert.Equal(t, testToken, payload.Token)
					assert.Equal(t, oldSupply, payload.OldSupply.Int64())
					assert.Equal(t, newSupply, payload.NewSupply.Int64())
				}
			}
		}
	}
}
