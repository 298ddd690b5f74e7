package supply

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testToken = common.HexToAddress("0x5f4eC3Df9cbd43714FE2740f5E3616155c5b8419")

func TestSampleRoundTrip(t *testing.T) {
	cases := []struct {
		name      string
		token     common.Address
		supply    *big.Int
		threshold *big.Int
	}{
		{"zero", common.Address{}, big.NewInt(0), big.NewInt(0)},
		{"typical", testToken, big.NewInt(1_000_000), big.NewInt(100)},
		{"max width", common.HexToAddress("0xffffffffffffffffffffffffffffffffffffffff"), MaxUint256(), MaxUint256()},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := NewSample(tc.token, tc.supply, tc.threshold)
			require.NoError(t, err)

			encoded, err := s.Encode()
			require.NoError(t, err)
			require.Len(t, encoded, EncodedSize)

			decoded, err := DecodeSample(encoded)
			require.NoError(t, err)
			assert.Equal(t, tc.token, decoded.Token())
			assert.Zero(t, tc.supply.Cmp(decoded.ObservedSupply()))
			assert.Zero(t, tc.threshold.Cmp(decoded.Threshold()))
		})
	}
}

func TestSampleEncodingLayout(t *testing.T) {
	s, err := NewSample(testToken, big.NewInt(1000), big.NewInt(100))
	require.NoError(t, err)

	encoded, err := s.Encode()
	require.NoError(t, err)

	want := make([]byte, 0, EncodedSize)
	want = append(want, common.LeftPadBytes(testToken.Bytes(), 32)...)
	want = append(want, common.LeftPadBytes(big.NewInt(1000).Bytes(), 32)...)
	want = append(want, common.LeftPadBytes(big.NewInt(100).Bytes(), 32)...)
	assert.True(t, bytes.Equal(want, encoded), "unexpected layout %x", encoded)
}

func TestSampleIsImmutable(t *testing.T) {
	supply := big.NewInt(500)
	s, err := NewSample(testToken, supply, big.NewInt(10))
	require.NoError(t, err)

	supply.SetInt64(1)
	s.ObservedSupply().SetInt64(2)
	s.Threshold().SetInt64(3)

	assert.Equal(t, "500", s.ObservedSupply().String())
	assert.Equal(t, "10", s.Threshold().String())
}

func TestNewSampleRejectsOutOfRange(t *testing.T) {
	tooWide := new(big.Int).Add(MaxUint256(), big.NewInt(1))

	_, err := NewSample(testToken, tooWide, big.NewInt(1))
	require.ErrorIs(t, err, ErrOutOfRange)

	_, err = NewSample(testToken, big.NewInt(1), big.NewInt(-1))
	require.ErrorIs(t, err, ErrOutOfRange)
}

func TestDecodeSampleMalformed(t *testing.T) {
	valid, err := mustSample(t, testToken, 1, 1).Encode()
	require.NoError(t, err)

	dirty := append([]byte(nil), valid...)
	dirty[0] = 0x01

	for name, data := range map[string][]byte{
		"empty":         nil,
		"short":         valid[:64],
		"long":          append(append([]byte(nil), valid...), 0x00),
		"dirty padding": dirty,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeSample(data)
			require.ErrorIs(t, err, ErrMalformedInput)
		})
	}
}

func TestAlertPayloadRoundTrip(t *testing.T) {
	for _, p := range []AlertPayload{
		{Token: testToken, OldSupply: big.NewInt(0), NewSupply: big.NewInt(0)},
		{Token: testToken, OldSupply: big.NewInt(1000), NewSupply: big.NewInt(1200)},
		{Token: testToken, OldSupply: MaxUint256(), NewSupply: MaxUint256()},
	} {
		encoded, err := p.Encode()
		require.NoError(t, err)

		decoded, err := DecodeAlertPayload(encoded)
		require.NoError(t, err)
		assert.Equal(t, p.Token, decoded.Token)
		assert.Zero(t, p.OldSupply.Cmp(decoded.OldSupply))
		assert.Zero(t, p.NewSupply.Cmp(decoded.NewSupply))
	}
}

func TestAlertPayloadDelta(t *testing.T) {
	p := AlertPayload{Token: testToken, OldSupply: big.NewInt(1000), NewSupply: big.NewInt(1200)}
	assert.Equal(t, "200", p.Delta().String())
}

func mustSample(t *testing.T, token common.Address, supply, threshold int64) Sample {
	t.Helper()
	s, err := NewSample(token, big.NewInt(supply), big.NewInt(threshold))
	require.NoError(t, err)
	return s
}

func mustEncode(t *testing.T, token common.Address, supply, threshold int64) []byte {
	t.Helper()
	out, err := mustSample(t, token, supply, threshold).Encode()
	require.NoError(t, err)
	return out
}
