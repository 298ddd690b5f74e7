package service

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supplywatcher/internal/storage"
	"supplywatcher/internal/supply"
)

func sampleOf(t *testing.T, supplyValue, threshold int64) supply.Sample {
	t.Helper()
	s, err := supply.NewSample(tokenA, big.NewInt(supplyValue), big.NewInt(threshold))
	require.NoError(t, err)
	return s
}

func TestWindowKeepsNewestFirstAndTrims(t *testing.T) {
	w := NewWindow(3)
	for _, v := range []int64{1, 2, 3, 4} {
		_, err := w.Push(sampleOf(t, v, 10))
		require.NoError(t, err)
	}

	require.True(t, w.Full())
	items := w.Snapshot()
	require.Len(t, items, 3)

	var got []string
	for _, item := range items {
		s, err := supply.DecodeSample(item)
		require.NoError(t, err)
		got = append(got, s.ObservedSupply().String())
	}
	assert.Equal(t, []string{"4", "3", "2"}, got)
}

func TestWindowSnapshotIsCopy(t *testing.T) {
	w := NewWindow(2)
	_, err := w.Push(sampleOf(t, 1, 10))
	require.NoError(t, err)

	snap := w.Snapshot()
	snap[0][0] = 0xff

	again := w.Snapshot()
	assert.Equal(t, byte(0), again[0][0])
}

func TestWindowMinimumSize(t *testing.T) {
	assert.Equal(t, 2, NewWindow(0).Size())
}

func TestReplayReportsTriggeringWindows(t *testing.T) {
	var rows []storage.SupplySample
	for i, v := range []int64{1000, 1000, 1200, 1200, 1200} {
		s := sampleOf(t, v, 100)
		encoded, err := s.Encode()
		require.NoError(t, err)
		rows = append(rows, storage.SupplySample{
			Bucket:  baseBucket.Add(time.Duration(i) * time.Minute),
			Status:  storage.StatusComplete,
			Encoded: encoded,
		})
	}
	msg := "rpc down"
	rows = append(rows, storage.SupplySample{Bucket: baseBucket.Add(90 * time.Second), Status: storage.StatusErrored, Error: &msg})

	// Reverse to prove ordering is by bucket.
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}

	result, err := Replay(rows, 3)
	require.NoError(t, err)

	assert.Equal(t, 5, result.Samples)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 3, result.Evaluations)
	require.Len(t, result.Hits, 2)
	assert.Equal(t, baseBucket.Add(2*time.Minute), result.Hits[0].Bucket)
	assert.Equal(t, "1000", result.Hits[0].Payload.OldSupply.String())
	assert.Equal(t, "1200", result.Hits[0].Payload.NewSupply.String())
}

func TestReplayRejectsCorruptRow(t *testing.T) {
	rows := []storage.SupplySample{{Bucket: baseBucket, Status: storage.StatusComplete, Encoded: []byte{0x01}}}
	_, err := Replay(rows, 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, supply.ErrMalformedInput)
}
