package service

import (
	"fmt"
	"sort"
	"time"

	"supplywatcher/internal/storage"
	"supplywatcher/internal/supply"
)

// ReplayHit is a window that would have raised an alert.
type ReplayHit struct {
	Bucket  time.Time
	Payload supply.AlertPayload
	Encoded []byte
}

// ReplayResult summarises a replay over stored samples.
type ReplayResult struct {
	Samples     int
	Skipped     int
	Evaluations int
	Hits        []ReplayHit
}

// Replay feeds stored samples through a window of windowSize in bucket order
// and reports every evaluation that triggers. Errored rows are skipped.
func Replay(rows []storage.SupplySample, windowSize int) (ReplayResult, error) {
	ordered := make([]storage.SupplySample, len(rows))
	copy(ordered, rows)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Bucket.Before(ordered[j].Bucket)
	})

	var result ReplayResult
	window := NewWindow(windowSize)
	for _, row := range ordered {
		if row.Status != storage.StatusComplete || len(row.Encoded) == 0 {
			result.Skipped++
			continue
		}
		sample, err := supply.DecodeSample(row.Encoded)
		if err != nil {
			return result, fmt.Errorf("sample at %s: %w", row.Bucket.Format(time.RFC3339), err)
		}
		if _, err := window.Push(sample); err != nil {
			return result, err
		}
		result.Samples++

		if !window.Full() {
			continue
		}
		result.Evaluations++
		triggered, payload, err := supply.Evaluate(window.Snapshot())
		if err != nil {
			return result, fmt.Errorf("evaluate at %s: %w", row.Bucket.Format(time.RFC3339), err)
		}
		if !triggered {
			continue
		}
		decoded, err := supply.DecodeAlertPayload(payload)
		if err != nil {
			return result, err
		}
		result.Hits = append(result.Hits, ReplayHit{Bucket: row.Bucket, Payload: decoded, Encoded: payload})
	}
	return result, nil
}
