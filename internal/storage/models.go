package storage

import (
	"math/big"
	"time"
)

// Sample statuses.
const (
	StatusComplete = "complete"
	StatusErrored  = "errored"
)

// SupplySample is a persisted observation. Encoded holds the 96-byte sample
// encoding and is empty for errored rows.
type SupplySample struct {
	ID             int64
	Bucket         time.Time
	Token          string
	ObservedSupply *big.Int
	Threshold      *big.Int
	Encoded        []byte
	Status         string
	Error          *string
	CreatedAt      time.Time
}

// AlertRecord captures an emitted alert for auditing.
type AlertRecord struct {
	ID        int64
	SampleTS  time.Time
	Token     string
	OldSupply *big.Int
	NewSupply *big.Int
	Threshold *big.Int
	Payload   []byte
	Channels  []string
	CreatedAt time.Time
}
