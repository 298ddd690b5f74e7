package settings

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"supplywatcher/internal/supply"
)

var (
	// ErrUnauthorized is returned when a caller other than the owner attempts a mutation.
	ErrUnauthorized = errors.New("settings: caller is not the owner")
	// ErrInvalidValue is returned for thresholds that are not valid uint256 values.
	ErrInvalidValue = errors.New("settings: invalid value")
)

// State summarises how far the store has been configured.
type State int

const (
	Unconfigured State = iota
	PartiallyConfigured
	Active
)

func (s State) String() string {
	switch s {
	case Unconfigured:
		return "unconfigured"
	case PartiallyConfigured:
		return "partially_configured"
	case Active:
		return "active"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Store holds the monitored token and maximum allowed increase behind an owner check.
type Store struct {
	owner common.Address

	mu          sync.RWMutex
	target      common.Address
	maxIncrease *big.Int
}

// New builds a store owned by owner and seeded with initial. Seeding is the
// operator bootstrap and bypasses the owner check.
func New(owner common.Address, initial supply.Config) (*Store, error) {
	threshold := new(big.Int)
	if initial.MaxIncrease != nil {
		if !supply.InRange(initial.MaxIncrease) {
			return nil, fmt.Errorf("initial threshold: %w", ErrInvalidValue)
		}
		threshold.Set(initial.MaxIncrease)
	}
	return &Store{owner: owner, target: initial.Target, maxIncrease: threshold}, nil
}

// Owner returns the address allowed to mutate the store.
func (s *Store) Owner() common.Address {
	return s.owner
}

// SetTarget changes the monitored token. The zero address disables monitoring.
func (s *Store) SetTarget(caller, target common.Address) error {
	if caller != s.owner {
		return ErrUnauthorized
	}

	s.mu.Lock()
	s.target = target
	s.mu.Unlock()
	return nil
}

// SetThreshold changes the maximum allowed increase. Any uint256 value is accepted.
func (s *Store) SetThreshold(caller common.Address, value *big.Int) error {
	if caller != s.owner {
		return ErrUnauthorized
	}
	if !supply.InRange(value) {
		return ErrInvalidValue
	}

	s.mu.Lock()
	s.maxIncrease = new(big.Int).Set(value)
	s.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the current configuration.
func (s *Store) Snapshot() supply.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return supply.Config{Target: s.target, MaxIncrease: new(big.Int).Set(s.maxIncrease)}
}

// State derives the configuration state from the current snapshot.
func (s *Store) State() State {
	snap := s.Snapshot()
	hasTarget := snap.Target != (common.Address{})
	hasThreshold := snap.MaxIncrease.Sign() > 0

	switch {
	case hasTarget && hasThreshold:
		return Active
	case hasTarget || hasThreshold:
		return PartiallyConfigured
	default:
		return Unconfigured
	}
}

var _ supply.ConfigSource = (*Store)(nil)
