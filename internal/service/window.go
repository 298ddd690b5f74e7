package service

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"supplywatcher/internal/supply"
)

// Window accumulates encoded samples newest first, keeping at most size of them.
// A sample for a different token than the newest held one restarts the window
// so supplies of unrelated tokens are never compared.
type Window struct {
	size  int
	token common.Address
	items [][]byte
}

// NewWindow creates a window holding up to size samples.
func NewWindow(size int) *Window {
	if size < 2 {
		size = 2
	}
	return &Window{size: size, items: make([][]byte, 0, size)}
}

// Push encodes s and places it at the front. It reports whether the window
// was restarted because the token changed.
func (w *Window) Push(s supply.Sample) (bool, error) {
	encoded, err := s.Encode()
	if err != nil {
		return false, fmt.Errorf("encode sample: %w", err)
	}

	reset := len(w.items) > 0 && s.Token() != w.token
	if reset {
		w.items = w.items[:0]
	}
	w.token = s.Token()

	w.items = append(w.items, nil)
	copy(w.items[1:], w.items[:len(w.items)-1])
	w.items[0] = encoded
	if len(w.items) > w.size {
		w.items = w.items[:w.size]
	}
	return reset, nil
}

// Full reports whether the window holds size samples.
func (w *Window) Full() bool {
	return len(w.items) >= w.size
}

// Len returns the number of samples held.
func (w *Window) Len() int {
	return len(w.items)
}

// Size returns the configured capacity.
func (w *Window) Size() int {
	return w.size
}

// Snapshot returns a copy of the window, newest first.
func (w *Window) Snapshot() [][]byte {
	out := make([][]byte, len(w.items))
	for i, item := range w.items {
		out[i] = append([]byte(nil), item...)
	}
	return out
}
