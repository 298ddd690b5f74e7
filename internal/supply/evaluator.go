package supply

import (
	"fmt"
	"math/big"
)

// Evaluate inspects a newest-first window of encoded samples and reports
// whether the supply grew by more than the threshold captured in the newest
// sample. Only the first and last elements are decoded; everything between
// them is ignored. On trigger the encoded AlertPayload is returned, otherwise
// the payload is nil.
func Evaluate(samples [][]byte) (bool, []byte, error) {
	if len(samples) < 2 {
		return false, nil, nil
	}

	latest, err := DecodeSample(samples[0])
	if err != nil {
		return false, nil, fmt.Errorf("latest: %w", err)
	}
	oldest, err := DecodeSample(samples[len(samples)-1])
	if err != nil {
		return false, nil, fmt.Errorf("oldest: %w", err)
	}

	payload, triggered := Detect(latest, oldest)
	if !triggered {
		return false, nil, nil
	}

	encoded, err := payload.Encode()
	if err != nil {
		return false, nil, fmt.Errorf("encode payload: %w", err)
	}
	return true, encoded, nil
}

// Detect applies the trigger rule to two decoded samples.
func Detect(latest, oldest Sample) (AlertPayload, bool) {
	if !latest.Active() {
		return AlertPayload{}, false
	}

	newSupply := cloneBigInt(latest.supply)
	oldSupply := cloneBigInt(oldest.supply)
	if newSupply.Cmp(oldSupply) <= 0 {
		return AlertPayload{}, false
	}

	delta := new(big.Int).Sub(newSupply, oldSupply)
	if delta.Cmp(latest.threshold) <= 0 {
		return AlertPayload{}, false
	}

	return AlertPayload{Token: latest.token, OldSupply: oldSupply, NewSupply: newSupply}, true
}
