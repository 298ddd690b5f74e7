package supply

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// AlertPayload is the (token, oldSupply, newSupply) triple produced on trigger.
type AlertPayload struct {
	Token     common.Address
	OldSupply *big.Int
	NewSupply *big.Int
}

// Delta returns NewSupply - OldSupply.
func (p AlertPayload) Delta() *big.Int {
	return new(big.Int).Sub(cloneBigInt(p.NewSupply), cloneBigInt(p.OldSupply))
}

// Encode returns the 96-byte ABI encoding of (address token, uint256 oldSupply, uint256 newSupply).
func (p AlertPayload) Encode() ([]byte, error) {
	return encodeTriple(p.Token, cloneBigInt(p.OldSupply), cloneBigInt(p.NewSupply))
}

// DecodeAlertPayload parses the encoding produced by AlertPayload.Encode.
func DecodeAlertPayload(data []byte) (AlertPayload, error) {
	token, oldSupply, newSupply, err := decodeTriple(data)
	if err != nil {
		return AlertPayload{}, fmt.Errorf("decode alert payload: %w", err)
	}
	return AlertPayload{Token: token, OldSupply: oldSupply, NewSupply: newSupply}, nil
}
