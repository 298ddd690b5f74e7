package api

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignatureHeader carries a personal_sign signature over the raw request body.
const SignatureHeader = "X-Signature"

var (
	errMissingSignature = errors.New("missing signature")
	errBadSignature     = errors.New("invalid signature")
	errExpired          = errors.New("request expired")
)

// RecoverSigner returns the address that produced an EIP-191 personal_sign
// signature over body. Both 0/1 and 27/28 recovery ids are accepted.
func RecoverSigner(body []byte, signature string) (common.Address, error) {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return common.Address{}, errMissingSignature
	}
	sig, err := hexutil.Decode(signature)
	if err != nil || len(sig) != crypto.SignatureLength {
		return common.Address{}, errBadSignature
	}
	sig = append([]byte(nil), sig...)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash(body), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", errBadSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

func checkExpiry(expires int64, now time.Time) error {
	if expires <= 0 || now.Unix() > expires {
		return errExpired
	}
	return nil
}
