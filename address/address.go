// Package address turns a (salt, sub, aud) triple into the stable on-chain
// address of a zkLogin user.
package address

import (
	"encoding/hex"
	"math/big"

	"github.com/pkg/errors"

	"github.com/yawdotio/totalbeginers-Suitters/zkhash"
)

// Length is the address width in bytes.
const Length = 32

var ErrAddressDerivation = errors.New("address derivation failed")

// Result is the derived seed and the address rendered from it.
type Result struct {
	Seed    *big.Int
	Address string
}

// SeedString is the decimal form of the seed used in signatures.
func (r Result) SeedString() string {
	return r.Seed.String()
}

// Derive computes the address seed over the sub claim and renders it.
// Any input problem, including a salt that is not a decimal integer,
// returns ErrAddressDerivation.
func Derive(salt, sub, aud string) (*Result, error) {
	s, ok := new(big.Int).SetString(salt, 10)
	if !ok || s.Sign() < 0 {
		return nil, errors.Wrapf(ErrAddressDerivation, "salt %q is not a decimal integer", salt)
	}
	seed, err := zkhash.GenAddressSeed(s, "sub", sub, aud)
	if err != nil {
		return nil, errors.Wrap(ErrAddressDerivation, err.Error())
	}
	addr, err := SeedToAddress(seed)
	if err != nil {
		return nil, err
	}
	return &Result{Seed: seed, Address: addr}, nil
}

// SeedToAddress renders seed as 0x followed by 64 lowercase hex digits.
// Negative seeds and seeds wider than the address are rejected.
func SeedToAddress(seed *big.Int) (string, error) {
	if seed == nil || seed.Sign() < 0 || seed.BitLen() > 8*Length {
		return "", errors.Wrapf(ErrAddressDerivation, "seed does not fit in %d bytes", Length)
	}
	return "0x" + hex.EncodeToString(zkhash.ToPaddedBigEndianBytes(seed, Length)), nil
}
