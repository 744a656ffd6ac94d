// Package zkhash implements the Poseidon hashing that zkLogin uses to bind
// identity claims, salts and ephemeral keys into BN254 field elements.
package zkhash

import (
	"math/big"

	"github.com/iden3/go-iden3-crypto/poseidon"
	"github.com/pkg/errors"
)

const (
	MaxKeyClaimNameLength  = 32
	MaxKeyClaimValueLength = 115
	MaxAudValueLength      = 145

	packWidth      = 248
	maxDirectInput = 16
	maxInputs      = 32
)

var (
	ErrInputCount = errors.New("unsupported number of poseidon inputs")
	ErrStrTooLong = errors.New("string too long for field packing")
	ErrNonASCII   = errors.New("string contains non-ascii characters")
)

// Hash computes the circom compatible Poseidon hash of up to 32 inputs.
// Inputs beyond 16 are split in two halves whose digests are hashed again.
func Hash(inputs []*big.Int) (*big.Int, error) {
	switch n := len(inputs); {
	case n == 0 || n > maxInputs:
		return nil, errors.Wrapf(ErrInputCount, "%d inputs", n)
	case n <= maxDirectInput:
		return poseidon.Hash(inputs)
	default:
		left, err := poseidon.Hash(inputs[:maxDirectInput])
		if err != nil {
			return nil, err
		}
		right, err := Hash(inputs[maxDirectInput:])
		if err != nil {
			return nil, err
		}
		return poseidon.Hash([]*big.Int{left, right})
	}
}

// HashASCIIStrToField packs str, zero padded to maxSize bytes, into 31 byte
// big-endian chunks aligned to the end of the buffer and hashes the chunks.
func HashASCIIStrToField(str string, maxSize int) (*big.Int, error) {
	if len(str) > maxSize {
		return nil, errors.Wrapf(ErrStrTooLong, "%d > %d", len(str), maxSize)
	}
	for i := 0; i < len(str); i++ {
		if str[i] >= 0x80 || str[i] == 0 {
			return nil, ErrNonASCII
		}
	}

	padded := make([]byte, maxSize)
	copy(padded, str)

	const chunkSize = packWidth / 8
	packed := make([]*big.Int, 0, (maxSize+chunkSize-1)/chunkSize)
	head := maxSize % chunkSize
	if head > 0 {
		packed = append(packed, new(big.Int).SetBytes(padded[:head]))
	}
	for i := head; i < maxSize; i += chunkSize {
		packed = append(packed, new(big.Int).SetBytes(padded[i:i+chunkSize]))
	}
	return Hash(packed)
}

// GenAddressSeed binds a salt to a key claim and audience.
func GenAddressSeed(salt *big.Int, name, value, aud string) (*big.Int, error) {
	nameF, err := HashASCIIStrToField(name, MaxKeyClaimNameLength)
	if err != nil {
		return nil, errors.Wrap(err, "claim name")
	}
	valueF, err := HashASCIIStrToField(value, MaxKeyClaimValueLength)
	if err != nil {
		return nil, errors.Wrap(err, "claim value")
	}
	audF, err := HashASCIIStrToField(aud, MaxAudValueLength)
	if err != nil {
		return nil, errors.Wrap(err, "aud")
	}
	saltF, err := Hash([]*big.Int{salt})
	if err != nil {
		return nil, errors.Wrap(err, "salt")
	}
	return Hash([]*big.Int{nameF, valueF, audF, saltF})
}

// ToPaddedBigEndianBytes returns the low width bytes of n, left padded with zeros.
func ToPaddedBigEndianBytes(n *big.Int, width int) []byte {
	b := n.Bytes()
	if len(b) > width {
		b = b[len(b)-width:]
	}
	out := make([]byte, width)
	copy(out[width-len(b):], b)
	return out
}
