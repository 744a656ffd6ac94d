// Package ephemeral generates the short lived signing key, randomness and
// nonce that bind one zkLogin attempt to a bounded range of ledger epochs.
package ephemeral

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"math/big"

	"github.com/pkg/errors"

	"github.com/yawdotio/totalbeginers-Suitters/zkhash"
)

const (
	// MaxEpochMargin is how many epochs past the current one a key stays valid.
	MaxEpochMargin = 2

	// NonceLength is the length of a base64url encoded 20 byte nonce.
	NonceLength = 27

	randomnessBytes = 16
	nonceBytes      = 20
)

var ErrEpochUnavailable = errors.New("ledger epoch unavailable")

// EpochSource reports the ledger's current epoch.
type EpochSource interface {
	CurrentEpoch(ctx context.Context) (uint64, error)
}

// Material is everything a pending login needs to survive the redirect.
type Material struct {
	KeyPair    *KeyPair
	Randomness string
	Nonce      string
	MaxEpoch   uint64
}

// Begin creates fresh key material valid until the current epoch plus MaxEpochMargin.
func Begin(ctx context.Context, epochs EpochSource) (*Material, error) {
	epoch, err := epochs.CurrentEpoch(ctx)
	if err != nil {
		return nil, errors.Wrap(ErrEpochUnavailable, err.Error())
	}
	maxEpoch := epoch + MaxEpochMargin

	kp, err := GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	randomness, err := GenerateRandomness()
	if err != nil {
		return nil, err
	}
	nonce, err := GenerateNonce(kp.PublicKey(), maxEpoch, randomness)
	if err != nil {
		return nil, err
	}

	return &Material{
		KeyPair:    kp,
		Randomness: randomness,
		Nonce:      nonce,
		MaxEpoch:   maxEpoch,
	}, nil
}

// GenerateRandomness returns 128 random bits as a decimal string.
func GenerateRandomness() (string, error) {
	buf := make([]byte, randomnessBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "read randomness")
	}
	return new(big.Int).SetBytes(buf).String(), nil
}

// GenerateNonce commits to the extended public key, maxEpoch and randomness.
func GenerateNonce(pub ed25519.PublicKey, maxEpoch uint64, randomness string) (string, error) {
	r, ok := new(big.Int).SetString(randomness, 10)
	if !ok || r.Sign() < 0 {
		return "", errors.Errorf("invalid randomness %q", randomness)
	}

	extended := make([]byte, 0, 1+len(pub))
	extended = append(extended, FlagEd25519)
	extended = append(extended, pub...)
	pk := new(big.Int).SetBytes(extended)

	shift := new(big.Int).Lsh(big.NewInt(1), 128)
	hi, lo := new(big.Int).QuoRem(pk, shift, new(big.Int))

	digest, err := zkhash.Hash([]*big.Int{hi, lo, new(big.Int).SetUint64(maxEpoch), r})
	if err != nil {
		return "", errors.Wrap(err, "hash nonce inputs")
	}

	nonce := base64.RawURLEncoding.EncodeToString(zkhash.ToPaddedBigEndianBytes(digest, nonceBytes))
	if len(nonce) != NonceLength {
		return "", errors.Errorf("nonce has length %d, want %d", len(nonce), NonceLength)
	}
	return nonce, nil
}
