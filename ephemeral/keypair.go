package ephemeral

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
)

const (
	// FlagEd25519 is the Sui signature scheme flag for Ed25519 keys.
	FlagEd25519 byte = 0x00

	// PrivateKeyHRP is the human readable part of exported Sui secret keys.
	PrivateKeyHRP = "suiprivkey"
)

var ErrInvalidSecretKey = errors.New("invalid ephemeral secret key")

// intent prefix for TransactionData: scope 0, version 0, app id Sui.
var transactionIntent = []byte{0, 0, 0}

// KeyPair is an Ed25519 signing key that lives only for one login window.
type KeyPair struct {
	private ed25519.PrivateKey
}

func GenerateKeyPair() (*KeyPair, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, errors.Wrap(err, "generate ed25519 key")
	}
	return &KeyPair{private: priv}, nil
}

func KeyPairFromSeed(seed []byte) (*KeyPair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, errors.Wrapf(ErrInvalidSecretKey, "seed must be %d bytes", ed25519.SeedSize)
	}
	return &KeyPair{private: ed25519.NewKeyFromSeed(seed)}, nil
}

func (k *KeyPair) PublicKey() ed25519.PublicKey {
	return k.private.Public().(ed25519.PublicKey)
}

// ExtendedPublicKey is the scheme flag followed by the raw public key, the
// form the nonce commits to and the proving service expects.
func (k *KeyPair) ExtendedPublicKey() []byte {
	pub := k.PublicKey()
	out := make([]byte, 0, 1+len(pub))
	out = append(out, FlagEd25519)
	return append(out, pub...)
}

// Export encodes the secret seed as a bech32 "suiprivkey1..." string.
func (k *KeyPair) Export() (string, error) {
	payload := make([]byte, 0, 1+ed25519.SeedSize)
	payload = append(payload, FlagEd25519)
	payload = append(payload, k.private.Seed()...)

	conv, err := bech32.ConvertBits(payload, 8, 5, true)
	if err != nil {
		return "", errors.Wrap(err, "convert secret key bits")
	}
	return bech32.Encode(PrivateKeyHRP, conv)
}

// ImportKeyPair rebuilds a usable key from the output of Export.
func ImportKeyPair(encoded string) (*KeyPair, error) {
	hrp, data, err := bech32.Decode(encoded)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidSecretKey, err.Error())
	}
	if hrp != PrivateKeyHRP {
		return nil, errors.Wrapf(ErrInvalidSecretKey, "unexpected prefix %q", hrp)
	}
	payload, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidSecretKey, err.Error())
	}
	if len(payload) != 1+ed25519.SeedSize || payload[0] != FlagEd25519 {
		return nil, errors.Wrap(ErrInvalidSecretKey, "not an ed25519 key")
	}
	return KeyPairFromSeed(payload[1:])
}

// SignTransaction signs Sui transaction bytes with the TransactionData intent
// and returns the base64 serialized signature (flag || sig || pubkey).
func (k *KeyPair) SignTransaction(txBytes []byte) string {
	msg := make([]byte, 0, len(transactionIntent)+len(txBytes))
	msg = append(msg, transactionIntent...)
	msg = append(msg, txBytes...)
	digest := blake2b.Sum256(msg)

	sig := ed25519.Sign(k.private, digest[:])
	pub := k.PublicKey()

	serialized := make([]byte, 0, 1+len(sig)+len(pub))
	serialized = append(serialized, FlagEd25519)
	serialized = append(serialized, sig...)
	serialized = append(serialized, pub...)
	return base64.StdEncoding.EncodeToString(serialized)
}
