package session

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"golang.org/x/crypto/scrypt"
)

const (
	// DefaultScryptN needs about 32MB of memory per unlock.
	DefaultScryptN = 1 << 15

	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32
	kdfSaltLen   = 32
	gcmNonceLen  = 12
)

var ErrWrongPassphrase = errors.New("wrong session passphrase")

type sealedFile struct {
	Version    int    `json:"version"`
	KDFSalt    string `json:"kdfSalt"`
	Nonce      string `json:"nonce"`
	CipherText string `json:"cipherText"`
}

// SealedFileBackend keeps the record in a passphrase encrypted file. The
// record carries the ephemeral secret key, so it is never written in clear.
type SealedFileBackend struct {
	path       string
	passphrase []byte
	scryptN    int
}

// NewSealedFileBackend copies passphrase; the caller may wipe its own copy.
// scryptN <= 0 selects DefaultScryptN.
func NewSealedFileBackend(path string, passphrase []byte, scryptN int) (*SealedFileBackend, error) {
	if path == "" {
		return nil, errors.New("sealed session path is empty")
	}
	if len(passphrase) == 0 {
		return nil, errors.New("sealed session passphrase is empty")
	}
	if scryptN <= 0 {
		scryptN = DefaultScryptN
	}
	return &SealedFileBackend{
		path:       path,
		passphrase: append([]byte(nil), passphrase...),
		scryptN:    scryptN,
	}, nil
}

func (f *SealedFileBackend) Read(context.Context) ([]byte, error) {
	raw, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "read sealed session")
	}

	var sealed sealedFile
	if err := json.Unmarshal(raw, &sealed); err != nil {
		return nil, errors.Wrap(err, "decode sealed session")
	}
	kdfSalt, err := base64.StdEncoding.DecodeString(sealed.KDFSalt)
	if err != nil {
		return nil, errors.Wrap(err, "decode kdf salt")
	}
	nonce, err := base64.StdEncoding.DecodeString(sealed.Nonce)
	if err != nil {
		return nil, errors.Wrap(err, "decode nonce")
	}
	ciphertext, err := base64.StdEncoding.DecodeString(sealed.CipherText)
	if err != nil {
		return nil, errors.Wrap(err, "decode ciphertext")
	}

	aead, err := f.aead(kdfSalt)
	if err != nil {
		return nil, err
	}
	if len(nonce) != aead.NonceSize() {
		return nil, errors.New("sealed session nonce has wrong size")
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return plaintext, nil
}

func (f *SealedFileBackend) Write(_ context.Context, data []byte) error {
	kdfSalt := make([]byte, kdfSaltLen)
	if _, err := io.ReadFull(rand.Reader, kdfSalt); err != nil {
		return errors.Wrap(err, "generate kdf salt")
	}
	nonce := make([]byte, gcmNonceLen)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return errors.Wrap(err, "generate nonce")
	}

	aead, err := f.aead(kdfSalt)
	if err != nil {
		return err
	}
	out, err := json.Marshal(sealedFile{
		Version:    1,
		KDFSalt:    base64.StdEncoding.EncodeToString(kdfSalt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		CipherText: base64.StdEncoding.EncodeToString(aead.Seal(nil, nonce, data, nil)),
	})
	if err != nil {
		return errors.Wrap(err, "encode sealed session")
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return errors.Wrap(err, "create session directory")
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, out, 0o600); err != nil {
		return errors.Wrap(err, "write sealed session")
	}
	return errors.Wrap(os.Rename(tmp, f.path), "replace sealed session")
}

func (f *SealedFileBackend) Delete(context.Context) error {
	err := os.Remove(f.path)
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove sealed session")
	}
	return nil
}

func (f *SealedFileBackend) aead(kdfSalt []byte) (cipher.AEAD, error) {
	key, err := scrypt.Key(f.passphrase, kdfSalt, f.scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return nil, errors.Wrap(err, "derive key")
	}
	defer clear(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "create cipher")
	}
	return cipher.NewGCM(block)
}
