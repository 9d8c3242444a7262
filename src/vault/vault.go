// Package vault encrypts private key material at rest. Blobs have the form
// ivHex:cipherHex (AES-256-CBC, PKCS#7 padding, random IV per blob).
package vault

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"strings"

	"github.com/onemorebsmith/kaspa-governance/src/model"
	"github.com/pkg/errors"
	"golang.org/x/crypto/scrypt"
)

const KeySize = 32

var ErrMalformedSecret = errors.Wrap(model.ErrSecret, "malformed secret")

type Vault struct {
	key []byte
}

func NewVault(key []byte) (*Vault, error) {
	if len(key) != KeySize {
		return nil, errors.Wrapf(model.ErrSecret, "vault key must be %d bytes, got %d", KeySize, len(key))
	}
	k := make([]byte, KeySize)
	copy(k, key)
	return &Vault{key: k}, nil
}

func KeyFromHex(s string) ([]byte, error) {
	key, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, errors.Wrap(model.ErrSecret, "vault key is not hex")
	}
	return key, nil
}

// KeyFromPassphrase stretches an operator passphrase into a vault key.
func KeyFromPassphrase(passphrase, salt string) ([]byte, error) {
	if passphrase == "" || salt == "" {
		return nil, errors.Wrap(model.ErrSecret, "passphrase and salt are required")
	}
	key, err := scrypt.Key([]byte(passphrase), []byte(salt), 1<<15, 8, 1, KeySize)
	if err != nil {
		return nil, errors.Wrap(err, "failed deriving vault key")
	}
	return key, nil
}

func (v *Vault) Encrypt(plaintext []byte) (string, error) {
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return "", errors.Wrap(err, "failed creating cipher")
	}
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", errors.Wrap(err, "failed generating iv")
	}
	padded := pad(plaintext, aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(out), nil
}

func (v *Vault) Decrypt(blob string) ([]byte, error) {
	parts := strings.Split(blob, ":")
	if len(parts) != 2 {
		return nil, errors.Wrapf(ErrMalformedSecret, "expected 1 separator, found %d", len(parts)-1)
	}
	iv, err := hex.DecodeString(parts[0])
	if err != nil || len(iv) != aes.BlockSize {
		return nil, errors.Wrap(ErrMalformedSecret, "bad iv segment")
	}
	ciphertext, err := hex.DecodeString(parts[1])
	if err != nil || len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, errors.Wrap(ErrMalformedSecret, "bad cipher segment")
	}
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return nil, errors.Wrap(err, "failed creating cipher")
	}
	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ciphertext)
	plain, err := unpad(out, aes.BlockSize)
	if err != nil {
		return nil, err
	}
	return plain, nil
}

func pad(data []byte, size int) []byte {
	n := size - len(data)%size
	return append(append([]byte{}, data...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(data []byte, size int) ([]byte, error) {
	n := int(data[len(data)-1])
	if n == 0 || n > size || n > len(data) {
		return nil, errors.Wrap(model.ErrSecret, "undecryptable secret (bad padding)")
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, errors.Wrap(model.ErrSecret, "undecryptable secret (bad padding)")
		}
	}
	return data[:len(data)-n], nil
}
