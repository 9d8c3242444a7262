// Package identity turns an encrypted private key from the vault into a
// short-lived Schnorr signing identity.
package identity

import (
	"encoding/hex"
	"strings"

	"github.com/kaspanet/go-secp256k1"
	"github.com/kaspanet/kaspad/domain/consensus/model/externalapi"
	"github.com/kaspanet/kaspad/domain/consensus/utils/txscript"
	"github.com/kaspanet/kaspad/domain/dagconfig"
	"github.com/kaspanet/kaspad/util"
	"github.com/onemorebsmith/kaspa-governance/src/model"
	"github.com/pkg/errors"
)

// Decrypter is satisfied by *vault.Vault.
type Decrypter interface {
	Decrypt(blob string) ([]byte, error)
}

// Identity owns a decrypted key pair for the duration of one operation. Call
// Destroy when the operation ends.
type Identity struct {
	keyPair   *secp256k1.SchnorrKeyPair
	publicKey []byte // x-only, 32 bytes
	address   util.Address
	script    *externalapi.ScriptPublicKey
	params    *dagconfig.Params
}

// Open decrypts blob (hex encoded 32 byte private key) and derives the wallet address.
func Open(vault Decrypter, blob string, params *dagconfig.Params) (*Identity, error) {
	plain, err := vault.Decrypt(blob)
	if err != nil {
		return nil, err
	}
	defer zero(plain)
	raw, err := hex.DecodeString(strings.TrimSpace(string(plain)))
	if err != nil {
		return nil, errors.Wrap(model.ErrSecret, "decrypted key is not hex")
	}
	defer zero(raw)
	return FromPrivateKey(raw, params)
}

func FromPrivateKey(raw []byte, params *dagconfig.Params) (*Identity, error) {
	keyPair, err := secp256k1.DeserializeSchnorrPrivateKeyFromSlice(raw)
	if err != nil {
		return nil, errors.Wrap(model.ErrSecret, "invalid private key")
	}
	return fromKeyPair(keyPair, params)
}

func fromKeyPair(keyPair *secp256k1.SchnorrKeyPair, params *dagconfig.Params) (*Identity, error) {
	pub, err := keyPair.SchnorrPublicKey()
	if err != nil {
		return nil, errors.Wrap(err, "failed deriving public key")
	}
	serialized, err := pub.Serialize()
	if err != nil {
		return nil, errors.Wrap(err, "failed serializing public key")
	}
	address, err := util.NewAddressPublicKey(serialized[:], params.Prefix)
	if err != nil {
		return nil, errors.Wrap(err, "failed building address")
	}
	script, err := txscript.PayToAddrScript(address)
	if err != nil {
		return nil, errors.Wrap(err, "failed building script public key")
	}
	return &Identity{
		keyPair:   keyPair,
		publicKey: append([]byte{}, serialized[:]...),
		address:   address,
		script:    script,
		params:    params,
	}, nil
}

// Generate creates a throwaway identity, used by tests and `govctl keygen`.
func Generate(params *dagconfig.Params) (*Identity, error) {
	keyPair, err := secp256k1.GenerateSchnorrKeyPair()
	if err != nil {
		return nil, errors.Wrap(err, "failed generating key pair")
	}
	return fromKeyPair(keyPair, params)
}

func (id *Identity) KeyPair() *secp256k1.SchnorrKeyPair { return id.keyPair }
func (id *Identity) PublicKey() []byte                  { return id.publicKey }
func (id *Identity) Address() string                    { return id.address.EncodeAddress() }
func (id *Identity) ScriptPublicKey() *externalapi.ScriptPublicKey {
	return id.script
}
func (id *Identity) Params() *dagconfig.Params { return id.params }

// PrivateKeyHex exports the key for sealing into the vault.
func (id *Identity) PrivateKeyHex() string {
	serialized := id.keyPair.SerializePrivateKey()
	return hex.EncodeToString(serialized[:])
}

func (id *Identity) Destroy() {
	id.keyPair = nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
