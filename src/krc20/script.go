package krc20

import (
	"github.com/kaspanet/kaspad/domain/consensus/model/externalapi"
	"github.com/kaspanet/kaspad/domain/consensus/utils/txscript"
	"github.com/kaspanet/kaspad/domain/dagconfig"
	"github.com/kaspanet/kaspad/util"
	"github.com/pkg/errors"
)

const protocolTag = "kasplex"

// RedeemScript is
//
//	PUSH(pubkey) OP_CHECKSIG OP_FALSE OP_IF PUSH("kasplex") PUSH_I64(0) PUSH(payload) OP_ENDIF
func RedeemScript(pubKey []byte, payload []byte) ([]byte, error) {
	if len(pubKey) != 32 {
		return nil, errors.Errorf("expected 32 byte x-only public key, got %d", len(pubKey))
	}
	script, err := txscript.NewScriptBuilder().
		AddData(pubKey).
		AddOp(txscript.OpCheckSig).
		AddOp(txscript.OpFalse).
		AddOp(txscript.OpIf).
		AddData([]byte(protocolTag)).
		AddInt64(0).
		AddData(payload).
		AddOp(txscript.OpEndIf).
		Script()
	if err != nil {
		return nil, errors.Wrap(err, "failed building redeem script")
	}
	return script, nil
}

// CommitAddress is the p2sh address locking the commit output to redeemScript.
func CommitAddress(redeemScript []byte, params *dagconfig.Params) (util.Address, *externalapi.ScriptPublicKey, error) {
	addr, err := util.NewAddressScriptHash(redeemScript, params.Prefix)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed building p2sh address")
	}
	script, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed building p2sh script public key")
	}
	return addr, script, nil
}

// revealSignatureScript unlocks the p2sh input: PUSH(sig) PUSH(redeemScript).
func revealSignatureScript(signature, redeemScript []byte) ([]byte, error) {
	script, err := txscript.NewScriptBuilder().
		AddData(signature).
		AddData(redeemScript).
		Script()
	if err != nil {
		return nil, errors.Wrap(err, "failed building reveal signature script")
	}
	return script, nil
}
