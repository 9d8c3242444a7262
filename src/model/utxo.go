package model

import "github.com/kaspanet/kaspad/domain/consensus/model/externalapi"

// UTXO is an unspent output fetched from the node. It is fetched fresh for
// every operation and never cached.
type UTXO struct {
	Address         string
	TransactionID   string
	Index           uint32
	Amount          uint64
	ScriptPublicKey *externalapi.ScriptPublicKey
	BlockDAAScore   uint64
	IsCoinbase      bool
}

// UTXOChange is one batch of a utxos-changed notification.
type UTXOChange struct {
	Added   []*UTXO
	Removed []*UTXO
}

func TotalAmount(utxos []*UTXO) uint64 {
	total := uint64(0)
	for _, u := range utxos {
		total += u.Amount
	}
	return total
}
