// Package txbuilder assembles and signs kaspa transactions from a wallet's
// live utxo set.
package txbuilder

import (
	"sort"

	"github.com/kaspanet/go-secp256k1"
	"github.com/kaspanet/kaspad/domain/consensus/model/externalapi"
	"github.com/kaspanet/kaspad/domain/consensus/utils/consensushashing"
	"github.com/kaspanet/kaspad/domain/consensus/utils/constants"
	"github.com/kaspanet/kaspad/domain/consensus/utils/subnetworks"
	"github.com/kaspanet/kaspad/domain/consensus/utils/transactionid"
	"github.com/kaspanet/kaspad/domain/consensus/utils/txscript"
	"github.com/kaspanet/kaspad/domain/consensus/utils/utxo"
	"github.com/kaspanet/kaspad/domain/dagconfig"
	"github.com/kaspanet/kaspad/util"
	"github.com/onemorebsmith/kaspa-governance/src/model"
	"github.com/pkg/errors"
)

// rough mass figures for a schnorr p2pk spend, 1 sompi per gram
const (
	baseMass      = 200
	massPerInput  = 1118
	massPerOutput = 370

	// change below this is folded into the fee rather than creating dust
	DustThreshold = 1000

	DefaultMaxInputsPerTransaction = 80
)

type Payment struct {
	ScriptPublicKey *externalapi.ScriptPublicKey
	Amount          uint64
}

func PaymentTo(address string, amount uint64, params *dagconfig.Params) (Payment, error) {
	addr, err := util.DecodeAddress(address, params.Prefix)
	if err != nil {
		return Payment{}, errors.Wrapf(err, "invalid address %s", address)
	}
	script, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return Payment{}, errors.Wrapf(err, "failed building script for %s", address)
	}
	return Payment{ScriptPublicKey: script, Amount: amount}, nil
}

type Options struct {
	PriorityFee             uint64
	MaxInputsPerTransaction int
}

// MaxInputs is the effective per-transaction input limit.
func (o Options) MaxInputs() int {
	if o.MaxInputsPerTransaction <= 1 {
		return DefaultMaxInputsPerTransaction
	}
	return o.MaxInputsPerTransaction
}

// EstimateFee is the mass based relay fee plus the priority fee.
func EstimateFee(inputs, outputs int, priorityFee uint64) uint64 {
	return uint64(baseMass+inputs*massPerInput+outputs*massPerOutput) + priorityFee
}

// Build spends inputs into payments and returns the remainder, minus fee, to
// change. Inputs keep their order.
func Build(inputs []*model.UTXO, payments []Payment, change *externalapi.ScriptPublicKey, fee uint64) (*externalapi.DomainTransaction, error) {
	total := model.TotalAmount(inputs)
	spend := fee
	for _, p := range payments {
		spend += p.Amount
	}
	if total < spend {
		return nil, errors.Wrapf(model.ErrInsufficientFunds, "inputs hold %d sompi, need %d", total, spend)
	}

	tx := &externalapi.DomainTransaction{
		Version:      constants.MaxTransactionVersion,
		Inputs:       make([]*externalapi.DomainTransactionInput, 0, len(inputs)),
		Outputs:      make([]*externalapi.DomainTransactionOutput, 0, len(payments)+1),
		LockTime:     0,
		SubnetworkID: subnetworks.SubnetworkIDNative,
		Gas:          0,
		Payload:      nil,
	}
	for _, in := range inputs {
		id, err := transactionid.FromString(in.TransactionID)
		if err != nil {
			return nil, errors.Wrapf(err, "bad outpoint transaction id %s", in.TransactionID)
		}
		tx.Inputs = append(tx.Inputs, &externalapi.DomainTransactionInput{
			PreviousOutpoint: externalapi.DomainOutpoint{TransactionID: *id, Index: in.Index},
			Sequence:         0,
			SigOpCount:       1,
			UTXOEntry:        utxo.NewUTXOEntry(in.Amount, in.ScriptPublicKey, in.IsCoinbase, in.BlockDAAScore),
		})
	}
	for _, p := range payments {
		tx.Outputs = append(tx.Outputs, &externalapi.DomainTransactionOutput{
			Value:           p.Amount,
			ScriptPublicKey: p.ScriptPublicKey,
		})
	}
	if rest := total - spend; rest >= DustThreshold {
		tx.Outputs = append(tx.Outputs, &externalapi.DomainTransactionOutput{
			Value:           rest,
			ScriptPublicKey: change,
		})
	}
	tx.Fee = fee
	return tx, nil
}

// Plan covers payments from utxos. When the selection needs more inputs than
// fit in one transaction, leading transactions compound chunks of utxos into
// the change address and the final transaction spends their outputs. The
// result must be submitted in order.
func Plan(utxos []*model.UTXO, payments []Payment, change *externalapi.ScriptPublicKey, changeAddress string, opts Options) ([]*externalapi.DomainTransaction, error) {
	pool := append([]*model.UTXO{}, utxos...)
	needed := uint64(0)
	for _, p := range payments {
		needed += p.Amount
	}
	maxInputs := opts.MaxInputs()

	var plan []*externalapi.DomainTransaction
	for {
		sort.SliceStable(pool, func(i, j int) bool { return pool[i].Amount > pool[j].Amount })
		selected, ok := selectInputs(pool, needed, len(payments)+1, opts.PriorityFee)
		if !ok {
			return nil, errors.Wrapf(model.ErrInsufficientFunds, "%d utxos holding %d sompi cannot cover %d sompi",
				len(pool), model.TotalAmount(pool), needed)
		}
		if len(selected) <= maxInputs {
			fee := EstimateFee(len(selected), len(payments)+1, opts.PriorityFee)
			final, err := Build(selected, payments, change, fee)
			if err != nil {
				return nil, err
			}
			return append(plan, final), nil
		}

		// compound the smallest chunk of the selection into a single output
		chunk := selected[len(selected)-maxInputs:]
		fee := EstimateFee(len(chunk), 1, opts.PriorityFee)
		compound, err := Build(chunk, nil, change, fee)
		if err != nil {
			return nil, err
		}
		if len(compound.Outputs) != 1 {
			return nil, errors.Wrap(model.ErrInsufficientFunds, "compounded chunk is dust")
		}
		plan = append(plan, compound)
		pool = replace(pool, chunk, &model.UTXO{
			Address:         changeAddress,
			TransactionID:   consensushashing.TransactionID(compound).String(),
			Index:           0,
			Amount:          compound.Outputs[0].Value,
			ScriptPublicKey: change,
		})
	}
}

// selectInputs greedily takes utxos (largest first) until needed plus fee is covered.
func selectInputs(pool []*model.UTXO, needed uint64, outputs int, priorityFee uint64) ([]*model.UTXO, bool) {
	total := uint64(0)
	for i, u := range pool {
		total += u.Amount
		if total >= needed+EstimateFee(i+1, outputs, priorityFee) {
			return pool[:i+1], true
		}
	}
	return nil, false
}

func replace(pool, spent []*model.UTXO, created *model.UTXO) []*model.UTXO {
	gone := map[*model.UTXO]bool{}
	for _, u := range spent {
		gone[u] = true
	}
	out := make([]*model.UTXO, 0, len(pool)-len(spent)+1)
	for _, u := range pool {
		if !gone[u] {
			out = append(out, u)
		}
	}
	return append(out, created)
}

// Sign signs every input locked to script with keyPair. Inputs locked to other
// scripts (p2sh) are left for the caller.
func Sign(tx *externalapi.DomainTransaction, keyPair *secp256k1.SchnorrKeyPair, script *externalapi.ScriptPublicKey) error {
	reused := &consensushashing.SighashReusedValues{}
	for i, in := range tx.Inputs {
		if in.UTXOEntry == nil || !in.UTXOEntry.ScriptPublicKey().Equal(script) {
			continue
		}
		sigScript, err := txscript.SignatureScript(tx, i, consensushashing.SigHashAll, keyPair, reused)
		if err != nil {
			return errors.Wrapf(err, "failed signing input %d", i)
		}
		in.SignatureScript = sigScript
	}
	return nil
}

func TransactionID(tx *externalapi.DomainTransaction) string {
	return consensushashing.TransactionID(tx).String()
}
