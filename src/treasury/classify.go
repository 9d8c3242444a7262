package treasury

import (
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/onemorebsmith/kaspa-governance/src/model"
	"github.com/pkg/errors"
)

const nativeTicker = "KAS"

// classifyTokenOperation turns an accepted operation into a ledger row, signed
// negative when the wallet sent it. ok is false for unaccepted operations.
func classifyTokenOperation(wallet model.TreasuryWallet, op TokenOperation) (*model.TreasuryRow, bool, error) {
	if !op.Accepted() {
		return nil, false, nil
	}
	if op.HashRev == "" {
		return nil, false, errors.New("token operation without hashRev")
	}
	amount, ok := new(big.Int).SetString(op.Amt, 10)
	if !ok || amount.Sign() < 0 {
		return nil, false, errors.Errorf("token operation %s has invalid amount %q", op.HashRev, op.Amt)
	}
	created := time.Now().UTC()
	if op.MtsAdd != "" {
		ms, err := strconv.ParseInt(op.MtsAdd, 10, 64)
		if err != nil {
			return nil, false, errors.Wrapf(err, "token operation %s has invalid mtsAdd", op.HashRev)
		}
		created = time.UnixMilli(ms).UTC()
	}

	row := &model.TreasuryRow{
		Hash:    op.HashRev,
		Type:    model.TreasuryRowKRC20,
		Ticker:  op.Tick,
		Amount:  amount,
		Created: created,
	}
	if op.From == string(wallet.Address) {
		row.Description = fmt.Sprintf("%s sent %s %s to %s", label(wallet), model.FormatUnits(amount), op.Tick, op.To)
		row.Amount.Neg(row.Amount)
	} else {
		row.Description = fmt.Sprintf("%s received %s %s from %s", label(wallet), model.FormatUnits(amount), op.Tick, op.From)
	}
	return row, true, nil
}

// classifyNativeTransaction reads the amount from the outputs that left the
// wallet (send) or reached it (receive). ok is false for unaccepted transactions.
func classifyNativeTransaction(wallet model.TreasuryWallet, tx NativeTransaction) (*model.TreasuryRow, bool, error) {
	if !tx.IsAccepted {
		return nil, false, nil
	}
	if tx.TransactionID == "" {
		return nil, false, errors.New("native transaction without id")
	}
	address := string(wallet.Address)
	send := false
	for _, in := range tx.Inputs {
		if in.PreviousOutpointAddress == address {
			send = true
			break
		}
	}

	amount := new(big.Int)
	counterparty := ""
	for _, out := range tx.Outputs {
		ours := out.ScriptPublicKeyAddress == address
		if ours == send {
			continue
		}
		amount.Add(amount, new(big.Int).SetUint64(out.Amount))
		if send && counterparty == "" {
			counterparty = out.ScriptPublicKeyAddress
		}
	}
	if !send {
		for _, in := range tx.Inputs {
			if in.PreviousOutpointAddress != "" {
				counterparty = in.PreviousOutpointAddress
				break
			}
		}
	}

	row := &model.TreasuryRow{
		Hash:    tx.TransactionID,
		Type:    model.TreasuryRowKaspa,
		Ticker:  nativeTicker,
		Amount:  amount,
		Created: time.UnixMilli(tx.BlockTime).UTC(),
	}
	if send {
		row.Description = fmt.Sprintf("%s sent %s KAS to %s", label(wallet), model.FormatUnits(amount), counterparty)
		row.Amount.Neg(row.Amount)
	} else {
		row.Description = fmt.Sprintf("%s received %s KAS from %s", label(wallet), model.FormatUnits(amount), counterparty)
	}
	return row, true, nil
}

func label(wallet model.TreasuryWallet) string {
	if wallet.Label != "" {
		return wallet.Label
	}
	return string(wallet.Address)
}
