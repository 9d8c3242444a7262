package model

import (
	"math/big"
	"time"
)

type KaspaWalletAddr string

const KasDigitMultiplier = 100000000 // multiplier from kas (and krc20 tokens) to base units

type TreasuryRowType string

const ( // needs to match the `type` check constraint on treasury_transactions
	TreasuryRowKRC20 TreasuryRowType = "KRC20"
	TreasuryRowKaspa TreasuryRowType = "Kaspa"
)

// TreasuryRow is one deduplicated entry of a treasury wallet's history. Hash is
// globally unique; rows are append-only.
type TreasuryRow struct {
	Hash        string
	Type        TreasuryRowType
	Ticker      string
	Amount      *big.Int // signed, in base units (1e8)
	Description string
	Created     time.Time
}

// DecimalAmount renders the row amount as a signed decimal with 8 fractional digits.
func (r *TreasuryRow) DecimalAmount() string {
	return FormatUnits(r.Amount)
}

// FormatUnits renders base units as a signed decimal string, e.g. -5.00000000.
func FormatUnits(units *big.Int) string {
	if units == nil {
		return "0.00000000"
	}
	abs := new(big.Int).Abs(units)
	whole, frac := new(big.Int).QuoRem(abs, big.NewInt(KasDigitMultiplier), new(big.Int))
	sign := ""
	if units.Sign() < 0 {
		sign = "-"
	}
	return sign + whole.String() + "." + leftPad(frac.String(), 8)
}

// ParseUnits parses a decimal string with up to 8 fractional digits into base units.
func ParseUnits(s string) (*big.Int, bool) {
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return nil, false
	}
	r.Mul(r, new(big.Rat).SetInt64(KasDigitMultiplier))
	if !r.IsInt() {
		return nil, false
	}
	return new(big.Int).Set(r.Num()), true
}

func leftPad(s string, width int) string {
	for len(s) < width {
		s = "0" + s
	}
	return s
}

// TreasuryWallet is a tracked treasury address and its human label.
type TreasuryWallet struct {
	Address KaspaWalletAddr `yaml:"address"`
	Label   string          `yaml:"label"`
}
