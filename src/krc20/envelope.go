// Package krc20 inscribes kasplex krc-20 operations with a commit and a reveal
// transaction.
package krc20

import (
	"regexp"

	jsoniter "github.com/json-iterator/go"
	"github.com/onemorebsmith/kaspa-governance/src/model"
	"github.com/pkg/errors"
)

const Protocol = "krc-20"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var baseUnits = regexp.MustCompile(`^[0-9]+$`)

// Envelope is the inscribed payload. Field order is the wire order.
type Envelope struct {
	P    string `json:"p"`
	Op   string `json:"op"`
	Tick string `json:"tick"`
	Amt  string `json:"amt"`
	To   string `json:"to,omitempty"`
}

func EnvelopeFor(d model.OperationDescriptor) (Envelope, error) {
	if d.Op == "" || d.Tick == "" {
		return Envelope{}, errors.New("operation and ticker are required")
	}
	if !baseUnits.MatchString(d.Amount) {
		return Envelope{}, errors.Errorf("amount %q must be base units without a decimal point", d.Amount)
	}
	p := d.Protocol
	if p == "" {
		p = Protocol
	}
	return Envelope{P: p, Op: d.Op, Tick: d.Tick, Amt: d.Amount, To: d.To}, nil
}

func (e Envelope) Encode() ([]byte, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, errors.Wrap(err, "failed encoding krc20 envelope")
	}
	return raw, nil
}

// ScaleAmount converts a human token amount ("5", "0.5") into base units.
func ScaleAmount(amount string) (string, error) {
	units, ok := model.ParseUnits(amount)
	if !ok || units.Sign() <= 0 {
		return "", errors.Errorf("invalid token amount %q", amount)
	}
	return units.String(), nil
}
