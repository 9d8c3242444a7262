package kaspaapi

import (
	"github.com/kaspanet/kaspad/domain/dagconfig"
	"github.com/pkg/errors"
)

// NetworkParams maps a network id from config to kaspad's dag params.
func NetworkParams(networkID string) (*dagconfig.Params, error) {
	switch networkID {
	case "", "mainnet":
		return &dagconfig.MainnetParams, nil
	case "testnet", "testnet-10", "testnet-11":
		return &dagconfig.TestnetParams, nil
	case "devnet":
		return &dagconfig.DevnetParams, nil
	case "simnet":
		return &dagconfig.SimnetParams, nil
	}
	return nil, errors.Errorf("unknown network id %q", networkID)
}
