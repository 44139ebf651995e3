package chain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/GriffinCanCode/ambience-chat/internal/infrastructure/config"
)

// Network is one chain the chat contract is deployed on
type Network struct {
	Name         string         `json:"name"`
	ChainID      uint64         `json:"chainId"`
	RPCURL       string         `json:"-"`
	ChatContract common.Address `json:"chatContract"`
}

// NetworksFromConfig converts the configured network table
func NetworksFromConfig(cfgs []config.NetworkConfig) ([]Network, error) {
	out := make([]Network, 0, len(cfgs))
	for _, nc := range cfgs {
		n := Network{Name: nc.Name, ChainID: nc.ChainID, RPCURL: nc.RPCURL}
		if nc.ChatContract != "" {
			if !common.IsHexAddress(nc.ChatContract) {
				return nil, fmt.Errorf("network %s: invalid chat contract address %q", nc.Name, nc.ChatContract)
			}
			n.ChatContract = common.HexToAddress(nc.ChatContract)
		}
		out = append(out, n)
	}
	return out, nil
}

// DefaultNetworks returns the built-in deployments
func DefaultNetworks() []Network {
	networks, err := NetworksFromConfig(config.DefaultNetworks())
	if err != nil {
		panic(err)
	}
	return networks
}
