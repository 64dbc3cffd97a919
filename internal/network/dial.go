package network

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/Fantasim/tokenmeta/internal/config"
)

// Dial connects to the network's JSON-RPC endpoint. When verifyChainID is set the
// endpoint's eth_chainId must match the table.
func Dial(ctx context.Context, c Config, verifyChainID bool) (*ethclient.Client, error) {
	slog.Info("rpc connecting",
		"network", c.Network,
		"chainId", c.ChainID,
	)

	if c.EndpointURL == "" {
		return nil, fmt.Errorf("%w: %s (set TOKENMETA_INFURA_KEY or an RPC override)", config.ErrNoEndpoint, c.Network)
	}

	dialCtx, cancel := context.WithTimeout(ctx, config.RPCDialTimeout)
	defer cancel()

	client, err := ethclient.DialContext(dialCtx, c.EndpointURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", config.ErrDialFailed, c.Network, err)
	}

	if verifyChainID {
		got, err := client.ChainID(dialCtx)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("%w: %s: eth_chainId: %v", config.ErrDialFailed, c.Network, err)
		}
		if !got.IsInt64() || got.Int64() != c.ChainID {
			client.Close()
			return nil, fmt.Errorf("%w: %s expects %d, endpoint reports %s",
				config.ErrChainIDMismatch, c.Network, c.ChainID, got)
		}
		slog.Debug("rpc chain id verified", "network", c.Network, "chainId", got)
	}

	slog.Info("rpc connected", "network", c.Network)

	return client, nil
}
