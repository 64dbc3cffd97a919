package network

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Fantasim/tokenmeta/internal/config"
	"github.com/Fantasim/tokenmeta/internal/models"
)

// Config is the static description of one supported network.
type Config struct {
	Network     models.Network
	ChainID     int64
	EndpointURL string
	Aggregator  common.Address
}

// static holds what does not depend on runtime configuration.
type static struct {
	chainID       int64
	aggregator    common.Address
	infuraSubnet  string // empty for non-Infura networks
	fixedEndpoint string
}

var staticTable = map[models.Network]static{
	models.NetworkHomestead: {
		chainID:      1,
		aggregator:   common.HexToAddress("0x5ba1e12693dc8f9c48aad8770482f4739beed696"),
		infuraSubnet: "mainnet",
	},
	models.NetworkKovan: {
		chainID:      42,
		aggregator:   common.HexToAddress("0x5ba1e12693dc8f9c48aad8770482f4739beed696"),
		infuraSubnet: "kovan",
	},
	models.NetworkPolygon: {
		chainID:      137,
		aggregator:   common.HexToAddress("0xe2530198A125Dcdc8Fc5476e07BFDFb5203f1102"),
		infuraSubnet: "polygon-mainnet",
	},
	models.NetworkArbitrum: {
		chainID:      42161,
		aggregator:   common.HexToAddress("0xd67950096d029af421a946ffb1e04c94caf8e256"),
		infuraSubnet: "arbitrum-mainnet",
	},
	models.NetworkAurora: {
		chainID:       1313161554,
		aggregator:    common.HexToAddress("0x49eb1F160e167aa7bA96BdD88B6C1f2ffda5212A"),
		fixedEndpoint: config.AuroraMainnetURL,
	},
	models.NetworkAuroraTest: {
		chainID:       1313161555,
		aggregator:    common.HexToAddress("0x1A889db259E05570d13c9f129e9bDD2E70F15A4D"),
		fixedEndpoint: config.AuroraTestnetURL,
	},
}

// Registry is an immutable lookup table from network to its configuration.
type Registry struct {
	networks map[models.Network]Config
}

// NewRegistry builds the registry from the built-in table. Infura endpoints use
// infuraKey; overrides (keyed by network name) replace an endpoint outright.
// The result is validated exhaustively against models.AllNetworks.
func NewRegistry(infuraKey string, overrides map[string]string) (*Registry, error) {
	networks := make(map[models.Network]Config, len(staticTable))

	for n, s := range staticTable {
		endpoint := s.fixedEndpoint
		if s.infuraSubnet != "" && infuraKey != "" {
			endpoint = fmt.Sprintf(config.InfuraURLTemplate, s.infuraSubnet, infuraKey)
		}
		if override, ok := overrides[string(n)]; ok && override != "" {
			endpoint = override
		}

		networks[n] = Config{
			Network:     n,
			ChainID:     s.chainID,
			EndpointURL: endpoint,
			Aggregator:  s.aggregator,
		}
	}

	for name := range overrides {
		if _, ok := staticTable[models.Network(name)]; !ok {
			return nil, fmt.Errorf("%w: endpoint override for %q", config.ErrUnsupportedNetwork, name)
		}
	}

	r := &Registry{networks: networks}
	if err := r.Validate(); err != nil {
		return nil, err
	}

	slog.Info("network registry initialized",
		"networks", len(networks),
		"overrides", len(overrides),
		"infura", infuraKey != "",
	)

	return r, nil
}

// NewRegistryFromConfigs builds a registry from explicit entries. Used by tests and
// by callers pointing every network at local nodes. The result is validated.
func NewRegistryFromConfigs(configs ...Config) (*Registry, error) {
	networks := make(map[models.Network]Config, len(configs))
	for _, c := range configs {
		networks[c.Network] = c
	}

	r := &Registry{networks: networks}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate checks that every supported network has an entry with a chain id and an
// aggregator. A missing endpoint is not a registry defect: Infura networks have none
// until a key is configured, and Dial reports it for the network actually used.
func (r *Registry) Validate() error {
	var missing []string

	for _, n := range models.AllNetworks {
		c, ok := r.networks[n]
		switch {
		case !ok:
			missing = append(missing, string(n)+" (no entry)")
		case c.ChainID == 0:
			missing = append(missing, string(n)+" (no chain id)")
		case c.Aggregator == (common.Address{}):
			missing = append(missing, string(n)+" (no aggregator)")
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", config.ErrIncompleteRegistry, strings.Join(missing, ", "))
	}
	return nil
}

// Lookup returns the configuration for n.
func (r *Registry) Lookup(n models.Network) (Config, error) {
	c, ok := r.networks[n]
	if !ok {
		return Config{}, fmt.Errorf("%w: %q", config.ErrUnsupportedNetwork, n)
	}
	return c, nil
}

// All returns every entry in models.AllNetworks order.
func (r *Registry) All() []Config {
	out := make([]Config, 0, len(models.AllNetworks))
	for _, n := range models.AllNetworks {
		if c, ok := r.networks[n]; ok {
			out = append(out, c)
		}
	}
	return out
}

// ParseNetwork parses a case-insensitive network name.
func ParseNetwork(s string) (models.Network, error) {
	n := models.Network(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := staticTable[n]; !ok {
		return "", fmt.Errorf("%w: %q", config.ErrUnsupportedNetwork, s)
	}
	return n, nil
}
