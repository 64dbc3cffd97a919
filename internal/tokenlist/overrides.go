package tokenlist

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"github.com/Fantasim/tokenmeta/internal/config"
	"github.com/Fantasim/tokenmeta/internal/models"
	"github.com/Fantasim/tokenmeta/internal/network"
)

// Overrides holds manual metadata corrections per network and token.
type Overrides map[models.Network]map[common.Address]models.MetadataOverride

// For returns the overrides of one network. The result may be nil.
func (o Overrides) For(n models.Network) map[common.Address]models.MetadataOverride {
	if o == nil {
		return nil
	}
	return o[n]
}

// LoadOverrides reads an overrides file of the form
//
//	homestead:
//	  "0x9f8F72aA9304c8B593d555F12eF6589cC3A579A2":
//	    name: Maker
//	    logoURI: https://example.org/mkr.png
//
// An empty path yields no overrides.
func LoadOverrides(path string) (Overrides, error) {
	if path == "" {
		return Overrides{}, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", config.ErrOverridesLoad, path, err)
	}

	o, err := ParseOverrides(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	slog.Info("metadata overrides loaded", "path", path, "networks", len(o))
	return o, nil
}

// ParseOverrides decodes overrides from YAML.
func ParseOverrides(raw []byte) (Overrides, error) {
	var doc map[string]map[string]models.MetadataOverride
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrOverridesLoad, err)
	}

	out := make(Overrides, len(doc))
	for name, tokens := range doc {
		n, err := network.ParseNetwork(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", config.ErrOverridesLoad, err)
		}

		byAddr := make(map[common.Address]models.MetadataOverride, len(tokens))
		for addr, o := range tokens {
			if !common.IsHexAddress(addr) {
				return nil, fmt.Errorf("%w: %s: invalid address %q", config.ErrOverridesLoad, n, addr)
			}
			if o.Decimals != nil && (*o.Decimals < 0 || *o.Decimals > config.MaxDecimals) {
				return nil, fmt.Errorf("%w: %s: %s: decimals %d out of range", config.ErrOverridesLoad, n, addr, *o.Decimals)
			}
			byAddr[common.HexToAddress(addr)] = o
		}
		out[n] = byAddr
	}

	return out, nil
}
