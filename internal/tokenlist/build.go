// Package tokenlist turns fetched token metadata into token list documents.
package tokenlist

import (
	"bytes"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Fantasim/tokenmeta/internal/config"
	"github.com/Fantasim/tokenmeta/internal/models"
)

// Apply returns md as a TokenInfo with override fields replacing fetched ones.
func Apply(md models.TokenMetadata, o models.MetadataOverride) models.TokenInfo {
	info := models.TokenInfo{
		ChainID:  md.ChainID,
		Address:  md.Address.Hex(),
		Name:     md.Name,
		Symbol:   md.Symbol,
		Decimals: md.Decimals,
	}

	if o.Name != nil {
		info.Name = *o.Name
	}
	if o.Symbol != nil {
		info.Symbol = *o.Symbol
	}
	if o.Decimals != nil {
		info.Decimals = *o.Decimals
	}
	if o.LogoURI != nil {
		info.LogoURI = *o.LogoURI
	}
	if len(o.Tags) > 0 {
		info.Tags = append([]string(nil), o.Tags...)
	}

	return info
}

// Build creates a token list named name for the given tier. Tokens are sorted by
// chain id, then address; each appears once.
func Build(name string, list models.List, metadata []models.TokenMetadata, overrides map[common.Address]models.MetadataOverride) models.TokenList {
	return build(name, list, metadata, overrides, time.Now())
}

func build(name string, list models.List, metadata []models.TokenMetadata, overrides map[common.Address]models.MetadataOverride, now time.Time) models.TokenList {
	if name == "" {
		name = config.DefaultTokenListName
	}

	type key struct {
		chainID int64
		address common.Address
	}

	byKey := make(map[key]models.TokenMetadata, len(metadata))
	for _, md := range metadata {
		byKey[key{md.ChainID, md.Address}] = md
	}

	keys := make([]key, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].chainID != keys[j].chainID {
			return keys[i].chainID < keys[j].chainID
		}
		return bytes.Compare(keys[i].address[:], keys[j].address[:]) < 0
	})

	tokens := make([]models.TokenInfo, 0, len(keys))
	for _, k := range keys {
		tokens = append(tokens, Apply(byKey[k], overrides[k.address]))
	}

	return models.TokenList{
		Name:      name,
		Timestamp: now.UTC().Format(time.RFC3339),
		Version: models.TokenListVersion{
			Major: config.TokenListMajor,
			Minor: config.TokenListMinor,
			Patch: config.TokenListPatch,
		},
		Keywords: []string{string(list)},
		Tokens:   tokens,
	}
}
