package models

import "github.com/ethereum/go-ethereum/common"

// Network names a supported EVM chain.
type Network string

const (
	NetworkHomestead  Network = "homestead"
	NetworkKovan      Network = "kovan"
	NetworkPolygon    Network = "polygon"
	NetworkArbitrum   Network = "arbitrum"
	NetworkAurora     Network = "aurora"
	NetworkAuroraTest Network = "auroratest"
)

// AllNetworks is the ordered list of supported networks.
var AllNetworks = []Network{
	NetworkHomestead,
	NetworkKovan,
	NetworkPolygon,
	NetworkArbitrum,
	NetworkAurora,
	NetworkAuroraTest,
}

// List is a token list tier.
type List string

const (
	ListListed    List = "listed"
	ListVetted    List = "vetted"
	ListUntrusted List = "untrusted"
)

// AllLists is the ordered list of token list tiers.
var AllLists = []List{ListListed, ListVetted, ListUntrusted}

// Valid reports whether l is one of AllLists.
func (l List) Valid() bool {
	for _, known := range AllLists {
		if l == known {
			return true
		}
	}
	return false
}

// TokenMetadata is the on-chain metadata of a single ERC-20 token.
type TokenMetadata struct {
	Address  common.Address `json:"address"`
	ChainID  int64          `json:"chainId"`
	Name     string         `json:"name"`
	Symbol   string         `json:"symbol"`
	Decimals int            `json:"decimals"`
}

// TokenInfo is a token entry in a token list.
type TokenInfo struct {
	ChainID  int64    `json:"chainId"`
	Address  string   `json:"address"`
	Name     string   `json:"name"`
	Symbol   string   `json:"symbol"`
	Decimals int      `json:"decimals"`
	LogoURI  string   `json:"logoURI,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// MetadataOverride replaces individual fields of a fetched token.
// Nil fields are left untouched.
type MetadataOverride struct {
	Name     *string  `json:"name,omitempty" yaml:"name,omitempty"`
	Symbol   *string  `json:"symbol,omitempty" yaml:"symbol,omitempty"`
	Decimals *int     `json:"decimals,omitempty" yaml:"decimals,omitempty"`
	LogoURI  *string  `json:"logoURI,omitempty" yaml:"logoURI,omitempty"`
	Tags     []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// TokenListVersion is the semantic version of a token list.
type TokenListVersion struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
	Patch int `json:"patch"`
}

// TokenList is a token list document.
type TokenList struct {
	Name      string           `json:"name"`
	Timestamp string           `json:"timestamp"`
	Version   TokenListVersion `json:"version"`
	Keywords  []string         `json:"keywords,omitempty"`
	Tokens    []TokenInfo      `json:"tokens"`
}

// FetchRun records the outcome of one metadata fetch.
type FetchRun struct {
	ID            int64   `json:"id"`
	Network       Network `json:"network"`
	TokenCount    int     `json:"tokenCount"`
	FallbackCount int     `json:"fallbackCount"`
	DurationMs    int64   `json:"durationMs"`
	Error         string  `json:"error,omitempty"`
	CreatedAt     string  `json:"createdAt"`
}

// APIResponse is the standard API response wrapper.
type APIResponse struct {
	Data interface{} `json:"data,omitempty"`
	Meta *APIMeta    `json:"meta,omitempty"`
}

// APIMeta contains execution metadata.
type APIMeta struct {
	Total         int64 `json:"total,omitempty"`
	ExecutionTime int64 `json:"executionTime,omitempty"`
}

// APIError is the standard error response.
type APIError struct {
	Error APIErrorDetail `json:"error"`
}

// APIErrorDetail contains error code and message.
type APIErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
