package config

import "time"

// ERC-20 decoding defaults
const (
	UnknownTokenString = "UNKNOWN"
	DefaultDecimals    = 18
	MaxDecimals        = 255 // uint8, as declared by the ERC-20 interface
	CallsPerToken      = 3 // name, symbol, decimals
)

// RPC
const (
	InfuraURLTemplate = "https://%s.infura.io/v3/%s"
	AuroraMainnetURL  = "https://mainnet.aurora.dev"
	AuroraTestnetURL  = "https://testnet.aurora.dev"
	RPCDialTimeout    = 15 * time.Second
	AggregateTimeout  = 60 * time.Second
)

// Circuit Breaker
const (
	CircuitBreakerThreshold   = 3
	CircuitBreakerCooldown    = 30 * time.Second
	CircuitBreakerHalfOpenMax = 1

	CircuitClosed   = "closed"
	CircuitOpen     = "open"
	CircuitHalfOpen = "half_open"
)

// Server
const (
	ServerReadTimeout    = 30 * time.Second
	ServerWriteTimeout   = 90 * time.Second
	ServerIdleTimeout    = 120 * time.Second
	ServerMaxHeaderBytes = 1 << 20
	ShutdownTimeout      = 30 * time.Second
	MaxRequestBodyBytes  = 1 << 20
	MaxTokensPerRequest  = 1_000
)

// Logging
const (
	LogFilePrefix = "tokenmeta-"
	LogMaxAgeDays = 30
)

// Database
const (
	DBBusyTimeout        = 5000 // milliseconds
	DefaultFetchRunLimit = 50
)

// Token list
const (
	DefaultTokenListName = "tokenmeta"
	TokenListMajor       = 1
	TokenListMinor       = 0
	TokenListPatch       = 0
)
