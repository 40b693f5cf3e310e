package tokenizer

import "github.com/golang-jwt/jwt/v5"

// SessionClaims combines standard claims with pool-specific ones
type SessionClaims struct {
	jwt.RegisteredClaims
	MinerID string `json:"mid"` // Miner record attributed to the session
}
