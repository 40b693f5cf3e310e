package core

import "time"

// Session represents an authenticated pool session bound to a wallet
type Session struct {
	ID            string    // Unique session identifier (JWT jti)
	WalletAddress string    // Bitcoin address that proved control
	MinerID       string    // Miner record attributed to the session
	IssuedAt      time.Time // When the session was created
	ExpiresAt     time.Time // When the session token expires
}
