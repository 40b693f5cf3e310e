package core

import "time"

// ChallengeState tracks the lifecycle of an authentication challenge.
type ChallengeState string

const (
	ChallengePending  ChallengeState = "pending"
	ChallengeConsumed ChallengeState = "consumed"
	ChallengeExpired  ChallengeState = "expired"
)

// Challenge represents a single-use authentication challenge
type Challenge struct {
	ID        string         // Unique identifier, doubles as the signed nonce
	Message   string         // Exact byte string the wallet must sign
	Platform  string         // Issuing surface tag, carried for audit only
	IssuedAt  time.Time      // When the challenge was created
	ExpiresAt time.Time      // When the challenge expires
	State     ChallengeState // Pending, Consumed or Expired
}

// Expired reports whether the challenge is past its expiry at the given instant.
func (c *Challenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// OutcomeStatus is the terminal result of an authentication attempt.
type OutcomeStatus string

const (
	OutcomeAuthenticated OutcomeStatus = "authenticated"
	OutcomeRejected      OutcomeStatus = "rejected"
)

// Outcome records what happened to a consumed challenge so the polling
// path can observe the transition.
type Outcome struct {
	Status        OutcomeStatus
	WalletAddress string
	SessionToken  string
	RecordedAt    time.Time
}

// VerifiedIdentity is the ephemeral product of a successful signature check.
// It is consumed immediately by the coordinator and never persisted.
type VerifiedIdentity struct {
	WalletAddress string
	ChallengeID   string
	VerifiedAt    time.Time
}
