// Package poolauth authenticates mining-pool users by proof of control
// of a Bitcoin address: the server issues a short-lived challenge, an
// external wallet signs it, and a verified signature yields a session
// token and an idempotent miner record keyed by wallet address.
package poolauth

import (
	"context"

	"github.com/blgvbtc/poolauth/core"
	"github.com/blgvbtc/poolauth/service"
)

// Client is the public interface for embedding the authentication
// protocol without the HTTP transport. *service.AuthService satisfies it.
type Client interface {
	// StartAuth issues a fresh challenge for the given platform surface.
	StartAuth(ctx context.Context, platform string) (*service.StartAuthResult, error)

	// CompleteAuth consumes the challenge, verifies the signature and
	// returns the issued session. The challenge is single-use regardless
	// of the verification outcome.
	CompleteAuth(ctx context.Context, walletAddress, workerName, signature, challengeID string) (*service.CompleteAuthResult, error)

	// PollStatus reports where a challenge is in its lifecycle.
	PollStatus(ctx context.Context, challengeID string) (*service.AuthPollResult, error)

	// ValidateSession verifies a previously issued session token.
	ValidateSession(ctx context.Context, token string) (*core.Session, error)
}

var _ Client = (*service.AuthService)(nil)
