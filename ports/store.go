package ports

import (
	"context"

	"github.com/blgvbtc/poolauth/core"
)

// ChallengeStore tracks authentication challenges and their terminal
// outcomes. Consume is the linearization point of the whole protocol:
// under concurrent callers racing for the same id exactly one succeeds.
type ChallengeStore interface {
	// Create stores a fresh Pending challenge.
	Create(ctx context.Context, ch core.Challenge) error

	// Consume atomically transitions Pending -> Consumed and returns the
	// prior record. Missing, already-consumed and expired challenges are
	// reported with core.ErrChallengeNotFound, core.ErrChallengeConsumed
	// and core.ErrChallengeExpired respectively.
	Consume(ctx context.Context, id string) (*core.Challenge, error)

	// Peek is a read-only lookup for the polling path. It never mutates
	// challenge state and never extends expiry.
	Peek(ctx context.Context, id string) (*core.Challenge, error)

	// RecordOutcome stores the terminal result for a consumed challenge.
	RecordOutcome(ctx context.Context, id string, out core.Outcome) error

	// Outcome returns the recorded result, or core.ErrChallengeNotFound
	// when none has been recorded.
	Outcome(ctx context.Context, id string) (*core.Outcome, error)
}
