package ports

import (
	"context"

	"github.com/blgvbtc/poolauth/core"
)

// MinerRegistry persists wallet-derived miner records and payouts.
// All reads are scope-filtered: a production scope must never observe
// test-scoped rows.
type MinerRegistry interface {
	// Upsert creates or refreshes the record for a wallet/worker pair.
	// New records start with zero hash rate and status online; existing
	// records come back online with a bumped UpdatedAt. Idempotent.
	Upsert(ctx context.Context, walletAddress, workerName string, scope core.Scope) (*core.MinerRecord, error)

	// Heartbeat updates the reported hash rate for a known worker.
	Heartbeat(ctx context.Context, walletAddress, workerName string, hashRate float64, scope core.Scope) (*core.MinerRecord, error)

	// ListActive returns online miners visible in the given scope.
	ListActive(ctx context.Context, scope core.Scope) ([]core.MinerRecord, error)

	// ListByWallet returns all workers for a wallet visible in the scope.
	ListByWallet(ctx context.Context, walletAddress string, scope core.Scope) ([]core.MinerRecord, error)

	// RecordPayout stores a payout row tagged with the given scope.
	RecordPayout(ctx context.Context, p core.Payout, scope core.Scope) (*core.Payout, error)

	// ListPayouts returns payouts for a wallet visible in the scope.
	ListPayouts(ctx context.Context, walletAddress string, scope core.Scope) ([]core.Payout, error)
}
