package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/blgvbtc/poolauth/core"
	"github.com/blgvbtc/poolauth/ports"
)

// MemoryRegistry is an in-memory MinerRegistry for tests and single-node
// development runs. It mirrors the scope semantics of the GORM registry.
type MemoryRegistry struct {
	mu      sync.Mutex
	miners  map[string]core.MinerRecord // keyed by wallet + "\x00" + worker
	payouts []core.Payout
}

// NewMemoryRegistry creates a new in-memory registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		miners: make(map[string]core.MinerRecord),
	}
}

func minerKey(wallet, worker string) string { return wallet + "\x00" + worker }

// Upsert creates or refreshes the record for a wallet/worker pair.
func (r *MemoryRegistry) Upsert(ctx context.Context, walletAddress, workerName string, scope core.Scope) (*core.MinerRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	key := minerKey(walletAddress, workerName)

	if rec, ok := r.miners[key]; ok {
		rec.Status = core.MinerOnline
		rec.UpdatedAt = now
		r.miners[key] = rec
		return &rec, nil
	}

	rec := core.MinerRecord{
		ID:            uuid.New().String(),
		WalletAddress: walletAddress,
		WorkerName:    workerName,
		HashRate:      0,
		Status:        core.MinerOnline,
		IsTestScope:   scope.Test,
		ScopeID:       scope.ScopeID(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	r.miners[key] = rec
	return &rec, nil
}

// Heartbeat updates the reported hash rate for a known worker.
func (r *MemoryRegistry) Heartbeat(ctx context.Context, walletAddress, workerName string, hashRate float64, scope core.Scope) (*core.MinerRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := minerKey(walletAddress, workerName)
	rec, ok := r.miners[key]
	if !ok {
		return nil, core.ErrMinerNotFound
	}

	rec.HashRate = hashRate
	rec.Status = core.MinerOnline
	rec.UpdatedAt = time.Now().UTC()
	r.miners[key] = rec
	return &rec, nil
}

// ListActive returns online miners visible in the given scope.
func (r *MemoryRegistry) ListActive(ctx context.Context, scope core.Scope) ([]core.MinerRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []core.MinerRecord
	for _, rec := range r.miners {
		if rec.Status != core.MinerOnline {
			continue
		}
		if !scope.Test && rec.IsTestScope {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// ListByWallet returns all workers for a wallet visible in the scope.
func (r *MemoryRegistry) ListByWallet(ctx context.Context, walletAddress string, scope core.Scope) ([]core.MinerRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []core.MinerRecord
	for _, rec := range r.miners {
		if rec.WalletAddress != walletAddress {
			continue
		}
		if !scope.Test && rec.IsTestScope {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].WorkerName < out[j].WorkerName
	})
	return out, nil
}

// RecordPayout stores a payout row tagged with the caller's scope.
func (r *MemoryRegistry) RecordPayout(ctx context.Context, p core.Payout, scope core.Scope) (*core.Payout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	p.IsTestScope = scope.Test
	p.ScopeID = scope.ScopeID()
	r.payouts = append(r.payouts, p)
	return &p, nil
}

// ListPayouts returns payouts for a wallet visible in the scope.
func (r *MemoryRegistry) ListPayouts(ctx context.Context, walletAddress string, scope core.Scope) ([]core.Payout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []core.Payout
	for _, p := range r.payouts {
		if p.WalletAddress != walletAddress {
			continue
		}
		if !scope.Test && p.IsTestScope {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

var _ ports.MinerRegistry = (*MemoryRegistry)(nil)
