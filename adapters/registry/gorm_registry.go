package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/blgvbtc/poolauth/core"
	"github.com/blgvbtc/poolauth/ports"
)

// GormRegistry persists miner records and payouts through GORM. The
// unique index on (wallet_address, worker_name) makes Upsert safe under
// concurrent callers without any lock beyond the row itself.
type GormRegistry struct {
	db *gorm.DB
}

// NewGormRegistry migrates the schema and returns the registry.
func NewGormRegistry(db *gorm.DB) (ports.MinerRegistry, error) {
	if err := db.AutoMigrate(&core.MinerRecord{}, &core.Payout{}); err != nil {
		return nil, fmt.Errorf("migrate registry schema: %w", err)
	}
	return &GormRegistry{db: db}, nil
}

// Upsert inserts a new record or brings an existing wallet/worker pair
// back online. The row id never changes across repeated calls.
func (r *GormRegistry) Upsert(ctx context.Context, walletAddress, workerName string, scope core.Scope) (*core.MinerRecord, error) {
	now := time.Now().UTC()
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

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "wallet_address"}, {Name: "worker_name"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"status":     core.MinerOnline,
			"updated_at": now,
		}),
	}).Create(&rec).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStorageUnavailable, err)
	}

	return r.find(ctx, walletAddress, workerName)
}

// Heartbeat updates the reported hash rate for a known worker.
func (r *GormRegistry) Heartbeat(ctx context.Context, walletAddress, workerName string, hashRate float64, scope core.Scope) (*core.MinerRecord, error) {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&core.MinerRecord{}).
		Where("wallet_address = ? AND worker_name = ?", walletAddress, workerName).
		Updates(map[string]interface{}{
			"hash_rate":  hashRate,
			"status":     core.MinerOnline,
			"updated_at": now,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStorageUnavailable, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, core.ErrMinerNotFound
	}
	return r.find(ctx, walletAddress, workerName)
}

// ListActive returns online miners visible in the given scope. The
// production filter is unconditional: test-scoped rows never leak out.
func (r *GormRegistry) ListActive(ctx context.Context, scope core.Scope) ([]core.MinerRecord, error) {
	var out []core.MinerRecord
	q := r.db.WithContext(ctx).Where("status = ?", core.MinerOnline)
	if !scope.Test {
		q = q.Where("is_test_scope = ?", false)
	}
	if err := q.Order("updated_at DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStorageUnavailable, err)
	}
	return out, nil
}

// ListByWallet returns all workers for a wallet visible in the scope.
func (r *GormRegistry) ListByWallet(ctx context.Context, walletAddress string, scope core.Scope) ([]core.MinerRecord, error) {
	var out []core.MinerRecord
	q := r.db.WithContext(ctx).Where("wallet_address = ?", walletAddress)
	if !scope.Test {
		q = q.Where("is_test_scope = ?", false)
	}
	if err := q.Order("worker_name").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStorageUnavailable, err)
	}
	return out, nil
}

// RecordPayout stores a payout row tagged with the caller's scope.
func (r *GormRegistry) RecordPayout(ctx context.Context, p core.Payout, scope core.Scope) (*core.Payout, error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	p.IsTestScope = scope.Test
	p.ScopeID = scope.ScopeID()

	if err := r.db.WithContext(ctx).Create(&p).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStorageUnavailable, err)
	}
	return &p, nil
}

// ListPayouts returns payouts for a wallet visible in the scope.
func (r *GormRegistry) ListPayouts(ctx context.Context, walletAddress string, scope core.Scope) ([]core.Payout, error) {
	var out []core.Payout
	q := r.db.WithContext(ctx).Where("wallet_address = ?", walletAddress)
	if !scope.Test {
		q = q.Where("is_test_scope = ?", false)
	}
	if err := q.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStorageUnavailable, err)
	}
	return out, nil
}

func (r *GormRegistry) find(ctx context.Context, walletAddress, workerName string) (*core.MinerRecord, error) {
	var rec core.MinerRecord
	err := r.db.WithContext(ctx).
		Where("wallet_address = ? AND worker_name = ?", walletAddress, workerName).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, core.ErrMinerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStorageUnavailable, err)
	}
	return &rec, nil
}
