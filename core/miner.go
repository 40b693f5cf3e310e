package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// MinerStatus is the liveness state of a worker.
type MinerStatus string

const (
	MinerOnline  MinerStatus = "online"
	MinerOffline MinerStatus = "offline"
)

// MinerRecord is the persisted record for one wallet/worker pair.
// Multiple records may share a wallet address, one per worker.
type MinerRecord struct {
	ID            string      `gorm:"primaryKey"`
	WalletAddress string      `gorm:"index:idx_wallet_worker,unique"`
	WorkerName    string      `gorm:"index:idx_wallet_worker,unique"`
	HashRate      float64
	Status        MinerStatus `gorm:"type:varchar(16)"`
	IsTestScope   bool        `gorm:"index"`
	ScopeID       *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Payout is a pool payout to a wallet. Amounts are BTC.
type Payout struct {
	ID              string          `gorm:"primaryKey"`
	WalletAddress   string          `gorm:"index"`
	Amount          decimal.Decimal `gorm:"type:numeric(16,8)"`
	TransactionHash string
	Status          string `gorm:"type:varchar(16)"`
	IsTestScope     bool   `gorm:"index"`
	ScopeID         *string
	CreatedAt       time.Time
}

// Scope tags persisted rows with the ambient execution mode. It is built
// once at startup and threaded explicitly through every registry call;
// business logic never reads it from global state.
type Scope struct {
	Test      bool
	SessionID string
}

// ProductionScope is the zero-value scope used by production deployments.
var ProductionScope = Scope{}

// ScopeID returns the session id pointer to store on a row, nil in production.
func (s Scope) ScopeID() *string {
	if !s.Test || s.SessionID == "" {
		return nil
	}
	id := s.SessionID
	return &id
}
