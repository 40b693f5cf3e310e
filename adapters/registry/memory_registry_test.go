package registry

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blgvbtc/poolauth/core"
)

const wallet = "1BvBMSEYstWetqTFn5Au4m4GFg7xJaNVN2"

func TestUpsertIdempotent(t *testing.T) {
	r := NewMemoryRegistry()
	ctx := context.Background()

	first, err := r.Upsert(ctx, wallet, "worker1", core.ProductionScope)
	require.NoError(t, err)
	assert.Equal(t, core.MinerOnline, first.Status)
	assert.Zero(t, first.HashRate)

	time.Sleep(5 * time.Millisecond)

	second, err := r.Upsert(ctx, wallet, "worker1", core.ProductionScope)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))

	miners, err := r.ListByWallet(ctx, wallet, core.ProductionScope)
	require.NoError(t, err)
	assert.Len(t, miners, 1)
}

func TestUpsertSeparateWorkers(t *testing.T) {
	r := NewMemoryRegistry()
	ctx := context.Background()

	a, err := r.Upsert(ctx, wallet, "worker1", core.ProductionScope)
	require.NoError(t, err)
	b, err := r.Upsert(ctx, wallet, "worker2", core.ProductionScope)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)

	miners, err := r.ListByWallet(ctx, wallet, core.ProductionScope)
	require.NoError(t, err)
	assert.Len(t, miners, 2)
}

func TestScopeFilterIsUnconditional(t *testing.T) {
	r := NewMemoryRegistry()
	ctx := context.Background()
	testScope := core.Scope{Test: true, SessionID: "test_20260831_abcd1234"}

	_, err := r.Upsert(ctx, wallet, "prod-worker", core.ProductionScope)
	require.NoError(t, err)
	testRec, err := r.Upsert(ctx, wallet, "test-worker", testScope)
	require.NoError(t, err)
	assert.True(t, testRec.IsTestScope)
	require.NotNil(t, testRec.ScopeID)
	assert.Equal(t, testScope.SessionID, *testRec.ScopeID)

	prodView, err := r.ListActive(ctx, core.ProductionScope)
	require.NoError(t, err)
	require.Len(t, prodView, 1)
	assert.Equal(t, "prod-worker", prodView[0].WorkerName)

	testView, err := r.ListActive(ctx, testScope)
	require.NoError(t, err)
	assert.Len(t, testView, 2)
}

func TestHeartbeat(t *testing.T) {
	r := NewMemoryRegistry()
	ctx := context.Background()

	_, err := r.Heartbeat(ctx, wallet, "worker1", 110.5, core.ProductionScope)
	assert.ErrorIs(t, err, core.ErrMinerNotFound)

	_, err = r.Upsert(ctx, wallet, "worker1", core.ProductionScope)
	require.NoError(t, err)

	rec, err := r.Heartbeat(ctx, wallet, "worker1", 110.5, core.ProductionScope)
	require.NoError(t, err)
	assert.Equal(t, 110.5, rec.HashRate)
	assert.Equal(t, core.MinerOnline, rec.Status)
}

func TestPayoutScopeFilter(t *testing.T) {
	r := NewMemoryRegistry()
	ctx := context.Background()
	testScope := core.Scope{Test: true, SessionID: "test_20260831_abcd1234"}

	_, err := r.RecordPayout(ctx, core.Payout{
		WalletAddress: wallet,
		Amount:        decimal.RequireFromString("0.00847000"),
		Status:        "confirmed",
	}, core.ProductionScope)
	require.NoError(t, err)

	_, err = r.RecordPayout(ctx, core.Payout{
		WalletAddress: wallet,
		Amount:        decimal.RequireFromString("0.00100000"),
		Status:        "pending",
	}, testScope)
	require.NoError(t, err)

	prod, err := r.ListPayouts(ctx, wallet, core.ProductionScope)
	require.NoError(t, err)
	require.Len(t, prod, 1)
	assert.Equal(t, "confirmed", prod[0].Status)
	assert.Equal(t, "0.00847", prod[0].Amount.String())

	all, err := r.ListPayouts(ctx, wallet, testScope)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
