package service

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blgvbtc/poolauth/adapters/registry"
	"github.com/blgvbtc/poolauth/adapters/store"
	"github.com/blgvbtc/poolauth/adapters/tokenizer"
	"github.com/blgvbtc/poolauth/adapters/verifier"
	"github.com/blgvbtc/poolauth/core"
	"github.com/blgvbtc/poolauth/internal/btcmsg"
	"github.com/blgvbtc/poolauth/ports"
)

// stubPublisher records events instead of delivering them.
type stubPublisher struct {
	mu            sync.Mutex
	authenticated []string
	rejected      []string
}

func (p *stubPublisher) PublishAuthenticated(_ context.Context, _, _, challengeID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.authenticated = append(p.authenticated, challengeID)
	return nil
}

func (p *stubPublisher) PublishRejected(_ context.Context, _, challengeID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rejected = append(p.rejected, challengeID)
	return nil
}

type testWallet struct {
	key     *btcec.PrivateKey
	address string
}

func newWallet(t *testing.T) testWallet {
	t.Helper()
	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	addr, err := btcutil.NewAddressPubKeyHash(
		btcutil.Hash160(key.PubKey().SerializeCompressed()), &chaincfg.MainNetParams)
	require.NoError(t, err)
	return testWallet{key: key, address: addr.EncodeAddress()}
}

func (w testWallet) sign(message string) string {
	return base64.StdEncoding.EncodeToString(btcmsg.SignCompact(w.key, message, true))
}

type testEnv struct {
	svc   *AuthService
	store *store.MemoryStore
	pub   *stubPublisher
	tok   ports.Tokenizer
	reg   *registry.MemoryRegistry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	signKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	challengeStore := store.NewMemoryStore()
	reg := registry.NewMemoryRegistry()
	tok := tokenizer.NewJWTTokenizer(signKey)
	pub := &stubPublisher{}

	svc := NewAuthService(
		challengeStore,
		verifier.New(nil),
		reg,
		tok,
		pub,
		core.ProductionScope,
		"https://pool.example.com/auth/verify",
	)
	return &testEnv{svc: svc, store: challengeStore, pub: pub, tok: tok, reg: reg}
}

func TestStartAuthIssuesParseableQRPayload(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.svc.StartAuth(context.Background(), "mining_pool")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Challenge.ID)
	assert.Contains(t, res.Challenge.Message, res.Challenge.ID)
	assert.Equal(t, core.ChallengePending, res.Challenge.State)

	var payload QRPayload
	require.NoError(t, json.Unmarshal([]byte(res.QRPayload), &payload))
	assert.Equal(t, res.Challenge.ID, payload.ChallengeID)
	assert.Equal(t, res.Challenge.Message, payload.Message)
	assert.Equal(t, "https://pool.example.com/auth/verify", payload.VerifyURL)
}

func TestCompleteAuthHappyPath(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	wallet := newWallet(t)

	started, err := env.svc.StartAuth(ctx, "mining_pool")
	require.NoError(t, err)

	res, err := env.svc.CompleteAuth(ctx, wallet.address, "rig-01", wallet.sign(started.Challenge.Message), started.Challenge.ID)
	require.NoError(t, err)
	assert.Equal(t, wallet.address, res.Session.WalletAddress)
	assert.Equal(t, res.Miner.ID, res.Session.MinerID)
	assert.Equal(t, "rig-01", res.Miner.WorkerName)

	// The issued token round-trips through the tokenizer.
	session, err := env.tok.Validate(res.SessionToken)
	require.NoError(t, err)
	assert.Equal(t, wallet.address, session.WalletAddress)
	assert.Equal(t, res.Miner.ID, session.MinerID)

	assert.Equal(t, []string{started.Challenge.ID}, env.pub.authenticated)
}

func TestCompleteAuthRepeatIsIdempotentUpsert(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	wallet := newWallet(t)

	first, err := env.svc.StartAuth(ctx, "mining_pool")
	require.NoError(t, err)
	res1, err := env.svc.CompleteAuth(ctx, wallet.address, "rig-01", wallet.sign(first.Challenge.Message), first.Challenge.ID)
	require.NoError(t, err)

	second, err := env.svc.StartAuth(ctx, "mining_pool")
	require.NoError(t, err)
	res2, err := env.svc.CompleteAuth(ctx, wallet.address, "rig-01", wallet.sign(second.Challenge.Message), second.Challenge.ID)
	require.NoError(t, err)

	assert.Equal(t, res1.Miner.ID, res2.Miner.ID)
}

func TestWrongKeyBurnsChallenge(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	wallet := newWallet(t)
	imposter := newWallet(t)

	started, err := env.svc.StartAuth(ctx, "mining_pool")
	require.NoError(t, err)

	// Signature from the wrong key: mismatch.
	_, err = env.svc.CompleteAuth(ctx, wallet.address, "", imposter.sign(started.Challenge.Message), started.Challenge.ID)
	assert.ErrorIs(t, err, core.ErrSignatureMismatch)

	// Even a correct signature cannot retry the same challenge.
	_, err = env.svc.CompleteAuth(ctx, wallet.address, "", wallet.sign(started.Challenge.Message), started.Challenge.ID)
	assert.ErrorIs(t, err, core.ErrChallengeConsumed)

	assert.Equal(t, []string{started.Challenge.ID}, env.pub.rejected)
	assert.Empty(t, env.pub.authenticated)
}

func TestExpiredChallengeRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	wallet := newWallet(t)

	started, err := env.svc.StartAuth(ctx, "mining_pool")
	require.NoError(t, err)

	later := func() time.Time { return time.Now().Add(DefaultChallengeTTL + time.Minute) }
	env.store.SetClock(later)
	env.svc.SetClock(later)

	// Correctly signed but too late.
	_, err = env.svc.CompleteAuth(ctx, wallet.address, "", wallet.sign(started.Challenge.Message), started.Challenge.ID)
	assert.ErrorIs(t, err, core.ErrChallengeExpired)

	poll, err := env.svc.PollStatus(ctx, started.Challenge.ID)
	require.NoError(t, err)
	assert.Equal(t, PollExpired, poll.Status)
}

func TestPollLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	wallet := newWallet(t)

	started, err := env.svc.StartAuth(ctx, "mining_pool")
	require.NoError(t, err)

	poll, err := env.svc.PollStatus(ctx, started.Challenge.ID)
	require.NoError(t, err)
	assert.Equal(t, PollWaiting, poll.Status)

	res, err := env.svc.CompleteAuth(ctx, wallet.address, "", wallet.sign(started.Challenge.Message), started.Challenge.ID)
	require.NoError(t, err)

	poll, err = env.svc.PollStatus(ctx, started.Challenge.ID)
	require.NoError(t, err)
	assert.Equal(t, PollAuthenticated, poll.Status)
	assert.Equal(t, wallet.address, poll.WalletAddress)
	assert.Equal(t, res.SessionToken, poll.SessionToken)

	// The session token delivered via poll validates too.
	session, err := env.tok.Validate(poll.SessionToken)
	require.NoError(t, err)
	assert.Equal(t, wallet.address, session.WalletAddress)
}

func TestPollRejectedAfterMismatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	wallet := newWallet(t)
	imposter := newWallet(t)

	started, err := env.svc.StartAuth(ctx, "mining_pool")
	require.NoError(t, err)

	_, err = env.svc.CompleteAuth(ctx, wallet.address, "", imposter.sign(started.Challenge.Message), started.Challenge.ID)
	require.ErrorIs(t, err, core.ErrSignatureMismatch)

	poll, err := env.svc.PollStatus(ctx, started.Challenge.ID)
	require.NoError(t, err)
	assert.Equal(t, PollRejected, poll.Status)
	assert.Empty(t, poll.SessionToken)
}

func TestPollUnknownChallenge(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.PollStatus(context.Background(), "never-issued")
	assert.ErrorIs(t, err, core.ErrChallengeNotFound)
}

type failingRegistry struct{ ports.MinerRegistry }

func (failingRegistry) Upsert(context.Context, string, string, core.Scope) (*core.MinerRecord, error) {
	return nil, core.ErrStorageUnavailable
}

func TestPollConvergesWhenRegistryFails(t *testing.T) {
	signKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	svc := NewAuthService(
		store.NewMemoryStore(),
		verifier.New(nil),
		failingRegistry{},
		tokenizer.NewJWTTokenizer(signKey),
		&stubPublisher{},
		core.ProductionScope,
		"https://pool.example.com/auth/verify",
	)

	ctx := context.Background()
	wallet := newWallet(t)

	started, err := svc.StartAuth(ctx, "mining_pool")
	require.NoError(t, err)

	_, err = svc.CompleteAuth(ctx, wallet.address, "", wallet.sign(started.Challenge.Message), started.Challenge.ID)
	require.ErrorIs(t, err, core.ErrStorageUnavailable)

	// The consumed challenge must still reach a terminal poll state.
	poll, err := svc.PollStatus(ctx, started.Challenge.ID)
	require.NoError(t, err)
	assert.Equal(t, PollRejected, poll.Status)
}

func TestConcurrentCompleteAuthSingleWinner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := newWallet(t)
	bob := newWallet(t)

	started, err := env.svc.StartAuth(ctx, "mining_pool")
	require.NoError(t, err)

	sigA := alice.sign(started.Challenge.Message)
	sigB := bob.sign(started.Challenge.Message)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errs[0] = env.svc.CompleteAuth(ctx, alice.address, "", sigA, started.Challenge.ID)
	}()
	go func() {
		defer wg.Done()
		_, errs[1] = env.svc.CompleteAuth(ctx, bob.address, "", sigB, started.Challenge.ID)
	}()
	wg.Wait()

	var wins, losses int
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			assert.True(t, errors.Is(err, core.ErrChallengeConsumed), "unexpected error: %v", err)
			losses++
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, losses)
}
