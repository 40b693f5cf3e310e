package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/blgvbtc/poolauth/core"
	"github.com/blgvbtc/poolauth/ports"
)

const (
	// DefaultChallengeTTL is how long a wallet has to sign a challenge.
	DefaultChallengeTTL = 5 * time.Minute

	// DefaultSessionTTL is the validity window of issued session tokens.
	DefaultSessionTTL = 24 * time.Hour

	// DefaultWorkerName is used when a verify request names no worker.
	DefaultWorkerName = "default"
)

// AuthService drives the authentication protocol: it issues challenges,
// accepts signed responses, and answers poll queries. Per challenge the
// only valid sequence is zero-or-one successful Consume followed by
// zero-or-one terminal outcome.
type AuthService struct {
	store     ports.ChallengeStore
	verifier  ports.SignatureVerifier
	registry  ports.MinerRegistry
	tokenizer ports.Tokenizer
	eventPub  ports.EventPublisher

	scope        core.Scope
	verifyURL    string
	challengeTTL time.Duration
	sessionTTL   time.Duration

	now func() time.Time
}

// NewAuthService creates a new authentication service.
func NewAuthService(
	store ports.ChallengeStore,
	verifier ports.SignatureVerifier,
	registry ports.MinerRegistry,
	tokenizer ports.Tokenizer,
	eventPub ports.EventPublisher,
	scope core.Scope,
	verifyURL string,
) *AuthService {
	return &AuthService{
		store:        store,
		verifier:     verifier,
		registry:     registry,
		tokenizer:    tokenizer,
		eventPub:     eventPub,
		scope:        scope,
		verifyURL:    verifyURL,
		challengeTTL: DefaultChallengeTTL,
		sessionTTL:   DefaultSessionTTL,
		now:          time.Now,
	}
}

// SetClock overrides the service clock. Intended for tests.
func (s *AuthService) SetClock(now func() time.Time) { s.now = now }

// Scope returns the ambient persistence scope the service threads into
// every registry call.
func (s *AuthService) Scope() core.Scope { return s.scope }

// Registry exposes the miner registry for read-side transport handlers.
func (s *AuthService) Registry() ports.MinerRegistry { return s.registry }

// StartAuthResult is the issued challenge plus its QR payload.
type StartAuthResult struct {
	Challenge core.Challenge
	QRPayload string
}

// QRPayload is the JSON blob a dashboard encodes into a QR code.
type QRPayload struct {
	VerifyURL   string    `json:"verify_url"`
	ChallengeID string    `json:"challenge_id"`
	Message     string    `json:"message"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// StartAuth issues a fresh challenge for the given platform surface.
func (s *AuthService) StartAuth(ctx context.Context, platform string) (*StartAuthResult, error) {
	nonceBytes := make([]byte, 16)
	if _, err := rand.Read(nonceBytes); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	id := hex.EncodeToString(nonceBytes)

	if platform == "" {
		platform = "mining_pool"
	}

	now := s.now().UTC()
	ch := core.Challenge{
		ID:        id,
		Message:   canonicalMessage(platform, id, now),
		Platform:  platform,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.challengeTTL),
		State:     core.ChallengePending,
	}

	if err := s.store.Create(ctx, ch); err != nil {
		return nil, fmt.Errorf("failed to store challenge: %w", err)
	}

	payload, err := json.Marshal(QRPayload{
		VerifyURL:   s.verifyURL,
		ChallengeID: ch.ID,
		Message:     ch.Message,
		ExpiresAt:   ch.ExpiresAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build qr payload: %w", err)
	}

	return &StartAuthResult{Challenge: ch, QRPayload: string(payload)}, nil
}

// CompleteAuthResult carries the issued session after a verified login.
type CompleteAuthResult struct {
	Session      core.Session
	SessionToken string
	Miner        core.MinerRecord
}

// CompleteAuth consumes the challenge, verifies the signature and, on
// success, upserts the miner record and mints a session token.
//
// The challenge is consumed before verification and stays consumed on a
// mismatch: a rejected challenge cannot be retried with a better
// signature, the caller must start over.
func (s *AuthService) CompleteAuth(ctx context.Context, walletAddress, workerName, signature, challengeID string) (*CompleteAuthResult, error) {
	ch, err := s.store.Consume(ctx, challengeID)
	if err != nil {
		return nil, err
	}

	result, err := s.verifier.Verify(walletAddress, ch.Message, signature)
	if err != nil {
		// Malformed input burns the challenge like any other
		// verification failure.
		s.recordRejection(ctx, challengeID, walletAddress)
		return nil, err
	}
	if result != ports.VerifyValid {
		s.recordRejection(ctx, challengeID, walletAddress)
		return nil, core.ErrSignatureMismatch
	}

	identity := core.VerifiedIdentity{
		WalletAddress: walletAddress,
		ChallengeID:   challengeID,
		VerifiedAt:    s.now().UTC(),
	}

	if workerName == "" {
		workerName = DefaultWorkerName
	}

	miner, err := s.registry.Upsert(ctx, walletAddress, workerName, s.scope)
	if err != nil {
		// The challenge is already burned; leave a terminal outcome so
		// pollers converge instead of reporting waiting forever.
		s.recordRejection(ctx, challengeID, walletAddress)
		return nil, err
	}

	now := s.now().UTC()
	session := core.Session{
		ID:            uuid.New().String(),
		WalletAddress: walletAddress,
		MinerID:       miner.ID,
		IssuedAt:      now,
		ExpiresAt:     now.Add(s.sessionTTL),
	}

	token, err := s.tokenizer.Issue(&session)
	if err != nil {
		s.recordRejection(ctx, challengeID, walletAddress)
		return nil, fmt.Errorf("failed to issue session token: %w", err)
	}

	out := core.Outcome{
		Status:        core.OutcomeAuthenticated,
		WalletAddress: walletAddress,
		SessionToken:  token,
		RecordedAt:    now,
	}
	if err := s.store.RecordOutcome(ctx, challengeID, out); err != nil {
		log.Printf("warning: failed to record auth outcome for challenge %s: %v", challengeID, err)
	}

	if err := s.eventPub.PublishAuthenticated(ctx, walletAddress, miner.ID, challengeID); err != nil {
		// The session is already issued; event delivery is best effort.
		log.Printf("warning: failed to publish authenticated event: %v", err)
	}

	log.Printf("wallet %s verified challenge %s at %s", identity.WalletAddress, identity.ChallengeID, identity.VerifiedAt.Format(time.RFC3339))

	return &CompleteAuthResult{Session: session, SessionToken: token, Miner: *miner}, nil
}

// PollState is the status reported to a polling dashboard.
type PollState string

const (
	PollWaiting       PollState = "waiting"
	PollAuthenticated PollState = "authenticated"
	PollRejected      PollState = "rejected"
	PollExpired       PollState = "expired"
)

// AuthPollResult is the answer to a poll query.
type AuthPollResult struct {
	Status        PollState
	WalletAddress string
	SessionToken  string
}

// PollStatus reports where a challenge is in its lifecycle. Clients are
// expected to poll every few seconds with a bounded attempt count; the
// protocol never holds a request open waiting for the wallet.
func (s *AuthService) PollStatus(ctx context.Context, challengeID string) (*AuthPollResult, error) {
	ch, err := s.store.Peek(ctx, challengeID)
	if err != nil {
		return nil, err
	}

	switch ch.State {
	case core.ChallengePending:
		return &AuthPollResult{Status: PollWaiting}, nil

	case core.ChallengeExpired:
		return &AuthPollResult{Status: PollExpired}, nil

	case core.ChallengeConsumed:
		out, err := s.store.Outcome(ctx, challengeID)
		if errors.Is(err, core.ErrChallengeNotFound) {
			// Consumed but no terminal outcome recorded yet: a verify
			// request is mid-flight.
			return &AuthPollResult{Status: PollWaiting}, nil
		}
		if err != nil {
			return nil, err
		}
		if out.Status == core.OutcomeAuthenticated {
			return &AuthPollResult{
				Status:        PollAuthenticated,
				WalletAddress: out.WalletAddress,
				SessionToken:  out.SessionToken,
			}, nil
		}
		return &AuthPollResult{Status: PollRejected}, nil

	default:
		return nil, fmt.Errorf("challenge %s in unknown state %q", challengeID, ch.State)
	}
}

// ValidateSession verifies a session token for protected endpoints.
func (s *AuthService) ValidateSession(ctx context.Context, token string) (*core.Session, error) {
	return s.tokenizer.Validate(token)
}

func (s *AuthService) recordRejection(ctx context.Context, challengeID, walletAddress string) {
	out := core.Outcome{
		Status:        core.OutcomeRejected,
		WalletAddress: walletAddress,
		RecordedAt:    s.now().UTC(),
	}
	if err := s.store.RecordOutcome(ctx, challengeID, out); err != nil {
		log.Printf("warning: failed to record rejection for challenge %s: %v", challengeID, err)
	}
	if err := s.eventPub.PublishRejected(ctx, walletAddress, challengeID); err != nil {
		log.Printf("warning: failed to publish rejected event: %v", err)
	}
}

func canonicalMessage(platform, id string, issued time.Time) string {
	return fmt.Sprintf("%s login:\nnonce: %s\nissued: %s", platform, id, issued.Format(time.RFC3339))
}
