package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/blgvbtc/poolauth/core"
	"github.com/blgvbtc/poolauth/ports"
)

// retention keeps consumed challenges and outcomes around after expiry so
// the polling path can still observe terminal states.
const retention = 15 * time.Minute

// RedisStore is a Redis implementation of the ChallengeStore interface
// for multi-instance deployments.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a new Redis challenge store.
func NewRedisStore(client *redis.Client) ports.ChallengeStore {
	return &RedisStore{
		client: client,
		prefix: "poolauth:",
	}
}

func (s *RedisStore) challengeKey(id string) string { return s.prefix + "challenge:" + id }
func (s *RedisStore) consumedKey(id string) string  { return s.prefix + "consumed:" + id }
func (s *RedisStore) outcomeKey(id string) string   { return s.prefix + "outcome:" + id }

// Create stores the challenge payload with a TTL covering its lifetime
// plus the poll retention window.
func (s *RedisStore) Create(ctx context.Context, ch core.Challenge) error {
	payload, err := json.Marshal(ch)
	if err != nil {
		return fmt.Errorf("marshal challenge: %w", err)
	}

	ttl := time.Until(ch.ExpiresAt) + retention
	if err := s.client.Set(ctx, s.challengeKey(ch.ID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", core.ErrStorageUnavailable, err)
	}
	return nil
}

// Consume claims the single-winner consumed marker with SET NX, then
// checks expiry. Losing the SET NX race maps to ErrChallengeConsumed, so
// at most one caller ever proceeds for a given id.
func (s *RedisStore) Consume(ctx context.Context, id string) (*core.Challenge, error) {
	ch, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	won, err := s.client.SetNX(ctx, s.consumedKey(id), "1", time.Until(ch.ExpiresAt)+retention).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStorageUnavailable, err)
	}
	if !won {
		return nil, core.ErrChallengeConsumed
	}

	if ch.Expired(time.Now()) {
		// Release the marker so later callers see expired, not consumed.
		s.client.Del(ctx, s.consumedKey(id))
		return nil, core.ErrChallengeExpired
	}

	prior := *ch
	ch.State = core.ChallengeConsumed
	payload, err := json.Marshal(ch)
	if err != nil {
		return nil, fmt.Errorf("marshal challenge: %w", err)
	}
	if err := s.client.Set(ctx, s.challengeKey(id), payload, retention).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStorageUnavailable, err)
	}

	return &prior, nil
}

// Peek returns the stored challenge without mutating it.
func (s *RedisStore) Peek(ctx context.Context, id string) (*core.Challenge, error) {
	ch, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if ch.State == core.ChallengePending && ch.Expired(time.Now()) {
		ch.State = core.ChallengeExpired
	}
	return ch, nil
}

// RecordOutcome stores the terminal result keyed by challenge id.
func (s *RedisStore) RecordOutcome(ctx context.Context, id string, out core.Outcome) error {
	payload, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}
	if err := s.client.Set(ctx, s.outcomeKey(id), payload, retention).Err(); err != nil {
		return fmt.Errorf("%w: %v", core.ErrStorageUnavailable, err)
	}
	return nil
}

// Outcome returns the recorded result for a challenge id.
func (s *RedisStore) Outcome(ctx context.Context, id string) (*core.Outcome, error) {
	payload, err := s.client.Get(ctx, s.outcomeKey(id)).Bytes()
	if err == redis.Nil {
		return nil, core.ErrChallengeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStorageUnavailable, err)
	}

	var out core.Outcome
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("unmarshal outcome: %w", err)
	}
	return &out, nil
}

func (s *RedisStore) load(ctx context.Context, id string) (*core.Challenge, error) {
	payload, err := s.client.Get(ctx, s.challengeKey(id)).Bytes()
	if err == redis.Nil {
		return nil, core.ErrChallengeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStorageUnavailable, err)
	}

	var ch core.Challenge
	if err := json.Unmarshal(payload, &ch); err != nil {
		return nil, fmt.Errorf("unmarshal challenge: %w", err)
	}
	return &ch, nil
}
