package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/blgvbtc/poolauth/ports"
)

const (
	// TopicAuthenticated carries successful authentications.
	TopicAuthenticated = "pool.auth.authenticated"

	// TopicRejected carries signature-mismatch rejections.
	TopicRejected = "pool.auth.rejected"
)

// AuthEvent is the payload published for terminal auth outcomes.
type AuthEvent struct {
	WalletAddress string    `json:"wallet_address"`
	MinerID       string    `json:"miner_id,omitempty"`
	ChallengeID   string    `json:"challenge_id"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill.
type WatermillPublisher struct {
	publisher message.Publisher
}

// NewWatermillPublisher creates a new Watermill publisher.
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{publisher: publisher}
}

// PublishAuthenticated publishes a successful authentication event.
func (p *WatermillPublisher) PublishAuthenticated(ctx context.Context, walletAddress, minerID, challengeID string) error {
	return p.publish(TopicAuthenticated, AuthEvent{
		WalletAddress: walletAddress,
		MinerID:       minerID,
		ChallengeID:   challengeID,
		OccurredAt:    time.Now().UTC(),
	})
}

// PublishRejected publishes a signature-mismatch rejection event.
func (p *WatermillPublisher) PublishRejected(ctx context.Context, walletAddress, challengeID string) error {
	return p.publish(TopicRejected, AuthEvent{
		WalletAddress: walletAddress,
		ChallengeID:   challengeID,
		OccurredAt:    time.Now().UTC(),
	})
}

func (p *WatermillPublisher) publish(topic string, event AuthEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(event.ChallengeID, payload)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}
