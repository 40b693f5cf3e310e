package ports

import "context"

// EventPublisher notifies other components about terminal auth outcomes
type EventPublisher interface {
	PublishAuthenticated(ctx context.Context, walletAddress, minerID, challengeID string) error
	PublishRejected(ctx context.Context, walletAddress, challengeID string) error
}
