package service

import (
	"context"
	"time"

	"visa-checklist/internal/models"
)

const (
	ChecklistReadyMessage = "checklist-ready"
	messageTTL            = 10 * time.Minute
)

// Notifier tells waiting workflows that a run has finished.
type Notifier interface {
	ChecklistFinished(ctx context.Context, applicationID string, status models.ChecklistStatus, aiFallbackUsed bool) error
}

// MessagePublisher is satisfied by *camunda.Client.
type MessagePublisher interface {
	PublishMessage(ctx context.Context, name, correlationKey string, ttl time.Duration, vars map[string]interface{}) error
}

// ZeebeNotifier publishes a checklist-ready message correlated by
// application id.
type ZeebeNotifier struct {
	publisher MessagePublisher
}

func NewZeebeNotifier(publisher MessagePublisher) *ZeebeNotifier {
	return &ZeebeNotifier{publisher: publisher}
}

func (n *ZeebeNotifier) ChecklistFinished(ctx context.Context, applicationID string, status models.ChecklistStatus, aiFallbackUsed bool) error {
	return n.publisher.PublishMessage(ctx, ChecklistReadyMessage, applicationID, messageTTL, map[string]interface{}{
		"applicationId":  applicationID,
		"status":         string(status),
		"aiFallbackUsed": aiFallbackUsed,
	})
}
