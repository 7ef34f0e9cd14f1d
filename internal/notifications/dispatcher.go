package notifications

import (
	"context"
	"log"
	"time"

	"matchroom-service/internal/models"
	"matchroom-service/internal/observability"
	"matchroom-service/internal/telemetry"
)

// Publisher is satisfied by the rabbitmq publisher.
type Publisher interface {
	PublishJSON(ctx context.Context, routingKey string, event interface{}, headers map[string]string) error
}

// Dispatcher publishes negotiation outcomes for the notification service,
// keyed by notification kind. Failures are logged and dropped.
type Dispatcher struct {
	publisher Publisher
	timeout   time.Duration
}

func NewDispatcher(publisher Publisher) *Dispatcher {
	return &Dispatcher{publisher: publisher, timeout: 5 * time.Second}
}

func (d *Dispatcher) Notify(ctx context.Context, n models.Notification) {
	if d == nil || d.publisher == nil {
		return
	}

	// The caller's request may finish before the broker answers.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	headers := observability.BuildHeaders(telemetry.RequestIDFromContext(ctx), "")
	if err := d.publisher.PublishJSON(pubCtx, n.Kind, n, headers); err != nil {
		observability.IncAMQPPublishError()
		log.Printf("notification dispatch failed kind=%s match_id=%d team_id=%d: %v", n.Kind, n.MatchID, n.RecipientTeamID, err)
	}
}
