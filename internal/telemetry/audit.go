package telemetry

import (
	"context"
	"log"
	"strconv"
	"time"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

type AuditEmitter struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
}

type AuditEnvelope struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	OccurredAt    string       `json:"occurred_at"`
	Service       string       `json:"service"`
	Environment   string       `json:"environment"`
	RequestID     string       `json:"request_id"`
	UserID        *string      `json:"user_id,omitempty"`
	Payload       AuditPayload `json:"payload"`
}

type AuditPayload struct {
	Level   string `json:"level"`
	Text    string `json:"text"`
	Action  string `json:"action,omitempty"`
	MatchID int    `json:"match_id,omitempty"`
	Outcome string `json:"outcome,omitempty"`
}

func NewAuditEmitter(publisher Publisher, routingKey, service, environment string) *AuditEmitter {
	return &AuditEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
	}
}

func (e *AuditEmitter) Emit(ctx context.Context, level, text, requestID string, userID *string) {
	e.emit(ctx, requestID, userID, AuditPayload{Level: level, Text: text})
}

// Negotiation records the outcome of a match transition attempted by actorID.
func (e *AuditEmitter) Negotiation(ctx context.Context, action string, matchID, actorID int, err error) {
	payload := AuditPayload{Level: "INFO", Action: action, MatchID: matchID, Outcome: "ok", Text: action + " succeeded"}
	if err != nil {
		payload.Level = "WARN"
		payload.Outcome = "rejected"
		payload.Text = err.Error()
	}

	var userID *string
	if actorID != 0 {
		id := strconv.Itoa(actorID)
		userID = &id
	}
	e.emit(ctx, RequestIDFromContext(ctx), userID, payload)
}

func (e *AuditEmitter) emit(ctx context.Context, requestID string, userID *string, payload AuditPayload) {
	if e == nil || e.publisher == nil {
		return
	}

	log.Printf("audit emit: level=%s request_id=%s user_id=%v text=%q", payload.Level, requestID, derefString(userID), payload.Text)
	envelope := AuditEnvelope{
		SchemaVersion: 1,
		EventType:     "audit_log",
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     requestID,
		UserID:        userID,
		Payload:       payload,
	}

	if err := e.publisher.Publish(ctx, e.routingKey, envelope); err != nil {
		log.Printf("audit publish failed: %v", err)
	}
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
