package telemetry

import (
	"context"
	"fmt"
	"time"

	"chat-room/internal/logging"
)

// Publisher delivers audit envelopes to a broker.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

type AuditEmitter struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
	now         func() time.Time
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
	Level     string `json:"level"`
	Text      string `json:"text"`
	Action    string `json:"action,omitempty"`
	MessageID int64  `json:"message_id,omitempty"`
	ConnID    string `json:"conn_id,omitempty"`
}

// Audit actions.
const (
	ActionMessageSent    = "message_sent"
	ActionMessageDeleted = "message_deleted"
	ActionConnected      = "ws_connect"
	ActionDisconnected   = "ws_disconnect"
	ActionSignedOut      = "signed_out"
)

func NewAuditEmitter(publisher Publisher, routingKey, service, environment string) *AuditEmitter {
	return &AuditEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
		now:         time.Now,
	}
}

// Emit publishes a free-form audit entry. An empty userID is left out.
func (e *AuditEmitter) Emit(ctx context.Context, level, text, requestID, userID string) {
	e.emit(ctx, requestID, userID, AuditPayload{Level: level, Text: text})
}

// Record publishes an audit entry for a chat action.
func (e *AuditEmitter) Record(ctx context.Context, action, requestID, userID string, payload AuditPayload) {
	payload.Action = action
	if payload.Level == "" {
		payload.Level = "info"
	}
	if payload.Text == "" {
		payload.Text = describe(action, payload)
	}
	e.emit(ctx, requestID, userID, payload)
}

func (e *AuditEmitter) emit(ctx context.Context, requestID, userID string, payload AuditPayload) {
	if e == nil || e.publisher == nil {
		return
	}

	log := logging.Ctx(ctx)
	log.Debug().
		Str("level_audit", payload.Level).
		Str("action", payload.Action).
		Str(logging.FieldRequestID, requestID).
		Msg("audit emit")

	envelope := AuditEnvelope{
		SchemaVersion: 1,
		EventType:     "audit_log",
		OccurredAt:    e.now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     requestID,
		Payload:       payload,
	}
	if userID != "" {
		envelope.UserID = &userID
	}

	if err := e.publisher.Publish(ctx, e.routingKey, envelope); err != nil {
		log.Warn().Err(err).Msg("audit publish failed")
	}
}

func describe(action string, p AuditPayload) string {
	switch action {
	case ActionMessageSent:
		return "message sent"
	case ActionMessageDeleted:
		return fmt.Sprintf("message %d deleted", p.MessageID)
	case ActionConnected:
		return "websocket connected"
	case ActionDisconnected:
		return "websocket disconnected"
	case ActionSignedOut:
		return "signed out"
	default:
		return action
	}
}
