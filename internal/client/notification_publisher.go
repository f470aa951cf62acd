package client

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/parishsoft/be-certificates/internal/ledger"
)

// NotificationPublisher publishes certificate workflow events to NATS for
// consumption by the notifications service.
//
// Subject convention: notifications.certificates.<event_type>
// Event types: request_submitted, request_approved, request_rejected,
//
//	certificate_ready
//
// All publish operations are non-fatal — errors are logged but never
// propagated to the caller, so notification failures never interrupt
// approval operations.
type NotificationPublisher struct {
	nc  *nats.Conn
	log zerolog.Logger
}

// NotificationEvent is the JSON schema published to NATS.
type NotificationEvent struct {
	EventType string         `json:"event_type"`
	RequestID string         `json:"request_id"`
	MemberID  string         `json:"member_id"`
	ActorName string         `json:"actor_name"`
	ActorRole string         `json:"actor_role"`
	Status    string         `json:"status"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// NewNotificationPublisher connects to NATS. An empty URL returns a disabled
// publisher whose publish calls are no-ops.
func NewNotificationPublisher(natsURL string, log zerolog.Logger) (*NotificationPublisher, error) {
	if natsURL == "" {
		return &NotificationPublisher{log: log}, nil
	}

	nc, err := nats.Connect(natsURL,
		nats.Name("be-certificates"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return &NotificationPublisher{nc: nc, log: log}, nil
}

// Close drains the NATS connection.
func (p *NotificationPublisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
	}
}

// PublishRequestEvent publishes a certificate workflow event.
// Subject: notifications.certificates.<eventType>
func (p *NotificationPublisher) PublishRequestEvent(eventType string, req *ledger.CertificateRequest, actor ledger.Actor, payload map[string]any) {
	if p.nc == nil {
		return
	}

	event := &NotificationEvent{
		EventType: eventType,
		RequestID: req.ID,
		MemberID:  req.MemberID,
		ActorName: actor.Name,
		ActorRole: string(actor.Role),
		Status:    string(ledger.DeriveStatus(req)),
		Payload:   payload,
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.log.Warn().Err(err).Str("event_type", eventType).Msg("notification: failed to marshal event")
		return
	}

	subject := fmt.Sprintf("notifications.certificates.%s", eventType)
	if err := p.nc.Publish(subject, data); err != nil {
		p.log.Warn().Err(err).
			Str("subject", subject).
			Str("request_id", req.ID).
			Msg("notification: failed to publish NATS event (non-fatal)")
		return
	}

	p.log.Debug().
		Str("subject", subject).
		Str("request_id", req.ID).
		Msg("notification: event published")
}
