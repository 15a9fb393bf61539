// Package events publishes best-effort domain events for downstream
// consumers (reporting, notifications). Publish failures are logged and
// never fail the originating request.
package events

import (
	"context"

	"github.com/peopleops/hrms-backend/pkg/logger"
	"github.com/peopleops/hrms-backend/pkg/messaging"
)

// Event types routed on the topic exchange.
const (
	EmployeeCreated = "employee.created"
	EmployeeUpdated = "employee.updated"
	PayRunGenerated = "payrun.generated"
	LeaveApproved   = "leave.approved"
	LeaveRejected   = "leave.rejected"
	LoanCompleted   = "loan.completed"
	AdvanceDeducted = "advance.deducted"
)

// Publisher emits domain events.
type Publisher interface {
	Publish(ctx context.Context, eventType string, data interface{})
}

// AMQPPublisher publishes to the RabbitMQ topic exchange.
type AMQPPublisher struct {
	pub    *messaging.Publisher
	logger *logger.Logger
}

// NewAMQPPublisher creates a publisher bound to the service exchange.
func NewAMQPPublisher(rmq *messaging.RabbitMQ, exchange string, log *logger.Logger) (*AMQPPublisher, error) {
	pub, err := messaging.NewPublisher(rmq, exchange, "hrms-backend", log)
	if err != nil {
		return nil, err
	}
	return &AMQPPublisher{pub: pub, logger: log}, nil
}

// Publish emits an event, logging on failure.
func (p *AMQPPublisher) Publish(ctx context.Context, eventType string, data interface{}) {
	if err := p.pub.Publish(ctx, eventType, data); err != nil {
		p.logger.Warn().Err(err).Str("event_type", eventType).Msg("failed to publish event")
	}
}

// NopPublisher discards events. Used when no broker is configured and in
// tests.
type NopPublisher struct{}

// Publish discards the event.
func (NopPublisher) Publish(ctx context.Context, eventType string, data interface{}) {}
