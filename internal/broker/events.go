package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"transaction-service/internal/models"
	"transaction-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing transaction events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

func prescriptionKey(id string) string {
	return "prescription-" + id
}

// PublishTransactionPaid publishes TransactionPaid event
func (ep *EventPublisher) PublishTransactionPaid(ctx context.Context, event *models.TransactionPaidEvent) error {
	return ep.producer.PublishEvent(ctx, prescriptionKey(event.PrescriptionID), event)
}

// PublishCommitFailed publishes CommitFailed event
func (ep *EventPublisher) PublishCommitFailed(ctx context.Context, event *models.CommitFailedEvent) error {
	return ep.producer.PublishEvent(ctx, prescriptionKey(event.PrescriptionID), event)
}

// PublishStockOrphaned publishes StockDeductionOrphaned event
func (ep *EventPublisher) PublishStockOrphaned(ctx context.Context, event *models.StockDeductionOrphanedEvent) error {
	return ep.producer.PublishEvent(ctx, prescriptionKey(event.PrescriptionID), event)
}

// PublishStockCompensated publishes StockCompensated event
func (ep *EventPublisher) PublishStockCompensated(ctx context.Context, event *models.StockCompensatedEvent) error {
	return ep.producer.PublishEvent(ctx, prescriptionKey(event.PrescriptionID), event)
}

// NoopPublisher drops every event. Used when Kafka is disabled.
type NoopPublisher struct{}

func (NoopPublisher) PublishTransactionPaid(context.Context, *models.TransactionPaidEvent) error {
	return nil
}

func (NoopPublisher) PublishCommitFailed(context.Context, *models.CommitFailedEvent) error {
	return nil
}

func (NoopPublisher) PublishStockOrphaned(context.Context, *models.StockDeductionOrphanedEvent) error {
	return nil
}

func (NoopPublisher) PublishStockCompensated(context.Context, *models.StockCompensatedEvent) error {
	return nil
}

// EventHandler handles incoming events
type EventHandler struct {
	onTransactionPaid func(context.Context, *models.TransactionPaidEvent) error
	onStockOrphaned   func(context.Context, *models.StockDeductionOrphanedEvent) error
	logger            *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnTransactionPaid registers a handler for TransactionPaid events
func (eh *EventHandler) OnTransactionPaid(handler func(context.Context, *models.TransactionPaidEvent) error) {
	eh.onTransactionPaid = handler
}

// OnStockOrphaned registers a handler for StockDeductionOrphaned events
func (eh *EventHandler) OnStockOrphaned(handler func(context.Context, *models.StockDeductionOrphanedEvent) error) {
	eh.onStockOrphaned = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("event_type", baseEvent.EventType),
		zap.String("event_id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeTransactionPaid:
		if eh.onTransactionPaid != nil {
			var event models.TransactionPaidEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal TransactionPaid event: %w", err)
			}
			return eh.onTransactionPaid(ctx, &event)
		}

	case models.EventTypeStockDeductionOrphaned:
		if eh.onStockOrphaned != nil {
			var event models.StockDeductionOrphanedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal StockDeductionOrphaned event: %w", err)
			}
			return eh.onStockOrphaned(ctx, &event)
		}

	default:
		eh.logger.Debug("Unhandled event type", zap.String("event_type", baseEvent.EventType))
	}

	return nil
}
