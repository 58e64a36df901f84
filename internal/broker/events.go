package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"storefront/internal/models"
	"storefront/internal/util"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Publisher delivers a keyed event. Producer sends it to Kafka, LocalPublisher
// hands it straight to an EventHandler.
type Publisher interface {
	Publish(ctx context.Context, key string, event interface{}) error
}

// EventPublisher handles publishing domain events
type EventPublisher struct {
	publisher Publisher
	now       func() time.Time
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(publisher Publisher) *EventPublisher {
	return &EventPublisher{
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (ep *EventPublisher) base(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: ep.now(),
	}
}

// PublishProductEvent publishes a PRODUCT_* event. product is nil for deletes.
func (ep *EventPublisher) PublishProductEvent(ctx context.Context, eventType, productID string, product *models.Product) error {
	event := &models.ProductEvent{
		BaseEvent: ep.base(eventType),
		ProductID: productID,
		Product:   product,
	}
	return ep.publisher.Publish(ctx, "product-"+productID, event)
}

// PublishOrderCreated publishes OrderCreated event
func (ep *EventPublisher) PublishOrderCreated(ctx context.Context, order *models.Order) error {
	items := make([]models.OrderItemData, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, models.OrderItemData{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.Product.Price,
		})
	}

	event := &models.OrderCreatedEvent{
		BaseEvent: ep.base(models.EventTypeOrderCreated),
		OrderID:   order.ID,
		Total:     order.Total,
		Items:     items,
	}
	return ep.publisher.Publish(ctx, "order-"+order.ID, event)
}

// PublishOrderUpdated publishes OrderUpdated event
func (ep *EventPublisher) PublishOrderUpdated(ctx context.Context, order *models.Order) error {
	event := &models.OrderUpdatedEvent{
		BaseEvent:     ep.base(models.EventTypeOrderUpdated),
		OrderID:       order.ID,
		Status:        order.Status,
		PaymentStatus: order.PaymentStatus,
	}
	return ep.publisher.Publish(ctx, "order-"+order.ID, event)
}

// PublishOrderDeleted publishes OrderDeleted event
func (ep *EventPublisher) PublishOrderDeleted(ctx context.Context, orderID string) error {
	event := &models.OrderDeletedEvent{
		BaseEvent: ep.base(models.EventTypeOrderDeleted),
		OrderID:   orderID,
	}
	return ep.publisher.Publish(ctx, "order-"+orderID, event)
}

// EventHandler handles incoming events
type EventHandler struct {
	onOrderCreated func(context.Context, *models.OrderCreatedEvent) error
	logger         *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.Named("events")}
}

// OnOrderCreated registers a handler for OrderCreated events
func (eh *EventHandler) OnOrderCreated(handler func(context.Context, *models.OrderCreatedEvent) error) {
	eh.onOrderCreated = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeOrderCreated:
		if eh.onOrderCreated != nil {
			var event models.OrderCreatedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrderCreated event: %w", err)
			}
			return eh.onOrderCreated(ctx, &event)
		}

	default:
		eh.logger.Debug("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}

// LocalPublisher dispatches events to an EventHandler in the calling
// goroutine. It stands in for Kafka when no broker is configured.
type LocalPublisher struct {
	handler *EventHandler
}

// NewLocalPublisher creates a publisher delivering to handler
func NewLocalPublisher(handler *EventHandler) *LocalPublisher {
	return &LocalPublisher{handler: handler}
}

// Publish encodes the event exactly as Producer would and handles it
func (lp *LocalPublisher) Publish(ctx context.Context, key string, event interface{}) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return lp.handler.HandleMessage(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  time.Now(),
	})
}
