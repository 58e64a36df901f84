package broker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"storefront/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedMessage struct {
	key   string
	event interface{}
}

type recordingPublisher struct {
	messages []recordedMessage
}

func (r *recordingPublisher) Publish(_ context.Context, key string, event interface{}) error {
	r.messages = append(r.messages, recordedMessage{key: key, event: event})
	return nil
}

func sampleOrder() *models.Order {
	return &models.Order{
		Meta: models.Meta{ID: "7"},
		Items: []models.OrderItem{
			{ProductID: "1", Quantity: 2, Product: models.ProductSnapshot{ID: "1", Name: "Widget", Price: 2.5}},
			{ProductID: "3", Quantity: 1, Product: models.ProductSnapshot{ID: "3", Name: "Gadget", Price: 10}},
		},
		Total:         15,
		Status:        models.OrderStatusShipped,
		PaymentStatus: models.PaymentStatusPaid,
	}
}

func TestEventPublisher_OrderCreated(t *testing.T) {
	rec := &recordingPublisher{}
	ep := NewEventPublisher(rec)

	require.NoError(t, ep.PublishOrderCreated(context.Background(), sampleOrder()))

	require.Len(t, rec.messages, 1)
	assert.Equal(t, "order-7", rec.messages[0].key)

	event, ok := rec.messages[0].event.(*models.OrderCreatedEvent)
	require.True(t, ok)
	assert.Equal(t, models.EventTypeOrderCreated, event.EventType)
	assert.NotEmpty(t, event.EventID)
	assert.False(t, event.Timestamp.IsZero())
	assert.Equal(t, 15.0, event.Total)
	assert.Equal(t, []models.OrderItemData{
		{ProductID: "1", Quantity: 2, UnitPrice: 2.5},
		{ProductID: "3", Quantity: 1, UnitPrice: 10},
	}, event.Items)
}

func TestEventPublisher_OrderUpdatedAndDeleted(t *testing.T) {
	rec := &recordingPublisher{}
	ep := NewEventPublisher(rec)
	ctx := context.Background()

	require.NoError(t, ep.PublishOrderUpdated(ctx, sampleOrder()))
	require.NoError(t, ep.PublishOrderDeleted(ctx, "7"))

	require.Len(t, rec.messages, 2)
	updated := rec.messages[0].event.(*models.OrderUpdatedEvent)
	assert.Equal(t, models.OrderStatusShipped, updated.Status)
	assert.Equal(t, models.PaymentStatusPaid, updated.PaymentStatus)

	deleted := rec.messages[1].event.(*models.OrderDeletedEvent)
	assert.Equal(t, models.EventTypeOrderDeleted, deleted.EventType)
	assert.Equal(t, "order-7", rec.messages[1].key)
}

func TestEventPublisher_ProductEvent(t *testing.T) {
	rec := &recordingPublisher{}
	ep := NewEventPublisher(rec)

	require.NoError(t, ep.PublishProductEvent(context.Background(), models.EventTypeProductDeleted, "4", nil))

	event := rec.messages[0].event.(*models.ProductEvent)
	assert.Equal(t, "product-4", rec.messages[0].key)
	assert.Equal(t, "4", event.ProductID)
	assert.Nil(t, event.Product)
}

func TestEventHandler_RoutesOrderCreated(t *testing.T) {
	handler := NewEventHandler()
	var got *models.OrderCreatedEvent
	handler.OnOrderCreated(func(_ context.Context, event *models.OrderCreatedEvent) error {
		got = event
		return nil
	})

	local := NewLocalPublisher(handler)
	require.NoError(t, NewEventPublisher(local).PublishOrderCreated(context.Background(), sampleOrder()))

	require.NotNil(t, got)
	assert.Equal(t, "7", got.OrderID)
	assert.Len(t, got.Items, 2)
}

func TestEventHandler_IgnoresOtherTypes(t *testing.T) {
	handler := NewEventHandler()
	called := false
	handler.OnOrderCreated(func(context.Context, *models.OrderCreatedEvent) error {
		called = true
		return nil
	})

	err := NewEventPublisher(NewLocalPublisher(handler)).PublishOrderDeleted(context.Background(), "1")
	require.NoError(t, err)
	assert.False(t, called)
}

func TestEventHandler_PropagatesHandlerError(t *testing.T) {
	handler := NewEventHandler()
	handler.OnOrderCreated(func(context.Context, *models.OrderCreatedEvent) error {
		return errors.New("boom")
	})

	err := NewEventPublisher(NewLocalPublisher(handler)).PublishOrderCreated(context.Background(), sampleOrder())
	assert.EqualError(t, err, "boom")
}

func TestEventHandler_RejectsMalformedMessage(t *testing.T) {
	err := NewEventHandler().HandleMessage(context.Background(), kafka.Message{Value: []byte("not json")})
	assert.Error(t, err)
}

func TestEventHandler_DecodesProducerPayload(t *testing.T) {
	handler := NewEventHandler()
	var got *models.OrderCreatedEvent
	handler.OnOrderCreated(func(_ context.Context, event *models.OrderCreatedEvent) error {
		got = event
		return nil
	})

	rec := &recordingPublisher{}
	require.NoError(t, NewEventPublisher(rec).PublishOrderCreated(context.Background(), sampleOrder()))
	value, err := json.Marshal(rec.messages[0].event)
	require.NoError(t, err)

	require.NoError(t, handler.HandleMessage(context.Background(), kafka.Message{Value: value}))
	assert.Equal(t, rec.messages[0].event.(*models.OrderCreatedEvent).EventID, got.EventID)
}
