package worker

import (
	"context"

	"storefront/internal/broker"
	"storefront/internal/service"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// NewEventHandler wires the domain event handlers. The same handler serves
// the Kafka worker and the in-process publisher.
func NewEventHandler(inventory *service.InventoryService) *broker.EventHandler {
	eventHandler := broker.NewEventHandler()
	eventHandler.OnOrderCreated(inventory.HandleOrderCreated)
	return eventHandler
}

// InventoryWorker applies stock decrements for orders created anywhere in
// the deployment
type InventoryWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewInventoryWorker creates a new inventory worker
func NewInventoryWorker(consumer *broker.Consumer, inventory *service.InventoryService) *InventoryWorker {
	return &InventoryWorker{
		consumer:     consumer,
		eventHandler: NewEventHandler(inventory),
		logger:       util.Named("worker.inventory"),
	}
}

// Start consumes events until ctx is cancelled
func (w *InventoryWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting inventory worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *InventoryWorker) Stop() error {
	w.logger.Info("Stopping inventory worker")
	return w.consumer.Close()
}
