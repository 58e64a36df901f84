package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"storefront/config"
	"storefront/internal/api"
	"storefront/internal/broker"
	"storefront/internal/cart"
	"storefront/internal/redisclient"
	"storefront/internal/service"
	"storefront/internal/store"
	"storefront/internal/util"
	"storefront/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting storefront",
		zap.String("env", cfg.Server.Env),
		zap.String("storage", cfg.Storage.Driver))

	tp, err := util.InitTracer("storefront", cfg.Observ.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Error("Error shutting down tracer", zap.Error(err))
		}
	}()

	ctx := context.Background()
	checks := map[string]api.ReadinessCheck{}

	var redisClient *redisclient.Client
	var locker store.Locker = store.NopLocker{}
	var cartStorage cart.Storage = cart.NewFileStorage(filepath.Join(cfg.Storage.DataDir, "carts"))
	var idempotency service.IdempotencyStore
	if cfg.Redis.Enabled {
		redisClient, err = redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		logger.Info("Redis connected", zap.String("addr", cfg.Redis.Addr))

		locker = redisclient.NewLocker(redisClient, cfg.Redis.LockTTL)
		cartStorage = redisclient.NewCartStorage(redisClient, cfg.Redis.CartTTL)
		idempotency = redisClient
		checks["redis"] = redisClient.Ping
	}

	storeOpts := []store.Option{store.WithReloadOnAccess(cfg.Storage.ReloadOnAccess)}
	var productBackend, orderBackend store.Backend
	switch cfg.Storage.Driver {
	case "postgres":
		db, err := store.NewPostgresDB(cfg.Storage.DatabaseURL)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()
		logger.Info("Database connected")

		if productBackend, err = store.NewPostgresBackend(ctx, db, "products"); err != nil {
			logger.Fatal("Failed to prepare products backend", zap.Error(err))
		}
		if orderBackend, err = store.NewPostgresBackend(ctx, db, "orders"); err != nil {
			logger.Fatal("Failed to prepare orders backend", zap.Error(err))
		}
		checks["postgres"] = db.PingContext
	case "file":
		productBackend = store.NewFileBackend(filepath.Join(cfg.Storage.DataDir, "products.json"), locker)
		orderBackend = store.NewFileBackend(filepath.Join(cfg.Storage.DataDir, "orders.json"), locker)
	default:
		logger.Fatal("Unknown storage driver", zap.String("driver", cfg.Storage.Driver))
	}

	products := store.NewProductStore(productBackend, storeOpts...)
	orders := store.NewOrderStore(orderBackend, storeOpts...)
	products.Reload(ctx)
	orders.Reload(ctx)

	inventoryService := service.NewInventoryService(products, orders)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var publisher broker.Publisher
	var inventoryWorker *worker.InventoryWorker
	if cfg.Kafka.Enabled {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents)
		defer producer.Close()
		publisher = producer
		logger.Info("Kafka producer initialized", zap.Strings("brokers", cfg.Kafka.Brokers))

		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents, cfg.Kafka.ConsumerGroup)
		inventoryWorker = worker.NewInventoryWorker(consumer, inventoryService)
		go func() {
			if err := inventoryWorker.Start(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Inventory worker error", zap.Error(err))
			}
		}()
	} else {
		publisher = broker.NewLocalPublisher(worker.NewEventHandler(inventoryService))
		logger.Info("Kafka disabled, dispatching events in-process")
	}
	eventPublisher := broker.NewEventPublisher(publisher)

	productService := service.NewProductService(products, eventPublisher)
	cartService := service.NewCartService(products, cartStorage)
	orderService := service.NewOrderService(orders, products, cartService, idempotency, eventPublisher, service.CheckoutConfig{
		ShippingFlat:          cfg.Business.ShippingFlat,
		FreeShippingThreshold: cfg.Business.FreeShippingThreshold,
		TaxRate:               cfg.Business.TaxRate,
		PlaceholderImage:      cfg.Business.PlaceholderImage,
		IdempotencyTTL:        cfg.Business.IdempotencyTTL,
	})

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(productService, cartService, orderService, cfg.Admin.APIKey)
	for name, check := range checks {
		handler.AddReadinessCheck(name, check)
	}
	handler.SetupRoutes(router)

	if cfg.Admin.APIKey == "" {
		logger.Warn("ADMIN_API_KEY is empty, admin routes are unauthenticated")
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if inventoryWorker != nil {
		if err := inventoryWorker.Stop(); err != nil {
			logger.Error("Failed to stop inventory worker", zap.Error(err))
		}
	}

	logger.Info("Server exited")
}
