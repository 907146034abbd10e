package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/example/jennys-storefront/internal/analytics"
	"github.com/example/jennys-storefront/internal/api"
	"github.com/example/jennys-storefront/internal/auth"
	"github.com/example/jennys-storefront/internal/checkout"
	"github.com/example/jennys-storefront/internal/config"
	"github.com/example/jennys-storefront/internal/domain/cart"
	"github.com/example/jennys-storefront/internal/domain/order"
	"github.com/example/jennys-storefront/internal/domain/product"
	"github.com/example/jennys-storefront/internal/domain/shipping"
	"github.com/example/jennys-storefront/internal/infrastructure/kafka"
	"github.com/example/jennys-storefront/internal/infrastructure/kv"
	"github.com/example/jennys-storefront/internal/infrastructure/store"
	"github.com/example/jennys-storefront/internal/logging"
	"github.com/example/jennys-storefront/internal/notify"
	"github.com/example/jennys-storefront/internal/payment"
	"github.com/example/jennys-storefront/internal/projection"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("api stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		eventStore store.EventStoreInterface
		readStore  store.ReadStoreInterface
		projector  *projection.Projector
		consumer   *kafka.Consumer
	)

	if cfg.DatabaseURL == "" {
		rs := store.NewReadStore()
		projector = projection.NewProjector(rs, logger)
		readStore = rs
		eventStore = store.NewEventStore(projector, logger)
		logger.Info("using in-memory event store")
	} else {
		db, err := store.ConnectPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := store.Migrate(db); err != nil {
			return err
		}

		rs := store.NewPostgresReadStore(db)
		projector = projection.NewProjector(rs, logger)
		readStore = rs

		var publisher store.Publisher = projector
		if cfg.KafkaEnabled {
			producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
			defer producer.Close()
			publisher = producer
			consumer = kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, "api-projector", logger)
			defer consumer.Close()
		}
		eventStore = store.NewPostgresEventStore(db, publisher, logger)
		logger.Info("using postgres event store", zap.Bool("kafka", cfg.KafkaEnabled))
	}

	storage, err := cartStorage(ctx, cfg)
	if err != nil {
		return err
	}

	policy := shipping.Policy{
		DomesticCountry:  cfg.ShippingDomesticCountry,
		DomesticFee:      cfg.ShippingDomesticFee,
		InternationalFee: cfg.ShippingInternationalFee,
	}

	products := product.NewService(eventStore)
	orders := order.NewService(eventStore, logger)
	carts := cart.NewService(storage, logger)
	notifications := notify.NewHub(cfg.NotifyDuration, logger)
	capturer := payment.NewHTTPCapturer(payment.CapturerConfig{
		BaseURL:     cfg.PaymentAPIURL,
		AccessToken: cfg.PaymentAccessToken,
		LocationID:  cfg.PaymentLocationID,
		Timeout:     cfg.PaymentTimeout,
	}, &http.Client{Timeout: cfg.PaymentTimeout}, logger)
	checkoutSvc := checkout.NewService(carts, capturer, orders, notifications,
		func(token string) payment.Widget { return payment.NewClientTokenWidget(token) },
		checkout.Config{
			Currency:      cfg.Currency,
			ApplicationID: cfg.PaymentApplicationID,
			LocationID:    cfg.PaymentLocationID,
			Shipping:      policy,
		}, logger)

	// Replay runs in the background so the API answers with loading
	// placeholders until the read side has caught up.
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := projector.Replay(ctx, eventStore); err != nil {
			logger.Error("replay failed", zap.Error(err))
			return
		}
		if consumer == nil {
			return
		}
		logger.Info("starting kafka consumer")
		if err := consumer.Consume(ctx, projector.HandleEvent); err != nil && ctx.Err() == nil {
			logger.Error("projector consumer stopped", zap.Error(err))
		}
	}()

	handlers := api.NewHandlers(api.HandlersConfig{
		Products:      products,
		Orders:        orders,
		Carts:         carts,
		Checkout:      checkoutSvc,
		Analytics:     analytics.NewService(readStore, logger),
		Notifications: notifications,
		ReadStore:     readStore,
		Shipping:      policy,
		Logger:        logger,
	})
	router := api.NewRouter(api.RouterConfig{
		Handlers: handlers,
		Verifier: auth.NewVerifier(cfg.JWTSecret, ""),
		Logger:   logger,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server started", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			stop()
			wg.Wait()
			return err
		}
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown", zap.Error(err))
	}
	wg.Wait()
	return nil
}

func cartStorage(ctx context.Context, cfg *config.Config) (cart.Storage, error) {
	switch cfg.CartBackend {
	case config.CartBackendRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, err
		}
		return kv.NewRedis(client, cfg.CartTTL), nil
	case config.CartBackendDynamoDB:
		client, err := kv.NewDynamoClient(ctx, cfg.AWSRegion, cfg.DynamoDBEndpoint)
		if err != nil {
			return nil, err
		}
		return kv.NewDynamo(client, cfg.DynamoDBCartTable), nil
	default:
		return kv.NewMemory(), nil
	}
}
