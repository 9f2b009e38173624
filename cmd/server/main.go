package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/Bassamalsaqqa/delivery-app-backend/internal/auth"
	"github.com/Bassamalsaqqa/delivery-app-backend/internal/cache"
	"github.com/Bassamalsaqqa/delivery-app-backend/internal/config"
	"github.com/Bassamalsaqqa/delivery-app-backend/internal/dispatcher"
	ordersgrpc "github.com/Bassamalsaqqa/delivery-app-backend/internal/grpc"
	h "github.com/Bassamalsaqqa/delivery-app-backend/internal/http"
	"github.com/Bassamalsaqqa/delivery-app-backend/internal/publisher"
	"github.com/Bassamalsaqqa/delivery-app-backend/internal/repository/mongostore"
	"github.com/Bassamalsaqqa/delivery-app-backend/internal/repository/sqlstore"
	"github.com/Bassamalsaqqa/delivery-app-backend/internal/service"
	"github.com/Bassamalsaqqa/delivery-app-backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	log.Info("delivery-app-backend starting...")
	var wg sync.WaitGroup

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// MongoDB: catalog, carts, users
	mongoDB, err := mongostore.ConnectMongoDB(startupCtx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mongoDB.Client().Disconnect(ctx); err != nil {
			log.Error("failed to disconnect from MongoDB", zap.Error(err))
		}
	}()
	if err := mongostore.CreateIndexes(startupCtx, mongoDB); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	log.Info("connected to MongoDB", zap.String("database", cfg.Mongo.Database))

	// SQL: orders, notifications, outbox
	store, err := sqlstore.Open(&sqlstore.Credentials{
		Driver:     cfg.SQL.Driver,
		Host:       cfg.SQL.Host,
		Port:       cfg.SQL.Port,
		User:       cfg.SQL.User,
		Password:   cfg.SQL.Password,
		DBName:     cfg.SQL.DBName,
		SQLitePath: cfg.SQL.SQLitePath,
	})
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("database migrations completed", zap.String("driver", store.Driver()))

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(startupCtx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	log.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))

	// Repositories
	products := mongostore.NewProductRepository(mongoDB)
	carts := mongostore.NewCartRepository(mongoDB)
	users := mongostore.NewUserRepository(mongoDB)
	orders := sqlstore.NewOrderRepository(store)
	notifications := sqlstore.NewNotificationRepository(store)

	// Services
	ledger := service.NewInventoryLedger(products, log)
	cartService := service.NewCartService(carts, products, cache.NewRedisCache(redisClient), log)
	sink := service.NewNotificationSink(notifications, log, cfg.Dispatch.Timeout)
	orderService := service.NewOrderService(
		orders,
		users,
		service.NewSnapshotResolver(carts, ledger, log),
		ledger,
		cartService,
		sink,
		log,
		service.OrderServiceConfig{
			StrictTransitions: cfg.Orders.StrictTransitions,
			CreateTimeout:     cfg.Orders.CreateTimeout,
		},
	)

	// Notification delivery
	notificationDispatcher, err := buildDispatcher(startupCtx, cfg, log)
	if err != nil {
		return err
	}

	backgroundCtx, backgroundCancel := context.WithCancel(context.Background())
	defer backgroundCancel()

	var outboxPublisher publisher.Publisher
	var consumer *dispatcher.Consumer
	if cfg.Kafka.Enabled() {
		outboxPublisher = publisher.NewKafkaPublisher(cfg.Kafka.Topic, cfg.Kafka.Brokers...)
		consumer = dispatcher.NewConsumer(notificationDispatcher, cfg.Kafka.Topic, cfg.Kafka.GroupID, log, cfg.Kafka.Brokers...)
		wg.Add(1)
		go func() {
			defer wg.Done()
			consumer.Run(backgroundCtx)
		}()
		log.Info("notifications routed through Kafka", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	} else {
		outboxPublisher = dispatcher.NewDirectPublisher(notificationDispatcher)
		log.Info("KAFKA_BROKERS not set, notifications dispatched in-process")
	}

	poller := publisher.NewOutboxPoller(notifications, outboxPublisher, publisher.Config{
		PollInterval:   cfg.Outbox.PollInterval,
		PurgeInterval:  cfg.Outbox.PurgeInterval,
		PublishTimeout: cfg.Dispatch.Timeout,
		Retention:      cfg.Outbox.Retention,
		BatchSize:      cfg.Outbox.BatchSize,
	}, log)
	wg.Add(1)
	go func() {
		defer wg.Done()
		poller.Run(backgroundCtx)
	}()

	// HTTP
	verifier, err := auth.NewTokenVerifier(cfg.Auth.JWTSecret)
	if err != nil {
		return err
	}
	authenticator := auth.NewAuthenticator(verifier, users)

	longestRequest := cfg.LongestRequest()
	idempotency := cache.NewIdempotencyStore(redisClient, cfg.Orders.IdempotencyTTL, longestRequest)

	router := h.NewRouter(h.Handlers{
		Orders:        h.NewOrdersHandler(orderService, idempotency, cfg.HTTP.RequestTimeout),
		Cart:          h.NewCartHandler(cartService, cfg.HTTP.RequestTimeout),
		Notifications: h.NewNotificationsHandler(sink, cfg.HTTP.RequestTimeout),
		Health:        h.NewHealthHandler(healthChecks(mongoDB, store, redisClient), 2*time.Second),
	}, authenticator.RequireAuth, auth.RequireAdmin, h.RouterConfig{
		RequestTimeout:     cfg.HTTP.RequestTimeout,
		MaxRequestBodySize: cfg.HTTP.MaxRequestBodySize,
	}, log)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: longestRequest + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// gRPC health
	lis, err := net.Listen("tcp", ":"+cfg.GRPC.Port)
	if err != nil {
		return fmt.Errorf("failed to listen on gRPC port: %w", err)
	}
	grpcServer := ordersgrpc.NewServer(log)

	serverErr := make(chan error, 2)
	go func() {
		log.Info("HTTP server listening", zap.String("port", cfg.HTTP.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- fmt.Errorf("http server error: %w", err)
		}
	}()
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			serverErr <- fmt.Errorf("grpc server error: %w", err)
		}
	}()
	grpcServer.SetServing(true)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-quit:
		log.Info("shutting down", zap.String("signal", sig.String()))
	case runErr = <-serverErr:
		log.Error("server failed, shutting down", zap.Error(runErr))
	}

	grpcServer.SetServing(false)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http server forced to shutdown", zap.Error(err))
	}
	grpcServer.GracefulStop()
	backgroundCancel()

	doneChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(doneChan)
	}()

	select {
	case <-doneChan:
		log.Info("background workers stopped cleanly")
	case <-shutdownCtx.Done():
		log.Warn("background workers didn't stop in time")
	}

	if consumer != nil {
		consumer.Close()
	}
	if err := outboxPublisher.Close(); err != nil {
		log.Error("failed to close outbox publisher", zap.Error(err))
	}

	log.Info("server exited")
	return runErr
}

// buildDispatcher enables every delivery channel that has credentials.
func buildDispatcher(ctx context.Context, cfg *config.Config, log *zap.Logger) (*dispatcher.Dispatcher, error) {
	var channels []dispatcher.Channel

	if cfg.Push.Enabled() {
		client, err := dispatcher.NewFirebaseMessaging(ctx, cfg.Push.FirebaseProjectID, cfg.Push.CredentialsFile)
		if err != nil {
			return nil, err
		}
		channels = append(channels, dispatcher.NewPushChannel(client, log))
	}
	if cfg.Email.Enabled() {
		channels = append(channels, dispatcher.NewEmailChannel(dispatcher.NewSendGridClient(cfg.Email.SendGridAPIKey), cfg.Email.From))
	}

	d := dispatcher.New(cfg.Dispatch.Timeout, log, channels...)
	if len(d.Channels()) == 0 {
		log.Warn("no notification channels configured, notifications are stored only")
	} else {
		log.Info("notification channels enabled", zap.Strings("channels", d.Channels()))
	}
	return d, nil
}

func healthChecks(mongoDB *mongo.Database, store *sqlstore.Store, redisClient *redis.Client) map[string]h.HealthCheck {
	return map[string]h.HealthCheck{
		"mongo": func(ctx context.Context) error {
			return mongoDB.Client().Ping(ctx, nil)
		},
		"sql": func(ctx context.Context) error {
			return store.DB().PingContext(ctx)
		},
		"redis": func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		},
	}
}
