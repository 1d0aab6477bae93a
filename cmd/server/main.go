package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/olamidemziyad/marketplace-cmr/domain"
	h "github.com/olamidemziyad/marketplace-cmr/internal/http"
	"github.com/olamidemziyad/marketplace-cmr/internal/provider"
	"github.com/olamidemziyad/marketplace-cmr/internal/publisher"
	"github.com/olamidemziyad/marketplace-cmr/internal/queue"
	"github.com/olamidemziyad/marketplace-cmr/internal/repository"
	"github.com/olamidemziyad/marketplace-cmr/internal/service"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		log.Fatalf("Invalid %s: %q", key, value)
	}
	return defaultValue
}

func getEnvDecimal(key, defaultValue string) decimal.Decimal {
	value := getEnv(key, defaultValue)
	d, err := decimal.NewFromString(value)
	if err != nil {
		log.Fatalf("Invalid %s: %q", key, value)
	}
	return d
}

func main() {
	log.Println("marketplace server starting...")

	// Configuration
	httpPort := getEnv("HTTP_PORT", "8080")
	requestTimeout := 30 * time.Second
	shutdownTimeout := 10 * time.Second

	// Database setup
	creds := &repository.Credentials{
		Host:              getEnv("DB_HOST", "localhost"),
		Port:              getEnvInt("DB_PORT", 5432),
		User:              getEnv("DB_USER", "postgres"),
		Password:          getEnv("DB_PASSWORD", "postgres"),
		DBName:            getEnv("DB_NAME", "marketplace"),
		MigrationsDirPath: getEnv("MIGRATIONS_PATH", "./internal/repository/migrations"),
	}

	repo, err := repository.NewRepository(creds)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer repo.Close()

	if err := repo.RunMigrations(creds); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	// Redis backs the notification job queue
	redisClient := redis.NewClient(&redis.Options{
		Addr: getEnv("REDIS_ADDR", "localhost:6379"),
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	defer redisClient.Close()
	jobs := queue.NewQueue(redisClient)

	// Mobile money provider
	pawapay := provider.NewClient(provider.Config{
		BaseURL:       getEnv("PAWAPAY_BASE_URL", "https://api.sandbox.pawapay.cloud"),
		APIToken:      getEnv("PAWAPAY_API_TOKEN", ""),
		WebhookSecret: getEnv("PAWAPAY_WEBHOOK_SECRET", ""),
	})

	fees := domain.CheckoutFees{
		ShippingFee:     getEnvDecimal("SHIPPING_FEE", "1000"),
		PlatformFeeRate: getEnvDecimal("PLATFORM_FEE_RATE", "0.10"),
	}

	checkoutService := service.NewCheckoutService(repo, repo, jobs, fees)
	orderService := service.NewOrderService(repo)
	paymentService := service.NewPaymentService(repo, repo, pawapay, repo, jobs)

	router := h.NewRouter(
		h.RouterConfig{RequestTimeout: requestTimeout},
		h.NewCheckoutHandler(checkoutService),
		h.NewOrderHandler(orderService),
		h.NewPaymentHandler(paymentService),
		h.NewWebhookHandler(paymentService, pawapay),
	)

	// Outbox poller publishes committed events to Kafka
	pollerCtx, stopPoller := context.WithCancel(context.Background())
	defer stopPoller()
	brokers := strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ",")
	poller := publisher.NewOutboxPoller(repo, brokers...)
	go poller.Run(pollerCtx)

	srv := &http.Server{
		Addr:         ":" + httpPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("server listening on :%s", httpPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server...")
	stopPoller()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	log.Println("server exited")
}
