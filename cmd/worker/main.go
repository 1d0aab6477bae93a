package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/olamidemziyad/marketplace-cmr/internal/queue"
	"github.com/olamidemziyad/marketplace-cmr/internal/repository"
	"github.com/olamidemziyad/marketplace-cmr/internal/worker"
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

func main() {
	log.Println("notification worker starting...")

	creds := &repository.Credentials{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvInt("DB_PORT", 5432),
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", "postgres"),
		DBName:   getEnv("DB_NAME", "marketplace"),
	}

	repo, err := repository.NewRepository(creds)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer repo.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr: getEnv("REDIS_ADDR", "localhost:6379"),
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	mailer := worker.NewSMTPMailer(
		getEnv("SMTP_HOST", "localhost"),
		getEnvInt("SMTP_PORT", 587),
		getEnv("SMTP_USERNAME", ""),
		getEnv("SMTP_PASSWORD", ""),
		getEnv("SMTP_FROM", "no-reply@marketplace.cm"),
	)

	pool := worker.NewPool(
		queue.NewQueue(redisClient),
		repo,
		mailer,
		getEnvInt("WORKER_CONCURRENCY", 5),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool.Run(ctx)
	log.Println("worker exited")
}
