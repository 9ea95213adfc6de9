package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/clickhouse"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"nutribot/internal/app"
)

func main() {
	ctx := context.Background()

	var containers []testcontainers.Container
	defer func() {
		for _, c := range containers {
			if err := c.Terminate(ctx); err != nil {
				log.Printf("Failed to terminate container: %v", err)
			}
		}
	}()

	log.Println("Starting Postgres testcontainer...")
	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("nutribot"),
		postgres.WithUsername("nutribot"),
		postgres.WithPassword("devpassword"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		log.Fatalf("Failed to start Postgres container: %v", err)
	}
	containers = append(containers, pgContainer)

	databaseURL, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		log.Fatalf("Failed to get Postgres connection string: %v", err)
	}

	log.Println("Starting Redis testcontainer...")
	redisContainer, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		log.Fatalf("Failed to start Redis container: %v", err)
	}
	containers = append(containers, redisContainer)

	redisURL, err := redisContainer.ConnectionString(ctx)
	if err != nil {
		log.Fatalf("Failed to get Redis connection string: %v", err)
	}

	log.Println("Starting ClickHouse testcontainer...")
	chContainer, err := clickhouse.Run(ctx,
		"clickhouse/clickhouse-server:latest",
		clickhouse.WithUsername("default"),
		clickhouse.WithPassword("devpassword"),
		clickhouse.WithDatabase("default"),
	)
	if err != nil {
		log.Fatalf("Failed to start ClickHouse container: %v", err)
	}
	containers = append(containers, chContainer)

	chHost, err := chContainer.Host(ctx)
	if err != nil {
		log.Fatalf("Failed to get container host: %v", err)
	}
	chPort, err := chContainer.MappedPort(ctx, "9000/tcp")
	if err != nil {
		log.Fatalf("Failed to get container port: %v", err)
	}

	log.Printf("Postgres: %s", databaseURL)
	log.Printf("Redis: %s", redisURL)
	log.Printf("ClickHouse: %s:%s", chHost, chPort.Port())

	env := map[string]string{
		"ENV":                 "development",
		"USE_MOCK_DB":         "false",
		"DATABASE_URL":        databaseURL,
		"SESSION_STORE":       "redis",
		"REDIS_URL":           redisURL,
		"CLICKHOUSE_HOST":     chHost,
		"CLICKHOUSE_PORT":     chPort.Port(),
		"CLICKHOUSE_DATABASE": "default",
		"CLICKHOUSE_USER":     "default",
		"CLICKHOUSE_PASSWORD": "devpassword",
		"CLICKHOUSE_USE_TLS":  "false",
		"WEBHOOK_MODE":        "false",
	}
	for k, v := range env {
		os.Setenv(k, v)
	}
	if os.Getenv("PORT") == "" {
		os.Setenv("PORT", "8080")
	}

	if os.Getenv("TELEGRAM_BOT_TOKEN") == "" {
		log.Println("⚠️  TELEGRAM_BOT_TOKEN not set. Please set it in your .env file or environment.")
		log.Println("   The bot will fail to start without a valid token.")
	}
	if os.Getenv("ADMIN_USER_IDS") == "" {
		log.Println("⚠️  ADMIN_USER_IDS not set. Nobody will have access to the nutritionist panel.")
	}

	log.Println("Starting application with Postgres, Redis and ClickHouse...")
	fmt.Println()

	application, err := app.New()
	if err != nil {
		log.Printf("Failed to create application: %v", err)
		return
	}

	// Run blocks until SIGINT/SIGTERM and then shuts the app down
	if err := application.Run(); err != nil {
		log.Printf("Application error: %v", err)
	}
}
