package ch

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/pressly/goose/v3"

	"nutribot/migrations"
)

// Migrate applies the embedded ClickHouse migrations
func Migrate(ctx context.Context, host string, port int, database, user, password string, useTLS bool) error {
	db := clickhouse.OpenDB(connOptions(host, port, database, user, password, useTLS))
	defer db.Close()

	goose.SetBaseFS(migrations.ClickHouse)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("clickhouse"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "clickhouse"); err != nil {
		return fmt.Errorf("failed to run ClickHouse migrations: %w", err)
	}
	return nil
}
