package ch

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"nutribot/internal/models"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// ClickHouseDB is the analytics event log backed by ClickHouse
type ClickHouseDB struct {
	conn clickhouse.Conn
}

// NewClickHouseDB creates a new ClickHouse database connection
func NewClickHouseDB(host string, port int, database, user, password string, useTLS bool) (*ClickHouseDB, error) {
	conn, err := clickhouse.Open(connOptions(host, port, database, user, password, useTLS))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	return &ClickHouseDB{conn: conn}, nil
}

func connOptions(host string, port int, database, user, password string, useTLS bool) *clickhouse.Options {
	options := &clickhouse.Options{
		Addr:     []string{fmt.Sprintf("%s:%d", host, port)},
		Protocol: clickhouse.Native,
		Auth: clickhouse.Auth{
			Database: database,
			Username: user,
			Password: password,
		},
		DialTimeout: 10 * time.Second,
	}

	if useTLS {
		options.TLS = &tls.Config{}
	}
	return options
}

// Record appends an event; zero OccurredAt means now
func (db *ClickHouseDB) Record(ctx context.Context, event models.Event) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	err := db.conn.Exec(ctx, `INSERT INTO events (occurred_at, event_type, telegram_id, flow, value, details)
		VALUES (?, ?, ?, ?, ?, ?)`,
		event.OccurredAt, event.Type, event.TelegramID, event.Flow, event.Value, event.Details)
	if err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}
	return nil
}

// CountByType returns per-type counts since the given time
func (db *ClickHouseDB) CountByType(ctx context.Context, since time.Time) ([]models.EventCount, error) {
	rows, err := db.conn.Query(ctx, `
		SELECT event_type, count() AS cnt
		FROM events
		WHERE occurred_at >= ?
		GROUP BY event_type
		ORDER BY cnt DESC, event_type`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}
	defer rows.Close()

	var counts []models.EventCount
	for rows.Next() {
		var c models.EventCount
		if err := rows.Scan(&c.Type, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan event count: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// Close closes the database connection
func (db *ClickHouseDB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}
