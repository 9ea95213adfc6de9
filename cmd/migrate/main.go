package main

import (
	"database/sql"
	"fmt"
	"io/fs"
	"os"

	_ "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"nutribot/internal/storage/pg"
	"nutribot/migrations"
)

var logger *zap.Logger

func main() {
	logger, _ = zap.NewDevelopment()
	defer logger.Sync() //nolint:errcheck

	if err := godotenv.Load(); err != nil {
		logger.Info(".env file not found, using existing environment variables")
	}

	rootCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage Postgres and ClickHouse schema migrations",
	}
	rootCmd.PersistentFlags().String("db", "postgres", "Target database: postgres or clickhouse")

	rootCmd.AddCommand(
		gooseCmd("up", "Apply pending migrations", func(db *sql.DB, dir string) error {
			return goose.Up(db, dir)
		}),
		gooseCmd("down", "Roll back the last migration", func(db *sql.DB, dir string) error {
			return goose.Down(db, dir)
		}),
		gooseCmd("status", "Show migration status", func(db *sql.DB, dir string) error {
			return goose.Status(db, dir)
		}),
		gooseCmd("version", "Print the current schema version", func(db *sql.DB, _ string) error {
			version, err := goose.GetDBVersion(db)
			if err != nil {
				return err
			}
			logger.Info("Current migration version", zap.Int64("version", version))
			return nil
		}),
		createCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// target resolves the driver connection and embedded migrations of one database
type target struct {
	dialect string
	dir     string
	fsys    fs.FS
	open    func() (*sql.DB, error)
}

func resolveTarget(name string) (target, error) {
	switch name {
	case "postgres":
		return target{
			dialect: "postgres",
			dir:     "postgres",
			fsys:    migrations.Postgres,
			open: func() (*sql.DB, error) {
				url := os.Getenv("DATABASE_URL")
				if url == "" {
					return nil, fmt.Errorf("DATABASE_URL is not set")
				}
				return pg.OpenSQL(url)
			},
		}, nil
	case "clickhouse":
		return target{
			dialect: "clickhouse",
			dir:     "clickhouse",
			fsys:    migrations.ClickHouse,
			open: func() (*sql.DB, error) {
				return sql.Open("clickhouse", clickHouseDSN())
			},
		}, nil
	default:
		return target{}, fmt.Errorf("unknown database %q, expected postgres or clickhouse", name)
	}
}

func clickHouseDSN() string {
	dsn := fmt.Sprintf("clickhouse://%s:%s@%s:%s/%s?dial_timeout=10s&max_execution_time=60",
		getEnv("CLICKHOUSE_USER", "default"),
		getEnv("CLICKHOUSE_PASSWORD", ""),
		getEnv("CLICKHOUSE_HOST", "localhost"),
		getEnv("CLICKHOUSE_PORT", "9000"),
		getEnv("CLICKHOUSE_DATABASE", "default"),
	)
	if getEnv("CLICKHOUSE_USE_TLS", "false") == "true" {
		dsn += "&secure=true"
	}
	return dsn
}

func gooseCmd(use, short string, run func(db *sql.DB, dir string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("db")
			t, err := resolveTarget(name)
			if err != nil {
				return err
			}

			db, err := t.open()
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer db.Close()

			if err := db.Ping(); err != nil {
				return fmt.Errorf("failed to ping database: %w", err)
			}
			logger.Info("Connected", zap.String("db", name))

			goose.SetBaseFS(t.fsys)
			if err := goose.SetDialect(t.dialect); err != nil {
				return fmt.Errorf("failed to set dialect: %w", err)
			}

			logger.Info("Running migrations", zap.String("command", use), zap.String("db", name))
			if err := run(db, t.dir); err != nil {
				return fmt.Errorf("migrate %s: %w", use, err)
			}
			logger.Info("Done", zap.String("command", use))
			return nil
		},
	}
}

// createCmd writes a new SQL migration file into the source tree
func createCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new SQL migration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("db")
			t, err := resolveTarget(name)
			if err != nil {
				return err
			}
			dir, _ := cmd.Flags().GetString("dir")
			if dir == "" {
				dir = "./migrations/" + t.dir
			}

			if err := goose.Create(nil, dir, args[0], "sql"); err != nil {
				return fmt.Errorf("failed to create migration: %w", err)
			}
			logger.Info("Created migration", zap.String("name", args[0]), zap.String("dir", dir))
			return nil
		},
	}
	cmd.Flags().String("dir", "", "Migrations directory (default ./migrations/<db>)")
	return cmd
}

// getEnv retrieves environment variable or returns default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
