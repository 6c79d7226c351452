package db

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"
)

// PostgresBase держит подключение к Postgres
type PostgresBase struct {
	DB *sql.DB
}

// Connect открывает подключение к Postgres и проверяет его доступность.
// Недоступная база ретраится с ограниченным числом попыток; исчерпание
// попыток фатально для вызывающего.
func (b *PostgresBase) Connect(ctx context.Context, dsn string) error {
	if dsn == "" {
		return fmt.Errorf("POSTGRES_DSN не задан")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("ошибка подключения к Postgres: %w", err)
	}

	backoff := retry.WithMaxRetries(5, retry.NewConstant(2*time.Second))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if pingErr := db.PingContext(ctx); pingErr != nil {
			log.Printf("[DB] База недоступна, повторяем: %v", pingErr)
			return retry.RetryableError(pingErr)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return fmt.Errorf("база данных недоступна после всех попыток: %w", err)
	}

	b.DB = db
	return nil
}

// Migrate применяет goose миграции из указанной директории
func (b *PostgresBase) Migrate(dir string) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("ошибка установки диалекта goose: %w", err)
	}
	if err := goose.Up(b.DB, dir); err != nil {
		return fmt.Errorf("ошибка применения миграций: %w", err)
	}
	return nil
}

// Close закрывает подключение к базе данных
func (b *PostgresBase) Close() error {
	if b.DB != nil {
		return b.DB.Close()
	}
	return nil
}
