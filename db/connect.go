package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Connect открывает пул и проверяет соединение, не дольше timeout.
func Connect(ctx context.Context, dsn string, timeout time.Duration) (*sqlx.DB, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to DB: %w", err)
	}
	return conn, nil
}
