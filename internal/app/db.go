package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	"github.com/uptrace/opentelemetry-go-extra/otelsqlx"
	"go.opentelemetry.io/otel/attribute"
)

const (
	dbDriverName     = "postgres"
	dbPingTimeout    = 5 * time.Second
	dbMaxOpenConns   = 10
	dbMaxIdleConns   = 5
	dbConnMaxIdleFor = 5 * time.Minute
)

// openDB opens an instrumented Postgres handle. Every query becomes a span
// carrying the whitespace-normalized statement.
func openDB(ctx context.Context, target dbTarget) (*sqlx.DB, error) {
	db, err := otelsqlx.Open(dbDriverName, target.DSN,
		otelsql.WithAttributes(attribute.String("db.system", "postgresql")),
		otelsql.WithDBName(target.Name),
		otelsql.WithQueryFormatter(formatDBQueryForTrace),
	)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(dbMaxOpenConns)
	db.SetMaxIdleConns(dbMaxIdleConns)
	db.SetConnMaxIdleTime(dbConnMaxIdleFor)

	pingCtx, cancel := context.WithTimeout(ctx, dbPingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	otelsql.ReportDBStatsMetrics(db.DB, otelsql.WithDBName(target.Name))
	return db, nil
}
