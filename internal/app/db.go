package app

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	"github.com/uptrace/opentelemetry-go-extra/otelsqlx"

	_ "github.com/lib/pq"

	"github.com/riskibarqy/draftwire/internal/config"
	"github.com/riskibarqy/draftwire/internal/domain/journal"
	"github.com/riskibarqy/draftwire/internal/infrastructure/repository/postgres"
)

// openJournalDB opens the journal database with tracing instrumentation
// so flush batches show up in spans next to the frames they persist.
func openJournalDB(cfg config.Config) (*sqlx.DB, error) {
	dsn := normalizeDBURL(cfg.DBURL, cfg.DBDisablePreparedBinary)

	db, err := otelsqlx.Open("postgres", dsn,
		otelsql.WithDBSystem("postgresql"),
		otelsql.WithDBName(dbNameFromURL(cfg.DBURL)),
		otelsql.WithQueryFormatter(formatDBQueryForTrace),
	)
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping journal db: %w", err)
	}

	return db, nil
}

func postgresJournal(db *sqlx.DB) journal.Repository {
	return postgres.NewJournalRepository(db)
}
