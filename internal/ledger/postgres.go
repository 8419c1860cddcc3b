package ledger

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/tendant/cdn-asset-pipeline/pkg/logger"
	"github.com/tendant/cdn-asset-pipeline/pkg/pipeline"
)

// PostgresLedger records processed sources in a table instead of renaming
// files. A source is keyed by category and file name; it is reprocessed when
// its content hash changes.
type PostgresLedger struct {
	db *sql.DB
}

// OpenPostgres connects to databaseURL and prepares the ledger table
func OpenPostgres(ctx context.Context, databaseURL string) (*PostgresLedger, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	l, err := NewPostgresLedger(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

// NewPostgresLedger creates a ledger on an open database
func NewPostgresLedger(ctx context.Context, db *sql.DB) (*PostgresLedger, error) {
	l := &PostgresLedger{db: db}

	// Create table if not exists
	if err := l.ensureTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure ledger table: %w", err)
	}

	return l, nil
}

// ensureTable creates the processed_sources table if it doesn't exist
func (l *PostgresLedger) ensureTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS processed_sources (
			category TEXT NOT NULL,
			file_name TEXT NOT NULL,
			content_hash TEXT NOT NULL,
			first_processed_at TIMESTAMPTZ DEFAULT NOW(),
			last_processed_at TIMESTAMPTZ DEFAULT NOW(),
			processed_count INTEGER DEFAULT 1,
			PRIMARY KEY (category, file_name)
		)
	`

	if _, err := l.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create processed_sources table: %w", err)
	}

	logger.Log.Debug().Msg("processed_sources table ready")
	return nil
}

// Processed reports whether src was processed with the same content hash
func (l *PostgresLedger) Processed(ctx context.Context, src pipeline.Source) (bool, error) {
	query := `SELECT content_hash FROM processed_sources WHERE category = $1 AND file_name = $2`

	var hash string
	err := l.db.QueryRowContext(ctx, query, string(src.Category), src.File).Scan(&hash)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query ledger: %w", err)
	}

	return hash == src.Hash, nil
}

// MarkProcessed upserts src with its current content hash
func (l *PostgresLedger) MarkProcessed(ctx context.Context, src pipeline.Source) error {
	query := `
		INSERT INTO processed_sources (category, file_name, content_hash, first_processed_at, last_processed_at, processed_count)
		VALUES ($1, $2, $3, NOW(), NOW(), 1)
		ON CONFLICT (category, file_name) DO UPDATE
		SET content_hash = EXCLUDED.content_hash,
		    last_processed_at = NOW(),
		    processed_count = processed_sources.processed_count + 1
	`

	if _, err := l.db.ExecContext(ctx, query, string(src.Category), src.File, src.Hash); err != nil {
		return fmt.Errorf("failed to record processed source: %w", err)
	}
	return nil
}

// Close closes the database connection
func (l *PostgresLedger) Close() error {
	return l.db.Close()
}

var _ Ledger = (*PostgresLedger)(nil)
