package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/veilshare-inc/veilshare-engine/pkg/apperrors"
)

// PostgresConfig holds connection settings for the Postgres-backed ledger.
type PostgresConfig struct {
	URL             string
	MaxConnections  int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// PostgresLedger appends entries to the ledger_entries table. Commit order is
// preserved by a bigserial sequence; the table is insert-only.
type PostgresLedger struct {
	pool *pgxpool.Pool
}

// NewPostgresLedger creates a connection pool and verifies connectivity.
func NewPostgresLedger(ctx context.Context, cfg *PostgresConfig) (*PostgresLedger, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ledger database URL: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConnections
	if poolConfig.MaxConns == 0 {
		poolConfig.MaxConns = 10
	}

	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	if poolConfig.MaxConnLifetime == 0 {
		poolConfig.MaxConnLifetime = time.Hour
	}

	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	if poolConfig.MaxConnIdleTime == 0 {
		poolConfig.MaxConnIdleTime = time.Minute * 30
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create ledger connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping ledger database: %w", err)
	}

	return &PostgresLedger{pool: pool}, nil
}

func (l *PostgresLedger) Append(ctx context.Context, entry Entry) error {
	query := `
		INSERT INTO ledger_entries (channel, key, payload, hash, committed_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := l.pool.Exec(ctx, query,
		entry.Channel,
		entry.Key,
		entry.Payload,
		entry.Hash,
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to append ledger entry %s/%s: %w", entry.Channel, entry.Key, err)
	}
	return nil
}

func (l *PostgresLedger) Latest(ctx context.Context, channel, key string) (Entry, error) {
	query := `
		SELECT channel, key, payload, hash, committed_at
		FROM ledger_entries
		WHERE channel = $1 AND key = $2
		ORDER BY id DESC
		LIMIT 1`

	var entry Entry
	err := l.pool.QueryRow(ctx, query, channel, key).Scan(
		&entry.Channel,
		&entry.Key,
		&entry.Payload,
		&entry.Hash,
		&entry.Timestamp,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, apperrors.ErrNotFound
		}
		return Entry{}, fmt.Errorf("failed to read ledger entry %s/%s: %w", channel, key, err)
	}
	return entry, nil
}

func (l *PostgresLedger) History(ctx context.Context, channel, key string) ([]Entry, error) {
	query := `
		SELECT channel, key, payload, hash, committed_at
		FROM ledger_entries
		WHERE channel = $1 AND key = $2
		ORDER BY id`

	rows, err := l.pool.Query(ctx, query, channel, key)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger history %s/%s: %w", channel, key, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		if err := rows.Scan(&entry.Channel, &entry.Key, &entry.Payload, &entry.Hash, &entry.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger entries: %w", err)
	}

	if len(entries) == 0 {
		return nil, apperrors.ErrNotFound
	}
	return entries, nil
}

func (l *PostgresLedger) Close() {
	l.pool.Close()
}

var _ Ledger = (*PostgresLedger)(nil)
