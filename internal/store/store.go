// Package store is the Postgres query layer over the indexer-owned tables
// (trades, trader_stats, messages, user_stats, processor_status and the
// hyperion_* pool tables) plus the tracker-owned price and pool history
// tables. Queries are written with `?` placeholders and rebound to `$n`.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/traderadar/backend/internal/apperr"
)

type Store struct {
	db  *DB
	now func() time.Time
}

type Option func(*Store)

// WithClock replaces time.Now for window queries ("last N hours").
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

type DB struct {
	raw *sql.DB
}

type Tx struct {
	raw *sql.Tx
}

func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return db.raw.ExecContext(ctx, rebindPostgresPlaceholders(query), args...)
}

func (db *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return db.raw.QueryContext(ctx, rebindPostgresPlaceholders(query), args...)
}

func (db *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return db.raw.QueryRowContext(ctx, rebindPostgresPlaceholders(query), args...)
}

func (tx *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return tx.raw.ExecContext(ctx, rebindPostgresPlaceholders(query), args...)
}

func rebindPostgresPlaceholders(query string) string {
	var out strings.Builder
	out.Grow(len(query) + 16)

	arg := 1
	inSingleQuote := false
	for i := 0; i < len(query); i++ {
		ch := query[i]
		if ch == '\'' {
			out.WriteByte(ch)
			if inSingleQuote {
				// '' inside a literal is an escaped quote.
				if i+1 < len(query) && query[i+1] == '\'' {
					out.WriteByte(query[i+1])
					i++
					continue
				}
				inSingleQuote = false
			} else {
				inSingleQuote = true
			}
			continue
		}

		if ch == '?' && !inSingleQuote {
			out.WriteByte('$')
			out.WriteString(strconv.Itoa(arg))
			arg++
			continue
		}

		out.WriteByte(ch)
	}

	return out.String()
}

func NewStore(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, apperr.Errorf(apperr.KindConfig, "open store", "database connection string is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetConnMaxIdleTime(30 * time.Second)
	db.SetMaxIdleConns(4)
	db.SetMaxOpenConns(16)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := &Store{db: &DB{raw: db}, now: time.Now}
	for _, opt := range opts {
		opt(store)
	}
	return store, nil
}

func (s *Store) Close() error {
	return s.db.raw.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.raw.PingContext(ctx)
}

func (s *Store) WithTx(ctx context.Context, fn func(*Tx) error) error {
	raw, err := s.db.raw.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	tx := &Tx{raw: raw}
	if err := fn(tx); err != nil {
		_ = raw.Rollback()
		return err
	}
	if err := raw.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// queryErr wraps a database failure with its operation. sql.ErrNoRows
// becomes a not-found error; everything else stays internal.
func queryErr(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.E(apperr.KindNotFound, op, err)
	}
	return apperr.E(apperr.KindInternal, op, err)
}

func (s *Store) sinceUnix(hours int) int64 {
	return s.now().Add(-time.Duration(hours) * time.Hour).Unix()
}
