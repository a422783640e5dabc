package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/tesouraria/internal/ledger"
	movementStore "github.com/MrJamesThe3rd/tesouraria/internal/movement/store"
	"github.com/MrJamesThe3rd/tesouraria/internal/period"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

const selectColumns = `
	year, month, closed_at, closed_by, notes,
	opening_balance, total_income, total_expense, closing_balance
`

func scanPeriod(s scanner) (*period.Period, error) {
	var (
		year, month int
		closedAt    time.Time
		notes       sql.NullString
		opening     decimal.Decimal
		income      decimal.Decimal
		expense     decimal.Decimal
		closing     decimal.Decimal
		p           period.Period
	)

	if err := s.Scan(
		&year, &month, &closedAt, &p.ClosedBy, &notes,
		&opening, &income, &expense, &closing,
	); err != nil {
		return nil, err
	}

	closedAt = closedAt.UTC()

	p.Key = period.Key{Year: year, Month: time.Month(month)}
	p.Closed = true
	p.ClosedAt = &closedAt
	p.Notes = notes.String
	p.Figures = &period.Figures{
		Opening: opening,
		Income:  income,
		Expense: expense,
		Closing: closing,
	}

	return &p, nil
}

func (s *Store) IsClosed(ctx context.Context, key period.Key) (bool, error) {
	var closed bool

	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM periods WHERE year = $1 AND month = $2)`,
		key.Year, int(key.Month),
	).Scan(&closed)
	if err != nil {
		return false, fmt.Errorf("checking period: %w", err)
	}

	return closed, nil
}

func (s *Store) Get(ctx context.Context, key period.Key) (*period.Period, error) {
	return get(ctx, s.db, key)
}

func (s *Store) List(ctx context.Context, year int) ([]*period.Period, error) {
	query := `SELECT ` + selectColumns + `
		FROM periods
		WHERE year = $1
		ORDER BY month ASC`

	rows, err := s.db.QueryContext(ctx, query, year)
	if err != nil {
		return nil, fmt.Errorf("listing periods: %w", err)
	}
	defer rows.Close()

	var out []*period.Period

	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning period: %w", err)
		}

		out = append(out, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating periods: %w", err)
	}

	return out, nil
}

type rowQueryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func get(ctx context.Context, q rowQueryer, key period.Key) (*period.Period, error) {
	query := `SELECT ` + selectColumns + `
		FROM periods
		WHERE year = $1 AND month = $2`

	p, err := scanPeriod(q.QueryRowContext(ctx, query, key.Year, int(key.Month)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, period.ErrNotClosed
		}

		return nil, fmt.Errorf("getting period: %w", err)
	}

	return p, nil
}

type transitionTx struct {
	tx  *sql.Tx
	key period.Key
}

// BeginTransition opens a transaction holding the exclusive lock of the
// period. Writers into the period hold the shared lock, so the transition
// waits for them and blocks new ones until it ends.
func (s *Store) BeginTransition(ctx context.Context, key period.Key) (period.TransitionTx, error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transition tx: %w", err)
	}

	if _, err := dbTx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", key.LockID()); err != nil {
		dbTx.Rollback()
		return nil, fmt.Errorf("acquiring period lock: %w", err)
	}

	return &transitionTx{tx: dbTx, key: key}, nil
}

func (ptx *transitionTx) Commit() error   { return ptx.tx.Commit() }
func (ptx *transitionTx) Rollback() error { return ptx.tx.Rollback() }

// Aggregator reads the ledger on the transition's own connection.
func (ptx *transitionTx) Aggregator() period.Aggregator {
	return ledger.NewAggregator(movementStore.NewSource(ptx.tx))
}

func (ptx *transitionTx) Get(ctx context.Context) (*period.Period, error) {
	return get(ctx, ptx.tx, ptx.key)
}

func (ptx *transitionTx) Create(ctx context.Context, p *period.Period) error {
	if p.Figures == nil || p.ClosedAt == nil {
		return errors.New("creating period: snapshot is incomplete")
	}

	query := `
		INSERT INTO periods (year, month, closed_at, closed_by, notes,
			opening_balance, total_income, total_expense, closing_balance)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9)
	`

	_, err := ptx.tx.ExecContext(ctx, query,
		ptx.key.Year,
		int(ptx.key.Month),
		*p.ClosedAt,
		p.ClosedBy,
		p.Notes,
		p.Figures.Opening,
		p.Figures.Income,
		p.Figures.Expense,
		p.Figures.Closing,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return period.ErrAlreadyClosed
		}

		return fmt.Errorf("creating period: %w", err)
	}

	return nil
}

func (ptx *transitionTx) Delete(ctx context.Context) error {
	res, err := ptx.tx.ExecContext(ctx,
		`DELETE FROM periods WHERE year = $1 AND month = $2`,
		ptx.key.Year, int(ptx.key.Month),
	)
	if err != nil {
		return fmt.Errorf("deleting period: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return period.ErrNotClosed
	}

	return nil
}
