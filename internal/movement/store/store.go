package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/tesouraria/internal/importer"
	"github.com/MrJamesThe3rd/tesouraria/internal/movement"
	"github.com/MrJamesThe3rd/tesouraria/internal/period"
)

const uniqueViolation = "23505"

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanMovement reads a movement row in selectColumns order.
func scanMovement(s scanner) (*movement.Movement, error) {
	var m movement.Movement

	var kind, source string

	var year, month int

	var category, sourceRef, annulReason sql.NullString

	if err := s.Scan(
		&m.ID, &kind, &m.Amount, &m.Date, &m.Description, &category,
		&year, &month, &m.ContentHash, &source, &sourceRef,
		&m.AnnulledAt, &annulReason,
		&m.CreatedAt, &m.UpdatedAt, &m.DeletedAt,
	); err != nil {
		return nil, err
	}

	m.Kind = movement.Kind(kind)
	m.Source = movement.Source(source)
	m.Category = category.String
	m.SourceRef = sourceRef.String
	m.AnnulReason = annulReason.String
	m.Period = period.Key{Year: year, Month: time.Month(month)}
	m.Date = time.Date(m.Date.Year(), m.Date.Month(), m.Date.Day(), 0, 0, 0, 0, time.UTC)

	return &m, nil
}

const selectColumns = `
	id, kind, amount, date, description, category,
	period_year, period_month, content_hash, source, source_ref,
	annulled_at, annul_reason, created_at, updated_at, deleted_at
`

const insertQuery = `
	INSERT INTO movements (kind, amount, date, description, category, period_year, period_month,
		content_hash, source, source_ref, created_at)
	VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9, NULLIF($10, ''), NOW())
`

func insertArgs(m *movement.Movement) []any {
	return []any{
		m.Kind,
		m.Amount,
		m.Date,
		m.Description,
		m.Category,
		m.Period.Year,
		int(m.Period.Month),
		m.ContentHash,
		m.Source,
		m.SourceRef,
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// lockPeriods takes the shared lock of every period touched by a write and
// re-checks, under the lock, that none of them has been closed meanwhile.
// Keys are locked in chronological order.
func lockPeriods(ctx context.Context, tx *sql.Tx, dates ...time.Time) error {
	seen := make(map[period.Key]time.Time, len(dates))
	keys := make([]period.Key, 0, len(dates))

	for _, d := range dates {
		k := period.KeyOf(d)
		if _, ok := seen[k]; ok {
			continue
		}

		seen[k] = d
		keys = append(keys, k)
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })

	for _, k := range keys {
		if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock_shared($1)", k.LockID()); err != nil {
			return fmt.Errorf("acquiring period lock %s: %w", k, err)
		}

		closed, err := isClosed(ctx, tx, k)
		if err != nil {
			return err
		}

		if closed {
			return &period.ClosedError{Key: k, Date: seen[k]}
		}
	}

	return nil
}

func isClosed(ctx context.Context, tx *sql.Tx, k period.Key) (bool, error) {
	var closed bool

	err := tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM periods WHERE year = $1 AND month = $2)`,
		k.Year, int(k.Month),
	).Scan(&closed)
	if err != nil {
		return false, fmt.Errorf("checking period %s: %w", k, err)
	}

	return closed, nil
}

func (s *Store) Create(ctx context.Context, mv *movement.Movement) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer dbTx.Rollback()

	if err := lockPeriods(ctx, dbTx, mv.Date, mv.Period.Start()); err != nil {
		return err
	}

	err = dbTx.QueryRowContext(ctx, insertQuery+" RETURNING id, created_at", insertArgs(mv)...).
		Scan(&mv.ID, &mv.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return movement.ErrDuplicate
		}

		return fmt.Errorf("creating movement: %w", err)
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("committing movement: %w", err)
	}

	return nil
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (*movement.Movement, error) {
	query := `SELECT ` + selectColumns + `
		FROM movements
		WHERE id = $1 AND deleted_at IS NULL`

	m, err := scanMovement(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, movement.ErrNotFound
		}

		return nil, fmt.Errorf("getting movement: %w", err)
	}

	return m, nil
}

func (s *Store) List(ctx context.Context, filter movement.ListFilter) ([]*movement.Movement, error) {
	query := `SELECT ` + selectColumns + `
		FROM movements
		WHERE deleted_at IS NULL`

	var args []any

	argIdx := 1

	if !filter.IncludeAnnulled {
		query += " AND annulled_at IS NULL"
	}

	if filter.Period != nil {
		query += fmt.Sprintf(" AND period_year = $%d AND period_month = $%d", argIdx, argIdx+1)

		args = append(args, filter.Period.Year, int(filter.Period.Month))
		argIdx += 2
	}

	if filter.Kind != nil {
		query += fmt.Sprintf(" AND kind = $%d", argIdx)

		args = append(args, *filter.Kind)
		argIdx++
	}

	if filter.StartDate != nil {
		query += fmt.Sprintf(" AND date >= $%d", argIdx)

		args = append(args, *filter.StartDate)
		argIdx++
	}

	if filter.EndDate != nil {
		query += fmt.Sprintf(" AND date <= $%d", argIdx)

		args = append(args, *filter.EndDate)
	}

	query += " ORDER BY date ASC, created_at ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing movements: %w", err)
	}
	defer rows.Close()

	var out []*movement.Movement

	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning movement: %w", err)
		}

		out = append(out, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating movements: %w", err)
	}

	return out, nil
}

func (s *Store) Update(ctx context.Context, mv, previous *movement.Movement) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer dbTx.Rollback()

	err = lockPeriods(ctx, dbTx,
		previous.Date, previous.Period.Start(),
		mv.Date, mv.Period.Start(),
	)
	if err != nil {
		return err
	}

	query := `
		UPDATE movements
		SET kind = $1, amount = $2, date = $3, description = $4, category = NULLIF($5, ''),
			period_year = $6, period_month = $7, content_hash = $8, updated_at = NOW()
		WHERE id = $9 AND deleted_at IS NULL
		RETURNING updated_at
	`

	err = dbTx.QueryRowContext(ctx, query,
		mv.Kind,
		mv.Amount,
		mv.Date,
		mv.Description,
		mv.Category,
		mv.Period.Year,
		int(mv.Period.Month),
		mv.ContentHash,
		mv.ID,
	).Scan(&mv.UpdatedAt)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return movement.ErrNotFound
		case isUniqueViolation(err):
			return movement.ErrDuplicate
		}

		return fmt.Errorf("updating movement: %w", err)
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("committing movement: %w", err)
	}

	return nil
}

func (s *Store) Annul(ctx context.Context, id uuid.UUID, reason string, at time.Time) error {
	return s.mutate(ctx, id, func(dbTx *sql.Tx) error {
		res, err := dbTx.ExecContext(ctx, `
			UPDATE movements
			SET annulled_at = $1, annul_reason = $2, updated_at = NOW()
			WHERE id = $3 AND annulled_at IS NULL
		`, at, reason, id)
		if err != nil {
			return fmt.Errorf("annulling movement: %w", err)
		}

		if n, _ := res.RowsAffected(); n == 0 {
			return movement.ErrAnnulled
		}

		return nil
	})
}

func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	return s.mutate(ctx, id, func(dbTx *sql.Tx) error {
		if _, err := dbTx.ExecContext(ctx, `UPDATE movements SET deleted_at = NOW() WHERE id = $1`, id); err != nil {
			return fmt.Errorf("deleting movement: %w", err)
		}

		return nil
	})
}

// mutate locks the movement row, the period of its date and the period it
// belongs to before running fn.
func (s *Store) mutate(ctx context.Context, id uuid.UUID, fn func(*sql.Tx) error) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer dbTx.Rollback()

	var (
		date        time.Time
		year, month int
	)

	err = dbTx.QueryRowContext(ctx, `
		SELECT date, period_year, period_month
		FROM movements
		WHERE id = $1 AND deleted_at IS NULL
		FOR UPDATE`, id,
	).Scan(&date, &year, &month)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return movement.ErrNotFound
		}

		return fmt.Errorf("locking movement: %w", err)
	}

	owner := period.Key{Year: year, Month: time.Month(month)}

	if err := lockPeriods(ctx, dbTx, date, owner.Start()); err != nil {
		return err
	}

	if err := fn(dbTx); err != nil {
		return err
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("committing movement: %w", err)
	}

	return nil
}

type rowQueryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Source runs the aggregation queries on a pool or inside a transaction.
type Source struct {
	q rowQueryer
}

// NewSource binds the aggregation queries to q, usually a *sql.Tx already
// holding a period lock.
func NewSource(q rowQueryer) *Source {
	return &Source{q: q}
}

func (s *Store) OpeningBalance(ctx context.Context, key period.Key) (decimal.Decimal, bool, error) {
	return NewSource(s.db).OpeningBalance(ctx, key)
}

func (s *Store) NetBefore(ctx context.Context, t time.Time) (decimal.Decimal, error) {
	return NewSource(s.db).NetBefore(ctx, t)
}

func (s *Store) Totals(ctx context.Context, from, to time.Time) (decimal.Decimal, decimal.Decimal, error) {
	return NewSource(s.db).Totals(ctx, from, to)
}

// OpeningBalance returns the latest active opening balance tagged for key.
func (src *Source) OpeningBalance(ctx context.Context, key period.Key) (decimal.Decimal, bool, error) {
	query := `
		SELECT amount FROM movements
		WHERE kind = 'opening_balance' AND period_year = $1 AND period_month = $2
			AND deleted_at IS NULL AND annulled_at IS NULL
		ORDER BY created_at DESC
		LIMIT 1
	`

	var amount decimal.Decimal

	err := src.q.QueryRowContext(ctx, query, key.Year, int(key.Month)).Scan(&amount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, false, nil
		}

		return decimal.Zero, false, fmt.Errorf("loading opening balance: %w", err)
	}

	return amount, true, nil
}

// NetBefore sums income minus expense of active movements dated before t.
func (src *Source) NetBefore(ctx context.Context, t time.Time) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(CASE WHEN kind = 'income' THEN amount ELSE -amount END), 0)
		FROM movements
		WHERE kind IN ('income', 'expense') AND date < $1
			AND deleted_at IS NULL AND annulled_at IS NULL
	`

	var net decimal.Decimal
	if err := src.q.QueryRowContext(ctx, query, t).Scan(&net); err != nil {
		return decimal.Zero, fmt.Errorf("summing movements before %s: %w", t.Format(time.DateOnly), err)
	}

	return net, nil
}

// Totals sums active income and expense dated in [from, to).
func (src *Source) Totals(ctx context.Context, from, to time.Time) (decimal.Decimal, decimal.Decimal, error) {
	query := `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE kind = 'income'), 0),
			COALESCE(SUM(amount) FILTER (WHERE kind = 'expense'), 0)
		FROM movements
		WHERE date >= $1 AND date < $2
			AND deleted_at IS NULL AND annulled_at IS NULL
	`

	var income, expense decimal.Decimal
	if err := src.q.QueryRowContext(ctx, query, from, to).Scan(&income, &expense); err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("summing movements: %w", err)
	}

	return income, expense, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func existingHashes(ctx context.Context, q queryer, hashes []string) (map[string]bool, error) {
	found := make(map[string]bool)
	if len(hashes) == 0 {
		return found, nil
	}

	rows, err := q.QueryContext(ctx,
		`SELECT content_hash FROM movements WHERE deleted_at IS NULL AND content_hash = ANY($1)`,
		hashes,
	)
	if err != nil {
		return nil, fmt.Errorf("looking up hashes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("scanning hash: %w", err)
		}

		found[h] = true
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating hashes: %w", err)
	}

	return found, nil
}

// ExistingHashes reports which of the given hashes are already stored.
func (s *Store) ExistingHashes(ctx context.Context, hashes []string) (map[string]bool, error) {
	return existingHashes(ctx, s.db, hashes)
}

type importTx struct {
	tx *sql.Tx
}

// BeginImport opens the transaction of one period's batch, holding the
// period's shared lock so the period cannot be closed until it ends.
func (s *Store) BeginImport(ctx context.Context, key period.Key) (importer.ImportTx, error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning import tx: %w", err)
	}

	if _, err := dbTx.ExecContext(ctx, "SELECT pg_advisory_xact_lock_shared($1)", key.LockID()); err != nil {
		dbTx.Rollback()
		return nil, fmt.Errorf("acquiring import lock: %w", err)
	}

	return &importTx{tx: dbTx}, nil
}

func (itx *importTx) Commit() error   { return itx.tx.Commit() }
func (itx *importTx) Rollback() error { return itx.tx.Rollback() }

func (itx *importTx) ExistingHashes(ctx context.Context, hashes []string) (map[string]bool, error) {
	return existingHashes(ctx, itx.tx, hashes)
}

// EnsureMutable checks, inside the import transaction, that the period of
// date is open, taking its shared lock when it is not the batch's own.
func (itx *importTx) EnsureMutable(ctx context.Context, date time.Time) error {
	return lockPeriods(ctx, itx.tx, date)
}

// Insert stores mv unless its hash already exists, reporting whether a row was written.
func (itx *importTx) Insert(ctx context.Context, mv *movement.Movement) (bool, error) {
	query := insertQuery + `
		ON CONFLICT (content_hash) WHERE deleted_at IS NULL DO NOTHING
		RETURNING id, created_at`

	err := itx.tx.QueryRowContext(ctx, query, insertArgs(mv)...).Scan(&mv.ID, &mv.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}

		return false, fmt.Errorf("inserting movement: %w", err)
	}

	return true, nil
}
