package period

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrJamesThe3rd/tesouraria/internal/audit"
)

const entityType = "period"

//go:generate mockgen -source=service.go -destination=service_mock.go -package=period
type Repository interface {
	IsClosed(ctx context.Context, key Key) (bool, error)

	// Get returns ErrNotClosed when the period has no snapshot.
	Get(ctx context.Context, key Key) (*Period, error)
	List(ctx context.Context, year int) ([]*Period, error)

	// BeginTransition opens a transaction holding the exclusive lock of the period.
	BeginTransition(ctx context.Context, key Key) (TransitionTx, error)
}

type TransitionTx interface {
	// Get returns ErrNotClosed when the period has no snapshot.
	Get(ctx context.Context) (*Period, error)
	// Create is insert-only; an existing snapshot yields ErrAlreadyClosed.
	Create(ctx context.Context, p *Period) error
	Delete(ctx context.Context) error
	// Aggregator computes figures on the transaction's own connection.
	Aggregator() Aggregator
	Commit() error
	Rollback() error
}

type Aggregator interface {
	Aggregate(ctx context.Context, key Key) (Figures, error)
}

type AuditLogger interface {
	LogAsync(ctx context.Context, e audit.Entry)
}

type Service struct {
	repo       Repository
	aggregator Aggregator
	audit      AuditLogger
	now        func() time.Time
}

func NewService(repo Repository, aggregator Aggregator, auditLogger AuditLogger) *Service {
	return &Service{
		repo:       repo,
		aggregator: aggregator,
		audit:      auditLogger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Status is a period together with its live figures.
type Status struct {
	Period *Period
	Live   Figures
}

// Close freezes the period: its figures are computed from the current ledger
// and stored as the closing snapshot.
func (s *Service) Close(ctx context.Context, key Key, user, notes string) (*Period, error) {
	ptx, err := s.repo.BeginTransition(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("begin close: %w", err)
	}
	defer ptx.Rollback()

	if _, err := ptx.Get(ctx); err == nil {
		return nil, ErrAlreadyClosed
	} else if !errors.Is(err, ErrNotClosed) {
		return nil, fmt.Errorf("loading period: %w", err)
	}

	figures, err := ptx.Aggregator().Aggregate(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("aggregating period %s: %w", key, err)
	}

	closedAt := s.now()
	p := &Period{
		Key:      key,
		Closed:   true,
		ClosedAt: &closedAt,
		ClosedBy: user,
		Notes:    notes,
		Figures:  &figures,
	}

	if err := ptx.Create(ctx, p); err != nil {
		if errors.Is(err, ErrAlreadyClosed) {
			return nil, ErrAlreadyClosed
		}

		return nil, fmt.Errorf("storing snapshot: %w", err)
	}

	if err := ptx.Commit(); err != nil {
		return nil, fmt.Errorf("commit close: %w", err)
	}

	s.audit.LogAsync(ctx, audit.Entry{
		EntityType: entityType,
		EntityID:   key.String(),
		Action:     "close",
		User:       user,
		NewValues:  snapshotValues(p),
		Note:       notes,
	})

	return p, nil
}

// Reopen discards the snapshot of a closed period. The removed snapshot is
// returned, marked open.
func (s *Service) Reopen(ctx context.Context, key Key, reason, admin string) (*Period, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrInvalidReason
	}

	ptx, err := s.repo.BeginTransition(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("begin reopen: %w", err)
	}
	defer ptx.Rollback()

	p, err := ptx.Get(ctx)
	if err != nil {
		if errors.Is(err, ErrNotClosed) {
			return nil, ErrNotClosed
		}

		return nil, fmt.Errorf("loading period: %w", err)
	}

	old := snapshotValues(p)

	if err := ptx.Delete(ctx); err != nil {
		return nil, fmt.Errorf("deleting snapshot: %w", err)
	}

	if err := ptx.Commit(); err != nil {
		return nil, fmt.Errorf("commit reopen: %w", err)
	}

	s.audit.LogAsync(ctx, audit.Entry{
		EntityType: entityType,
		EntityID:   key.String(),
		Action:     "reopen",
		User:       admin,
		OldValues:  old,
		NewValues:  map[string]any{"closed": false, "reopen_reason": reason},
		Note:       reason,
	})

	p.Closed = false

	return p, nil
}

// Get returns the stored snapshot, or an open period when there is none.
func (s *Service) Get(ctx context.Context, key Key) (*Period, error) {
	p, err := s.repo.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotClosed) {
			return Open(key), nil
		}

		return nil, err
	}

	return p, nil
}

// List returns the closed periods of a year.
func (s *Service) List(ctx context.Context, year int) ([]*Period, error) {
	return s.repo.List(ctx, year)
}

// Status returns the period along with figures computed from the current ledger.
func (s *Service) Status(ctx context.Context, key Key) (*Status, error) {
	p, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	live, err := s.aggregator.Aggregate(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("aggregating period %s: %w", key, err)
	}

	return &Status{Period: p, Live: live}, nil
}

func snapshotValues(p *Period) map[string]any {
	v := map[string]any{
		"year":   p.Key.Year,
		"month":  int(p.Key.Month),
		"closed": p.Closed,
	}

	if p.ClosedAt != nil {
		v["closed_at"] = p.ClosedAt.Format(time.RFC3339)
	}

	if p.ClosedBy != "" {
		v["closed_by"] = p.ClosedBy
	}

	if p.Figures != nil {
		v["opening_balance"] = p.Figures.Opening.StringFixed(2)
		v["total_income"] = p.Figures.Income.StringFixed(2)
		v["total_expense"] = p.Figures.Expense.StringFixed(2)
		v["closing_balance"] = p.Figures.Closing.StringFixed(2)
	}

	return v
}
