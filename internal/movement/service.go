package movement

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/tesouraria/internal/period"
	"github.com/MrJamesThe3rd/tesouraria/internal/validate"
)

//go:generate mockgen -source=service.go -destination=service_mock.go -package=movement
type Repository interface {
	// Create returns ErrDuplicate when the content hash already exists.
	Create(ctx context.Context, mv *Movement) error
	Get(ctx context.Context, id uuid.UUID) (*Movement, error)
	List(ctx context.Context, filter ListFilter) ([]*Movement, error)
	// Update rewrites the movement; previous is the row stored before the change.
	Update(ctx context.Context, mv, previous *Movement) error
	Annul(ctx context.Context, id uuid.UUID, reason string, at time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type Guard interface {
	EnsureMutable(ctx context.Context, date time.Time) error
}

type Service struct {
	repo  Repository
	guard Guard
	now   func() time.Time
}

func NewService(repo Repository, guard Guard) *Service {
	return &Service{
		repo:  repo,
		guard: guard,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// CreateParams describes a new movement. Period tags an opening balance and
// is ignored for other kinds, whose period always follows the date.
type CreateParams struct {
	Kind        Kind            `validate:"required,oneof=income expense opening_balance"`
	Amount      decimal.Decimal `validate:"-"`
	Date        time.Time       `validate:"required"`
	Description string          `validate:"required"`
	Category    string
	Period      *period.Key `validate:"-"`
	Source      Source
	SourceRef   string
}

type UpdateParams struct {
	Kind        *Kind
	Amount      *decimal.Decimal
	Date        *time.Time
	Description *string
	Category    *string
}

type ListFilter struct {
	Period          *period.Key
	Kind            *Kind
	StartDate       *time.Time
	EndDate         *time.Time
	IncludeAnnulled bool
}

// Create records a manual movement.
func (s *Service) Create(ctx context.Context, params CreateParams) (*Movement, error) {
	if err := s.guard.EnsureMutable(ctx, params.Date); err != nil {
		return nil, err
	}

	m, err := New(params)
	if err != nil {
		return nil, err
	}

	if err := s.ensureOwner(ctx, m); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, m); err != nil {
		return nil, err
	}

	return m, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Movement, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Movement, error) {
	return s.repo.List(ctx, filter)
}

// Update changes a movement. Both the stored date and the new one must lie
// in open periods.
func (s *Service) Update(ctx context.Context, id uuid.UUID, params UpdateParams) (*Movement, error) {
	m, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.ensureMutable(ctx, m); err != nil {
		return nil, err
	}

	if params.Date != nil {
		if err := s.guard.EnsureMutable(ctx, *params.Date); err != nil {
			return nil, err
		}
	}

	updated := *m

	if params.Kind != nil {
		updated.Kind = *params.Kind
	}

	if params.Amount != nil {
		updated.Amount = *params.Amount
	}

	if params.Date != nil {
		updated.Date = dateOnly(*params.Date)
	}

	if params.Description != nil {
		updated.Description = strings.TrimSpace(*params.Description)
	}

	if params.Category != nil {
		updated.Category = strings.TrimSpace(*params.Category)
	}

	if updated.Kind != KindOpeningBalance || params.Kind != nil {
		updated.Period = period.KeyOf(updated.Date)
	}

	if err := check(updated.Kind, updated.Amount, updated.Date, updated.Description); err != nil {
		return nil, err
	}

	if err := s.ensureOwner(ctx, &updated); err != nil {
		return nil, err
	}

	updated.ContentHash = Hash(updated.Fingerprint())

	if err := s.repo.Update(ctx, &updated, m); err != nil {
		return nil, err
	}

	return &updated, nil
}

// Annul keeps the movement on record but removes it from every balance.
func (s *Service) Annul(ctx context.Context, id uuid.UUID, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ErrAnnulReason
	}

	m, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.ensureMutable(ctx, m); err != nil {
		return err
	}

	if m.Annulled() {
		return ErrAnnulled
	}

	return s.repo.Annul(ctx, id, reason, s.now())
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	m, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.ensureMutable(ctx, m); err != nil {
		return err
	}

	return s.repo.Delete(ctx, id)
}

// ensureMutable checks the period of the movement's date and the period it
// belongs to.
func (s *Service) ensureMutable(ctx context.Context, m *Movement) error {
	if err := s.guard.EnsureMutable(ctx, m.Date); err != nil {
		return err
	}

	return s.ensureOwner(ctx, m)
}

// ensureOwner checks the owning period of an opening balance dated in
// another month.
func (s *Service) ensureOwner(ctx context.Context, m *Movement) error {
	if m.Period == period.KeyOf(m.Date) {
		return nil
	}

	return s.guard.EnsureMutable(ctx, m.Period.Start())
}

// New validates params and builds an unsaved movement with its content hash.
func New(params CreateParams) (*Movement, error) {
	params.Description = strings.TrimSpace(params.Description)

	if errs := validate.Struct(params); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalid, validate.Join(errs))
	}

	if err := check(params.Kind, params.Amount, params.Date, params.Description); err != nil {
		return nil, err
	}

	key := period.KeyOf(params.Date)
	if params.Kind == KindOpeningBalance && params.Period != nil {
		key = *params.Period
	}

	source := params.Source
	if source == "" {
		source = SourceManual
	}

	m := &Movement{
		Kind:        params.Kind,
		Amount:      params.Amount,
		Date:        dateOnly(params.Date),
		Description: params.Description,
		Category:    strings.TrimSpace(params.Category),
		Period:      key,
		Source:      source,
		SourceRef:   params.SourceRef,
	}
	m.ContentHash = Hash(m.Fingerprint())

	return m, nil
}

func check(kind Kind, amount decimal.Decimal, date time.Time, description string) error {
	switch {
	case !kind.Valid():
		return fmt.Errorf("%w: unknown kind %q", ErrInvalid, kind)
	case !amount.IsPositive():
		return fmt.Errorf("%w: amount must be positive", ErrInvalid)
	case date.IsZero():
		return fmt.Errorf("%w: date is required", ErrInvalid)
	case description == "":
		return fmt.Errorf("%w: description is required", ErrInvalid)
	}

	return nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
