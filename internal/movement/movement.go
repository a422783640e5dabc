package movement

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/tesouraria/internal/period"
)

var (
	ErrNotFound    = errors.New("movement not found")
	ErrDuplicate   = errors.New("an identical movement already exists")
	ErrInvalid     = errors.New("invalid movement")
	ErrAnnulReason = errors.New("a reason is required to annul a movement")
	ErrAnnulled    = errors.New("movement is already annulled")
)

// Kind is the direction of a movement.
type Kind string

const (
	KindIncome         Kind = "income"
	KindExpense        Kind = "expense"
	KindOpeningBalance Kind = "opening_balance"
)

func (k Kind) Valid() bool {
	switch k {
	case KindIncome, KindExpense, KindOpeningBalance:
		return true
	}

	return false
}

// Tag is the label of the kind inside content hashes.
func (k Kind) Tag() string {
	switch k {
	case KindIncome:
		return "Income"
	case KindExpense:
		return "Expense"
	case KindOpeningBalance:
		return "OpeningBalance"
	}

	return string(k)
}

// Source records where a movement came from.
type Source string

const (
	SourceManual Source = "manual"
	SourceImport Source = "import"
)

// Movement is a single ledger entry.
type Movement struct {
	ID          uuid.UUID
	Kind        Kind
	Amount      decimal.Decimal // always positive
	Date        time.Time
	Description string
	Category    string
	Period      period.Key // owning period; differs from the date's only for opening balances
	ContentHash string
	Source      Source
	SourceRef   string
	AnnulledAt  *time.Time
	AnnulReason string
	CreatedAt   time.Time
	UpdatedAt   *time.Time
	DeletedAt   *time.Time
}

// Fingerprint returns the identifying fields of the movement.
func (m *Movement) Fingerprint() Fingerprint {
	return Fingerprint{
		Kind:        m.Kind,
		Date:        m.Date,
		Amount:      m.Amount,
		Description: m.Description,
		Period:      m.Period,
	}
}

// Signed returns the amount as it affects the balance.
func (m *Movement) Signed() decimal.Decimal {
	if m.Kind == KindExpense {
		return m.Amount.Neg()
	}

	return m.Amount
}

func (m *Movement) Annulled() bool {
	return m.AnnulledAt != nil
}
