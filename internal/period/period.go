package period

import (
	"fmt"
	"hash/fnv"
	"time"

	"github.com/shopspring/decimal"
)

// Key identifies an accounting period by calendar year and month.
type Key struct {
	Year  int
	Month time.Month
}

// KeyOf returns the period containing the given date.
func KeyOf(date time.Time) Key {
	return Key{Year: date.Year(), Month: date.Month()}
}

// NewKey builds a key, rejecting months outside 1..12.
func NewKey(year, month int) (Key, error) {
	if month < 1 || month > 12 {
		return Key{}, fmt.Errorf("invalid month %d", month)
	}

	if year < 1900 || year > 9999 {
		return Key{}, fmt.Errorf("invalid year %d", year)
	}

	return Key{Year: year, Month: time.Month(month)}, nil
}

// Start is the first instant of the period in UTC.
func (k Key) Start() time.Time {
	return time.Date(k.Year, k.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End is the first instant of the following period, exclusive.
func (k Key) End() time.Time {
	return k.Start().AddDate(0, 1, 0)
}

// Contains reports whether date falls within [Start, End).
func (k Key) Contains(date time.Time) bool {
	return KeyOf(date) == k
}

// Before orders keys chronologically.
func (k Key) Before(o Key) bool {
	if k.Year != o.Year {
		return k.Year < o.Year
	}

	return k.Month < o.Month
}

// String formats the key as YYYY-MM.
func (k Key) String() string {
	return fmt.Sprintf("%04d-%02d", k.Year, int(k.Month))
}

// LockID is the advisory lock identifier of the period. Closing takes it
// exclusively; writes into the period take it shared.
func (k Key) LockID() int64 {
	h := fnv.New64a()
	h.Write([]byte("period"))
	h.Write([]byte{0})
	h.Write([]byte(k.String()))

	return int64(h.Sum64())
}

// ParseKey parses a YYYY-MM string.
func ParseKey(s string) (Key, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Key{}, fmt.Errorf("parsing period %q: %w", s, err)
	}

	return KeyOf(t), nil
}

// Figures are the balances of a period.
type Figures struct {
	Opening decimal.Decimal
	Income  decimal.Decimal
	Expense decimal.Decimal
	Closing decimal.Decimal
}

// NewFigures derives the closing balance from the other three figures.
func NewFigures(opening, income, expense decimal.Decimal) Figures {
	return Figures{
		Opening: opening,
		Income:  income,
		Expense: expense,
		Closing: opening.Add(income).Sub(expense),
	}
}

// Period is a closing snapshot. A period without a stored snapshot is open.
type Period struct {
	Key      Key
	Closed   bool
	ClosedAt *time.Time
	ClosedBy string
	Notes    string
	Figures  *Figures
}

// Open returns the representation of a period with no snapshot.
func Open(key Key) *Period {
	return &Period{Key: key}
}
