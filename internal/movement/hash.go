package movement

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/MrJamesThe3rd/tesouraria/internal/period"
)

// AmountPlaces is the precision amounts are rounded to before hashing.
const AmountPlaces = 2

// Fingerprint holds the fields that make two movements the same fact.
type Fingerprint struct {
	Kind        Kind
	Date        time.Time
	Amount      decimal.Decimal
	Description string
	Period      period.Key
}

// Canonical renders the fingerprint as the string that gets hashed:
//
//	Kind|YYYY-MM-DD|amount|DESCRIPTION|YYYY-MM
func (f Fingerprint) Canonical() string {
	return strings.Join([]string{
		f.Kind.Tag(),
		f.Date.Format(time.DateOnly),
		f.Amount.StringFixed(AmountPlaces),
		NormalizeDescription(f.Description),
		f.Period.String(),
	}, "|")
}

// Hash returns the hex encoded SHA-256 of the canonical fingerprint.
func Hash(f Fingerprint) string {
	sum := sha256.Sum256([]byte(f.Canonical()))
	return hex.EncodeToString(sum[:])
}

// NormalizeDescription composes unicode, trims, collapses whitespace runs and upper-cases.
func NormalizeDescription(s string) string {
	s = norm.NFC.String(s)
	s = strings.Join(strings.Fields(s), " ")

	// Casers keep state, so each call gets its own.
	return cases.Upper(language.Und).String(s)
}
