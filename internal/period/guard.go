package period

import (
	"context"
	"fmt"
	"time"
)

//go:generate mockgen -source=guard.go -destination=guard_mock.go -package=period
type Lookup interface {
	IsClosed(ctx context.Context, key Key) (bool, error)
}

// Guard rejects mutations that touch a closed period. Every write path on the
// ledger asks the guard before doing anything else.
type Guard struct {
	lookup Lookup
}

func NewGuard(lookup Lookup) *Guard {
	return &Guard{lookup: lookup}
}

// EnsureMutable returns a *ClosedError when date lies inside a closed period.
func (g *Guard) EnsureMutable(ctx context.Context, date time.Time) error {
	key := KeyOf(date)

	closed, err := g.lookup.IsClosed(ctx, key)
	if err != nil {
		return fmt.Errorf("checking period %s: %w", key, err)
	}

	if closed {
		return &ClosedError{Key: key, Date: date}
	}

	return nil
}
